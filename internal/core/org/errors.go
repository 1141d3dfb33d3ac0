package org

import (
	"errors"
	"fmt"
	"strings"
)

// エラー分類。個別エラーはいずれかをラップしているため errors.Is で判定できます。
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrReferentialViolation = errors.New("referential violation")
	ErrCodec                = errors.New("codec error")
	ErrTransport            = errors.New("transport error")
	ErrValidation           = errors.New("validation error")
)

var (
	ErrDepartmentNotFound       = fmt.Errorf("org: department %w", ErrNotFound)
	ErrEmployeeNotFound         = fmt.Errorf("org: employee %w", ErrNotFound)
	ErrDepartmentAlreadyExists  = fmt.Errorf("org: department %w", ErrAlreadyExists)
	ErrTargetDepartmentNotFound = fmt.Errorf("org: target department does not exist: %w", ErrReferentialViolation)
	ErrTargetManagerNotFound    = fmt.Errorf("org: target manager does not exist: %w", ErrReferentialViolation)
	ErrInvalidCode              = fmt.Errorf("org: invalid code: %w", ErrValidation)
	ErrInvalidName              = fmt.Errorf("org: invalid name: %w", ErrValidation)
	ErrInvalidSurname           = fmt.Errorf("org: invalid surname: %w", ErrValidation)
	ErrSameDepartment           = fmt.Errorf("org: source and target department are the same: %w", ErrValidation)
	ErrNilEntity                = fmt.Errorf("org: entity is required: %w", ErrValidation)
	ErrDepartmentStillExists    = fmt.Errorf("org: department still exists: %w", ErrReferentialViolation)
	ErrOperationNotFound        = fmt.Errorf("org: operation %w", ErrNotFound)
	ErrJournalDisabled          = fmt.Errorf("org: journal disabled: %w", ErrOperationNotFound)
)

// StepError は複数ステップ操作のどのステップで失敗したかを表します。
//
// Completed は成功した全ステップ、Applied はそのうちストアを変更したステップです。
// Applied の内容はロールバックされていません。
type StepError struct {
	OperationID string
	Operation   string
	Step        string
	Completed   []string
	Applied     []string
	Err         error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: step %q failed", e.Operation, e.Step)
	if len(e.Completed) > 0 {
		fmt.Fprintf(&b, " after [%s]", strings.Join(e.Completed, ", "))
	}
	if e.Partial() {
		b.WriteString(" (partial)")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Partial はストアが中間状態で残されているかを返します。確認ステップだけが成功していた場合は false です。
func (e *StepError) Partial() bool {
	return len(e.Applied) > 0
}
