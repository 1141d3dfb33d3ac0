package org

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// 操作名
const (
	OpInsertDepartment         = "insert_department"
	OpDeleteDepartment         = "delete_department"
	OpDeleteDepartmentReassign = "delete_department_reassign"
	OpReplaceDepartment        = "replace_department"
	OpReassignManager          = "reassign_manager"
	OpInsertMissingEmployees   = "insert_missing_employees"
	OpDeleteOrphanEmployees    = "delete_orphan_employees"
	OpReassignOrphanEmployees  = "reassign_orphan_employees"
)

// codePattern はクエリ文字列に埋め込まれるコードとして安全な文字のみを許可します。
var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// UseCase は部署・社員ユースケースの公開インターフェースです。
type UseCase interface {
	DepartmentExists(ctx context.Context, code string) (bool, error)
	EmployeeExists(ctx context.Context, code string) (bool, error)
	FetchDepartment(ctx context.Context, code string) (*Department, error)
	FetchDepartmentWithEmployees(ctx context.Context, code string) (*Department, error)
	FetchEmployee(ctx context.Context, code string) (*Employee, error)
	InsertDepartment(ctx context.Context, dept *Department) error
	DeleteDepartment(ctx context.Context, dept *Department) error
	DeleteDepartmentReassign(ctx context.Context, dept, newDept *Department) error
	ReplaceDepartment(ctx context.Context, toInsert, toReplace *Department) error
	ReassignManager(ctx context.Context, fromCode, toCode string) error
	InsertMissingEmployees(ctx context.Context, dept *Department) error
	DeleteOrphanEmployees(ctx context.Context, departmentCode string) error
	ReassignOrphanEmployees(ctx context.Context, fromCode, toCode string) error
	OperationSteps(ctx context.Context, operationID string) ([]Step, error)
}

// Service は部署と社員の整合性を保ちながらストアを操作します。
type Service struct {
	repo    Repository
	journal Journal
	clock   Clock
	logger  *slog.Logger
}

// NewService は Service を生成します。journal・clock・logger は nil を許容します。
func NewService(repo Repository, journal Journal, clock Clock, logger *slog.Logger) *Service {
	if journal == nil {
		journal = noopJournal{}
	}
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, journal: journal, clock: clock, logger: logger}
}

// DepartmentExists は部署が存在するかを返します。
func (s *Service) DepartmentExists(ctx context.Context, code string) (bool, error) {
	if err := validateCode(code); err != nil {
		return false, err
	}
	return s.repo.DepartmentExists(ctx, code)
}

// EmployeeExists は社員が存在するかを返します。
func (s *Service) EmployeeExists(ctx context.Context, code string) (bool, error) {
	if err := validateCode(code); err != nil {
		return false, err
	}
	return s.repo.EmployeeExists(ctx, code)
}

// FetchDepartment は社員を含めずに部署を取得します。
func (s *Service) FetchDepartment(ctx context.Context, code string) (*Department, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	return s.repo.FindDepartment(ctx, code)
}

// FetchDepartmentWithEmployees は部署と所属社員をストアの返却順で取得します。
func (s *Service) FetchDepartmentWithEmployees(ctx context.Context, code string) (*Department, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	dept, err := s.repo.FindDepartment(ctx, code)
	if err != nil {
		return nil, err
	}

	codes, err := s.repo.ListEmployeeCodes(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list employees of department %s: %w", code, err)
	}

	dept.Employees = make([]*Employee, 0, len(codes))
	for _, empCode := range codes {
		emp, err := s.repo.FindEmployee(ctx, empCode)
		if err != nil {
			return nil, fmt.Errorf("fetch employee %s of department %s: %w", empCode, code, err)
		}
		dept.AddEmployee(emp)
	}

	return dept, nil
}

// FetchEmployee は社員を取得します。
func (s *Service) FetchEmployee(ctx context.Context, code string) (*Employee, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	return s.repo.FindEmployee(ctx, code)
}

// InsertDepartment は部署と、まだストアに存在しない所属社員を挿入します。
//
// 部署の挿入後に社員の挿入が失敗した場合、挿入済みの内容はそのまま残ります。
func (s *Service) InsertDepartment(ctx context.Context, dept *Department) error {
	if err := validateDepartment(dept); err != nil {
		return err
	}

	op := s.begin(ctx, OpInsertDepartment, dept.Code)
	return op.finish(ctx, s.insertSteps(ctx, op, dept))
}

// DeleteDepartment は部署と所属する全社員を削除します。
func (s *Service) DeleteDepartment(ctx context.Context, dept *Department) error {
	if dept == nil {
		return ErrNilEntity
	}
	if err := validateCode(dept.Code); err != nil {
		return err
	}

	op := s.begin(ctx, OpDeleteDepartment, dept.Code)
	err := op.check(ctx, "check_department", func(ctx context.Context) error {
		return s.requireDepartment(ctx, dept.Code, ErrDepartmentNotFound)
	})
	if err == nil {
		err = op.apply(ctx, "delete_department", func(ctx context.Context) error {
			return s.repo.DeleteDepartment(ctx, dept.Code)
		})
	}
	if err == nil {
		err = op.apply(ctx, "delete_employees", func(ctx context.Context) error {
			return s.repo.DeleteEmployeesByDepartment(ctx, dept.Code)
		})
	}
	return op.finish(ctx, err)
}

// DeleteDepartmentReassign は部署を削除し、所属社員を newDept に付け替えます。
//
// newDept の存在は削除より前に確認するため、付け替え先が無い場合は何も削除されません。
func (s *Service) DeleteDepartmentReassign(ctx context.Context, dept, newDept *Department) error {
	if dept == nil || newDept == nil {
		return ErrNilEntity
	}
	if err := validateCode(dept.Code); err != nil {
		return err
	}
	if err := validateCode(newDept.Code); err != nil {
		return err
	}
	if dept.Code == newDept.Code {
		return ErrSameDepartment
	}

	op := s.begin(ctx, OpDeleteDepartmentReassign, dept.Code)
	return op.finish(ctx, s.reassignSteps(ctx, op, dept.Code, newDept.Code))
}

// ReplaceDepartment は toInsert を挿入したあと toReplace を削除し、その社員を toInsert に付け替えます。
func (s *Service) ReplaceDepartment(ctx context.Context, toInsert, toReplace *Department) error {
	if err := validateDepartment(toInsert); err != nil {
		return err
	}
	if toReplace == nil {
		return ErrNilEntity
	}
	if err := validateCode(toReplace.Code); err != nil {
		return err
	}
	if toInsert.Code == toReplace.Code {
		return ErrSameDepartment
	}

	op := s.begin(ctx, OpReplaceDepartment, toReplace.Code)
	err := s.insertSteps(ctx, op, toInsert)
	if err == nil {
		err = s.reassignSteps(ctx, op, toReplace.Code, toInsert.Code)
	}
	return op.finish(ctx, err)
}

// ReassignManager は fromCode を上司とする全社員の上司を toCode に付け替えます。
func (s *Service) ReassignManager(ctx context.Context, fromCode, toCode string) error {
	if err := validateCode(fromCode); err != nil {
		return err
	}
	if err := validateCode(toCode); err != nil {
		return err
	}
	if fromCode == toCode {
		return fmt.Errorf("org: manager %s reassigned to itself: %w", fromCode, ErrValidation)
	}

	op := s.begin(ctx, OpReassignManager, fromCode)
	err := op.check(ctx, "check_manager", func(ctx context.Context) error {
		exists, err := s.repo.EmployeeExists(ctx, toCode)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s: %w", toCode, ErrTargetManagerNotFound)
		}
		return nil
	})
	if err == nil {
		err = op.apply(ctx, "reassign_manager", func(ctx context.Context) error {
			return s.repo.ReassignManager(ctx, fromCode, toCode)
		})
	}
	return op.finish(ctx, err)
}

// InsertMissingEmployees は既存の部署に、まだストアに存在しない所属社員だけを挿入します。
//
// 社員の挿入途中で失敗した InsertDepartment を同じ内容で完了させるために使います。
func (s *Service) InsertMissingEmployees(ctx context.Context, dept *Department) error {
	if err := validateDepartment(dept); err != nil {
		return err
	}

	op := s.begin(ctx, OpInsertMissingEmployees, dept.Code)
	err := op.check(ctx, "check_department", func(ctx context.Context) error {
		return s.requireDepartment(ctx, dept.Code, ErrDepartmentNotFound)
	})
	var pending []*Employee
	if err == nil {
		pending, err = s.selectEmployeesStep(ctx, op, dept.Employees)
	}
	if err == nil {
		err = s.insertEmployeeSteps(ctx, op, pending)
	}
	return op.finish(ctx, err)
}

// DeleteOrphanEmployees は既に存在しない部署を参照している社員を削除します。
//
// 部署の削除後に社員の削除が失敗した DeleteDepartment の後始末に使います。部署が存在する場合は何も削除しません。
func (s *Service) DeleteOrphanEmployees(ctx context.Context, departmentCode string) error {
	if err := validateCode(departmentCode); err != nil {
		return err
	}

	op := s.begin(ctx, OpDeleteOrphanEmployees, departmentCode)
	err := s.checkAbsentStep(ctx, op, departmentCode)
	if err == nil {
		err = op.apply(ctx, "delete_employees", func(ctx context.Context) error {
			return s.repo.DeleteEmployeesByDepartment(ctx, departmentCode)
		})
	}
	return op.finish(ctx, err)
}

// ReassignOrphanEmployees は既に存在しない部署 fromCode を参照している社員を toCode に付け替えます。
//
// 付け替え途中で失敗した DeleteDepartmentReassign と ReplaceDepartment の後始末に使います。
func (s *Service) ReassignOrphanEmployees(ctx context.Context, fromCode, toCode string) error {
	if err := validateCode(fromCode); err != nil {
		return err
	}
	if err := validateCode(toCode); err != nil {
		return err
	}
	if fromCode == toCode {
		return ErrSameDepartment
	}

	op := s.begin(ctx, OpReassignOrphanEmployees, fromCode)
	err := s.checkAbsentStep(ctx, op, fromCode)
	if err == nil {
		err = s.checkTargetStep(ctx, op, toCode)
	}
	if err == nil {
		err = s.reassignEmployeesStep(ctx, op, fromCode, toCode)
	}
	return op.finish(ctx, err)
}

// OperationSteps はジャーナルに記録された操作のステップを返します。
func (s *Service) OperationSteps(ctx context.Context, operationID string) ([]Step, error) {
	if _, err := uuid.Parse(operationID); err != nil {
		return nil, fmt.Errorf("org: invalid operation id %q: %w", operationID, ErrValidation)
	}
	return s.journal.ListSteps(ctx, operationID)
}

func (s *Service) insertSteps(ctx context.Context, op *operation, dept *Department) error {
	err := op.check(ctx, "check_department", func(ctx context.Context) error {
		exists, err := s.repo.DepartmentExists(ctx, dept.Code)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", dept.Code, ErrDepartmentAlreadyExists)
		}
		return nil
	})
	if err != nil {
		return err
	}

	pending, err := s.selectEmployeesStep(ctx, op, dept.Employees)
	if err != nil {
		return err
	}

	err = op.apply(ctx, "insert_department", func(ctx context.Context) error {
		return s.repo.CreateDepartment(ctx, dept)
	})
	if err != nil {
		return err
	}

	return s.insertEmployeeSteps(ctx, op, pending)
}

func (s *Service) selectEmployeesStep(ctx context.Context, op *operation, employees []*Employee) ([]*Employee, error) {
	var pending []*Employee
	err := op.check(ctx, "select_employees", func(ctx context.Context) error {
		var selectErr error
		pending, selectErr = s.pendingEmployees(ctx, employees)
		return selectErr
	})
	return pending, err
}

func (s *Service) insertEmployeeSteps(ctx context.Context, op *operation, pending []*Employee) error {
	for _, emp := range pending {
		err := op.apply(ctx, "insert_employee:"+emp.Code, func(ctx context.Context) error {
			return s.repo.CreateEmployee(ctx, emp)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reassignSteps(ctx context.Context, op *operation, fromCode, toCode string) error {
	err := op.check(ctx, "check_department", func(ctx context.Context) error {
		return s.requireDepartment(ctx, fromCode, ErrDepartmentNotFound)
	})
	if err == nil {
		err = s.checkTargetStep(ctx, op, toCode)
	}
	if err == nil {
		err = op.apply(ctx, "delete_department", func(ctx context.Context) error {
			return s.repo.DeleteDepartment(ctx, fromCode)
		})
	}
	if err == nil {
		err = s.reassignEmployeesStep(ctx, op, fromCode, toCode)
	}
	return err
}

func (s *Service) checkTargetStep(ctx context.Context, op *operation, toCode string) error {
	return op.check(ctx, "check_target_department", func(ctx context.Context) error {
		return s.requireDepartment(ctx, toCode, ErrTargetDepartmentNotFound)
	})
}

func (s *Service) reassignEmployeesStep(ctx context.Context, op *operation, fromCode, toCode string) error {
	return op.apply(ctx, "reassign_employees", func(ctx context.Context) error {
		return s.repo.ReassignDepartment(ctx, fromCode, toCode)
	})
}

func (s *Service) checkAbsentStep(ctx context.Context, op *operation, code string) error {
	return op.check(ctx, "check_department_absent", func(ctx context.Context) error {
		exists, err := s.repo.DepartmentExists(ctx, code)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", code, ErrDepartmentStillExists)
		}
		return nil
	})
}

// pendingEmployees はストアに存在しない社員だけを、重複コードを除いて返します。
func (s *Service) pendingEmployees(ctx context.Context, employees []*Employee) ([]*Employee, error) {
	seen := make(map[string]struct{}, len(employees))
	pending := make([]*Employee, 0, len(employees))
	for _, emp := range employees {
		if _, dup := seen[emp.Code]; dup {
			continue
		}
		seen[emp.Code] = struct{}{}

		exists, err := s.repo.EmployeeExists(ctx, emp.Code)
		if err != nil {
			return nil, err
		}
		if !exists {
			pending = append(pending, emp)
		}
	}
	return pending, nil
}

func (s *Service) requireDepartment(ctx context.Context, code string, missing error) error {
	exists, err := s.repo.DepartmentExists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", code, missing)
	}
	return nil
}

// operation は 1 回の複数ステップ操作の進捗を追跡します。
type operation struct {
	svc       *Service
	id        string
	name      string
	subject   string
	index     int
	completed []string
	applied   []string
}

func (s *Service) begin(ctx context.Context, name, subject string) *operation {
	op := &operation{svc: s, id: uuid.NewString(), name: name, subject: subject}
	if err := s.journal.Begin(ctx, Operation{
		ID:        op.id,
		Name:      name,
		Subject:   subject,
		Status:    OperationRunning,
		StartedAt: s.clock.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "journal begin failed", "operation", name, "operation_id", op.id, "error", err)
	}
	return op
}

// check はストアを変更しない確認ステップを実行します。
func (o *operation) check(ctx context.Context, step string, fn func(context.Context) error) error {
	return o.run(ctx, step, false, fn)
}

// apply はストアを変更するステップを実行します。
func (o *operation) apply(ctx context.Context, step string, fn func(context.Context) error) error {
	return o.run(ctx, step, true, fn)
}

// run は fn を 1 ステップとして実行し、結果をジャーナルに記録します。
func (o *operation) run(ctx context.Context, step string, mutates bool, fn func(context.Context) error) error {
	o.index++
	err := fn(ctx)

	record := Step{
		OperationID: o.id,
		Index:       o.index,
		Name:        step,
		Status:      StepDone,
		RecordedAt:  o.svc.clock.Now(),
	}
	if err != nil {
		record.Status = StepFailed
		record.Detail = err.Error()
	}
	if jerr := o.svc.journal.RecordStep(ctx, record); jerr != nil {
		o.svc.logger.WarnContext(ctx, "journal step failed", "operation", o.name, "step", step, "error", jerr)
	}

	if err != nil {
		o.svc.logger.WarnContext(ctx, "operation step failed",
			"operation", o.name, "operation_id", o.id, "code", o.subject, "step", step,
			"completed", strings.Join(o.completed, ","), "error", err)
		return &StepError{
			OperationID: o.id,
			Operation:   o.name,
			Step:        step,
			Completed:   append([]string(nil), o.completed...),
			Applied:     append([]string(nil), o.applied...),
			Err:         err,
		}
	}

	o.svc.logger.DebugContext(ctx, "operation step done", "operation", o.name, "code", o.subject, "step", step)
	o.completed = append(o.completed, step)
	if mutates {
		o.applied = append(o.applied, step)
	}
	return nil
}

func (o *operation) finish(ctx context.Context, err error) error {
	status := OperationCompleted
	if err != nil {
		status = OperationFailed
	}
	if jerr := o.svc.journal.Finish(ctx, o.id, status, o.svc.clock.Now()); jerr != nil {
		o.svc.logger.WarnContext(ctx, "journal finish failed", "operation", o.name, "operation_id", o.id, "error", jerr)
	}
	o.svc.logger.InfoContext(ctx, "operation finished",
		"operation", o.name, "operation_id", o.id, "code", o.subject, "status", string(status))
	return err
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" || !codePattern.MatchString(code) {
		return fmt.Errorf("%q: %w", code, ErrInvalidCode)
	}
	return nil
}

func validateDepartment(dept *Department) error {
	if dept == nil {
		return ErrNilEntity
	}
	if err := validateCode(dept.Code); err != nil {
		return err
	}
	if strings.TrimSpace(dept.Name) == "" {
		return ErrInvalidName
	}
	for _, emp := range dept.Employees {
		if err := validateEmployee(emp); err != nil {
			return err
		}
	}
	return nil
}

func validateEmployee(emp *Employee) error {
	if emp == nil {
		return ErrNilEntity
	}
	if err := validateCode(emp.Code); err != nil {
		return err
	}
	if err := validateCode(emp.DepartmentCode); err != nil {
		return fmt.Errorf("employee %s department: %w", emp.Code, err)
	}
	if emp.ManagerCode != nil {
		if err := validateCode(*emp.ManagerCode); err != nil {
			return fmt.Errorf("employee %s manager: %w", emp.Code, err)
		}
	}
	if strings.TrimSpace(emp.Surname) == "" {
		return ErrInvalidSurname
	}
	return nil
}
