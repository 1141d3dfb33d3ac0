package org

import (
	"context"
	"time"
)

// OperationStatus は複数ステップ操作の状態です。
type OperationStatus string

const (
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
)

// StepStatus はステップの結果です。
type StepStatus string

const (
	StepDone   StepStatus = "done"
	StepFailed StepStatus = "failed"
)

// Operation はジャーナルに記録される操作です。
type Operation struct {
	ID        string
	Name      string
	Subject   string
	Status    OperationStatus
	StartedAt time.Time
}

// Step は操作内の 1 ステップの記録です。
type Step struct {
	OperationID string
	Index       int
	Name        string
	Status      StepStatus
	Detail      string
	RecordedAt  time.Time
}

// Journal は複数ステップ操作の進捗を永続化します。
//
// 部分的に失敗した操作をどこから再実行すべきかを呼び出し側が判断するために使います。
type Journal interface {
	Begin(ctx context.Context, op Operation) error
	RecordStep(ctx context.Context, step Step) error
	Finish(ctx context.Context, operationID string, status OperationStatus, at time.Time) error
	ListSteps(ctx context.Context, operationID string) ([]Step, error)
}

type noopJournal struct{}

func (noopJournal) Begin(context.Context, Operation) error { return nil }

func (noopJournal) RecordStep(context.Context, Step) error { return nil }

func (noopJournal) Finish(context.Context, string, OperationStatus, time.Time) error { return nil }

func (noopJournal) ListSteps(context.Context, string) ([]Step, error) { return nil, ErrJournalDisabled }
