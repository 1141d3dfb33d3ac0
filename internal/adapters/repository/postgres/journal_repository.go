package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/basex-empresa/internal/core/org"
	pgdb "github.com/ogurasousui/basex-empresa/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// JournalRepository は PostgreSQL を利用した操作ジャーナルの実装です。
type JournalRepository struct {
	pool pgdb.Queryer
	tx   *pgdb.TransactionManager
}

var _ org.Journal = (*JournalRepository)(nil)

// NewJournalRepository は JournalRepository を生成します。tx が nil の場合はトランザクションを張りません。
func NewJournalRepository(pool pgdb.Queryer, tx *pgdb.TransactionManager) *JournalRepository {
	return &JournalRepository{pool: pool, tx: tx}
}

// Begin は操作を running 状態で登録します。
func (r *JournalRepository) Begin(ctx context.Context, op org.Operation) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO operations (id, name, subject, status, started_at)
        VALUES ($1, $2, $3, $4, $5)
    `, op.ID, op.Name, op.Subject, string(op.Status), op.StartedAt)
	if err != nil {
		return translateJournalPgError(err)
	}
	return nil
}

// RecordStep はステップを記録します。失敗したステップは操作自体も failed にします。
func (r *JournalRepository) RecordStep(ctx context.Context, step org.Step) error {
	return r.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		exec := pgdb.QueryerFromContext(ctx, r.pool)
		_, err := exec.Exec(ctx, `
            INSERT INTO operation_steps (operation_id, step_index, name, status, detail, recorded_at)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, step.OperationID, step.Index, step.Name, string(step.Status), step.Detail, step.RecordedAt)
		if err != nil {
			return translateJournalPgError(err)
		}

		if step.Status != org.StepFailed {
			return nil
		}
		_, err = exec.Exec(ctx, `UPDATE operations SET status = $1 WHERE id = $2`, string(org.OperationFailed), step.OperationID)
		if err != nil {
			return translateJournalPgError(err)
		}
		return nil
	})
}

// Finish は操作の最終状態を記録します。
func (r *JournalRepository) Finish(ctx context.Context, operationID string, status org.OperationStatus, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE operations
           SET status = $1,
               finished_at = $2
         WHERE id = $3
    `, string(status), at, operationID)
	if err != nil {
		return translateJournalPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return org.ErrOperationNotFound
	}
	return nil
}

// ListSteps は操作のステップを記録順に返します。
func (r *JournalRepository) ListSteps(ctx context.Context, operationID string) ([]org.Step, error) {
	var steps []org.Step
	err := r.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		exec := pgdb.QueryerFromContext(ctx, r.pool)

		var exists bool
		if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM operations WHERE id = $1)`, operationID).Scan(&exists); err != nil {
			return translateJournalPgError(err)
		}
		if !exists {
			return org.ErrOperationNotFound
		}

		rows, err := exec.Query(ctx, `
            SELECT operation_id, step_index, name, status, detail, recorded_at
              FROM operation_steps
             WHERE operation_id = $1
             ORDER BY step_index
        `, operationID)
		if err != nil {
			return translateJournalPgError(err)
		}
		defer rows.Close()

		steps = make([]org.Step, 0)
		for rows.Next() {
			step, err := scanStep(rows)
			if err != nil {
				return err
			}
			steps = append(steps, step)
		}
		if err := rows.Err(); err != nil {
			return translateJournalPgError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (org.Step, error) {
	var (
		step   org.Step
		status string
	)
	if err := row.Scan(&step.OperationID, &step.Index, &step.Name, &status, &step.Detail, &step.RecordedAt); err != nil {
		return org.Step{}, translateJournalPgError(err)
	}
	step.Status = org.StepStatus(status)
	return step, nil
}

func translateJournalPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return org.ErrOperationNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("journal: %w: %w", org.ErrAlreadyExists, err)
		case foreignKeyViolationCode:
			return fmt.Errorf("journal: %w: %w", org.ErrOperationNotFound, err)
		}
	}
	return err
}
