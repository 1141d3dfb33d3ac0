package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryer は pgx.Tx と pgxpool.Pool の双方が満たすクエリ実行インターフェースです。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Beginner はトランザクションを開始できる接続です。
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var (
	readOnlyOptions  = pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}
	readWriteOptions = pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: pgx.ReadCommitted}
)

type txKey struct{}

// TransactionManager はジャーナル書き込みをまとめるトランザクション境界です。
//
// nil の TransactionManager はトランザクションを張らずに fn をそのまま実行します。
type TransactionManager struct {
	db Beginner
}

// NewTransactionManager は TransactionManager を生成します。db が nil の場合は nil を返します。
func NewTransactionManager(db Beginner) *TransactionManager {
	if db == nil {
		return nil
	}
	return &TransactionManager{db: db}
}

// WithinReadOnly は REPEATABLE READ の読み取り専用トランザクションで fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, readOnlyOptions, fn)
}

// WithinReadWrite は READ COMMITTED の読み書きトランザクションで fn を実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, readWriteOptions, fn)
}

func (m *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("postgres: transaction function is required")
	}
	if m == nil {
		return fn(ctx)
	}
	// 既に開始済みのトランザクションがあればそれに参加する
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return errors.Join(err, rollback(ctx, tx))
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Join(fmt.Errorf("postgres: commit: %w", err), rollback(ctx, tx))
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return fmt.Errorf("postgres: rollback: %w", err)
}

// QueryerFromContext は ctx に紐づくトランザクションがあればそれを、無ければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if ctx == nil {
		return fallback
	}
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}
