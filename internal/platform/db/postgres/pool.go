package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ogurasousui/basex-empresa/internal/platform/config"
)

// ApplicationName はジャーナル接続で pg_stat_activity に表示される名前です。
const ApplicationName = "empresa-journal"

// ErrJournalDisabled はジャーナルが無効な設定でプールを作成しようとした場合に返却されます。
var ErrJournalDisabled = errors.New("postgres: journal is disabled")

// BuildPoolConfig は journal 設定から pgxpool.Config を構築します。
func BuildPoolConfig(cfg config.JournalConfig) (*pgxpool.Config, error) {
	if !cfg.Enabled {
		return nil, ErrJournalDisabled
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	return poolCfg, nil
}

// NewPool はジャーナル用の pgxpool.Pool を生成し疎通確認を行います。
func NewPool(ctx context.Context, cfg config.JournalConfig) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}
