// Package app は設定から Service とその依存を組み立てます。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	bxrepo "github.com/ogurasousui/basex-empresa/internal/adapters/repository/basex"
	pgrepo "github.com/ogurasousui/basex-empresa/internal/adapters/repository/postgres"
	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"github.com/ogurasousui/basex-empresa/internal/platform/config"
	"github.com/ogurasousui/basex-empresa/internal/platform/db/basex"
	pgdb "github.com/ogurasousui/basex-empresa/internal/platform/db/postgres"
)

const closeTimeout = 5 * time.Second

// App はストア接続とジャーナル接続を保持します。
type App struct {
	Service *org.Service

	store *basex.Client
	pool  *pgxpool.Pool
}

// Open は BaseX に接続し、journal.enabled の場合は PostgreSQL のジャーナルも接続します。
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := basex.NewClient(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	repo, err := bxrepo.NewRepository(store, cfg.Store.Layout)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("store layout: %w", err), store.Close(ctx))
	}

	a := &App{store: store}

	var journal org.Journal
	if cfg.Journal.Enabled {
		pool, err := pgdb.NewPool(ctx, cfg.Journal)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect journal: %w", err), store.Close(ctx))
		}
		a.pool = pool
		journal = pgrepo.NewJournalRepository(pool, pgdb.NewTransactionManager(pool))
	} else {
		logger.InfoContext(ctx, "operation journal disabled")
	}

	a.Service = org.NewService(repo, journal, nil, logger)
	logger.InfoContext(ctx, "store connected",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Store.Host, cfg.Store.Port)),
		slog.String("database", cfg.Store.Database),
		slog.Bool("journal", cfg.Journal.Enabled))
	return a, nil
}

// Close はジャーナル接続とストアのセッションを解放します。
func (a *App) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return a.store.Close(ctx)
}
