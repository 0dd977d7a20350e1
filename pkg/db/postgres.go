package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"signal_trader/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Options struct {
	DSN      string
	MaxConns int32
}

// Postgres: пул плюс транзакции в read committed.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ TxManager = (*Postgres)(nil)

// Connect парсит DSN, поднимает пул и проверяет соединение.
func Connect(ctx context.Context, opts Options) (*Postgres, error) {
	if opts.DSN == "" {
		return nil, ErrNoDSN
	}
	pc, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pc.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tx panic: %v", r)
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(ctx, tx)
}

// Migrate применяет *.sql из dir по имени файла. Скрипты должны быть
// идемпотентными (CREATE ... IF NOT EXISTS), версий не ведём.
func (p *Postgres) Migrate(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	for i, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return i, fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := p.pool.Exec(ctx, string(body)); err != nil {
			return i, fmt.Errorf("apply %s: %w", filepath.Base(f), err)
		}
	}
	return len(files), nil
}
