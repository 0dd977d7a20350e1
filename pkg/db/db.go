package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// TxManager открывает транзакцию и коммитит её, если fn вернул nil.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// ErrNoDSN: журнал выключен, пул не создаём.
var ErrNoDSN = errors.New("db: empty dsn")
