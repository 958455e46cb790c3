package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database is the query surface repositories depend on. Both *DB and
// pgxmock.PgxPoolIface satisfy it.
type Database interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type TXManager interface {
	Begin(ctx context.Context, fn func(ctx context.Context) error) error
}

// DB routes queries through the transaction bound to ctx when one is open,
// and through the pool otherwise. Each DB instance keys its transactions
// separately, so independent stores never see each other's transaction.
type DB struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

type txKey struct {
	db *DB
}

func (db *DB) txFrom(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{db: db}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := db.txFrom(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return db.pool.QueryRow(ctx, sql, args...)
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := db.txFrom(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return db.pool.Query(ctx, sql, args...)
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := db.txFrom(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return db.pool.Exec(ctx, sql, args...)
}

type Manager struct {
	db *DB
}

func NewTXManager(db *DB) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction, binds it to the returned context, and commits it
// only if fn returns nil. Nested Begin calls on the same DB reuse the open
// transaction.
func (m *Manager) Begin(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := m.db.txFrom(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := m.db.pool.Begin(ctx)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txKey{db: m.db}, tx)
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			zap.L().Error("transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}
