package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

// Querier is the subset of pgx shared by pools, pooled connections and
// transactions. Repositories run every statement through one.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ErrIsolationUpgrade is returned when a nested InTx asks for a stricter
// isolation level than the transaction it would join.
var ErrIsolationUpgrade = apperr.New(apperr.KindInternal, "isolation_upgrade", "nested transaction cannot raise isolation level")

// ErrNoTransaction is returned by writers that must only run inside a
// transaction opened by the caller.
var ErrNoTransaction = apperr.New(apperr.KindInternal, "no_transaction", "operation requires an open transaction")

// TxFromContext returns the transaction opened by InTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// Conn picks the most specific handle available: the open transaction, then
// the request's tenant-bound connection, then the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// Transactor runs fn as one atomic unit. Everything fn writes through the
// context it receives commits together or not at all.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error
}

type txConfig struct {
	opts pgx.TxOptions
}

type TxOption func(*txConfig)

// Serializable runs the transaction at SERIALIZABLE isolation.
func Serializable() TxOption {
	return func(c *txConfig) { c.opts.IsoLevel = pgx.Serializable }
}

// ReadOnly marks the transaction read only.
func ReadOnly() TxOption {
	return func(c *txConfig) { c.opts.AccessMode = pgx.ReadOnly }
}

type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PoolTransactor opens transactions on the request connection when one is
// bound, falling back to the pool for work outside a request (CLI, seeding).
type PoolTransactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{pool: pool}
}

// InTx runs fn in a transaction. A nested call joins the outer transaction
// and its options are not applied; asking for SERIALIZABLE inside a weaker
// outer transaction fails with ErrIsolationUpgrade instead of running fn.
func (t *PoolTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) (err error) {
	cfg := txConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	if TxFromContext(ctx) != nil {
		outer, _ := ctx.Value(txConfigKey).(txConfig)
		if cfg.opts.IsoLevel == pgx.Serializable && outer.opts.IsoLevel != pgx.Serializable {
			return ErrIsolationUpgrade
		}
		return fn(ctx)
	}

	var b beginner = t.pool
	if c := ConnFromContext(ctx); c != nil {
		b = c
	}

	tx, err := b.BeginTx(ctx, cfg.opts)
	if err != nil {
		return apperr.Storage(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, apperr.Storage(rbErr))
			}
		}
	}()

	if tid := TenantFromContext(ctx); tid != "" {
		if _, err = tx.Exec(ctx, `SELECT set_config($1, $2, true)`, tenantSetting, tid); err != nil {
			return apperr.Storage(err)
		}
	}

	txCtx := context.WithValue(context.WithValue(ctx, DBTxKey, tx), txConfigKey, cfg)
	if err = fn(txCtx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return apperr.Storage(fmt.Errorf("commit: %w", err))
	}
	return nil
}
