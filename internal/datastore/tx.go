package datastore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability/metrics"
)

// Tx is an open database transaction. It implements Repository; writes made
// through it become visible only after Commit.
type Tx struct {
	repository

	mu    sync.Mutex
	hooks []func()
	done  bool
}

// Begin starts a transaction bound to ctx
func (ds *DataStore) Begin(ctx context.Context) (*Tx, error) {
	if ds.DB == nil {
		return nil, ErrNotInitialized
	}

	gtx := ds.DB.WithContext(ctx).Begin()
	if gtx.Error != nil {
		return nil, dbError(fmt.Errorf("starting transaction: %w", gtx.Error), "begin", errors.PriorityHigh,
			"dialect", ds.dialect)
	}

	tx := &Tx{}
	tx.repository = repository{
		db:      gtx,
		dialect: ds.dialect,
		metrics: ds.metrics,
		log:     ds.logger,
		inTx:    true,
	}
	tx.deferHook = tx.queueHook
	return tx, nil
}

func (tx *Tx) queueHook(fn func()) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.hooks = append(tx.hooks, fn)
}

// finish marks the transaction done, returning false if it already was
func (tx *Tx) finish() ([]func(), bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, false
	}
	tx.done = true
	hooks := tx.hooks
	tx.hooks = nil
	return hooks, true
}

// Commit commits the transaction and then runs the AfterCommit callbacks in
// registration order.
func (tx *Tx) Commit() error {
	hooks, ok := tx.finish()
	if !ok {
		return ErrTxDone
	}

	if err := tx.db.Commit().Error; err != nil {
		tx.recordTransaction(metrics.StatusError)
		return dbError(fmt.Errorf("committing transaction: %w", err), "commit", errors.PriorityHigh,
			"dialect", tx.dialect)
	}
	tx.recordTransaction(metrics.StatusCommit)

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Rollback aborts the transaction and discards pending callbacks. Rolling back
// a finished transaction is a no-op so that it can be deferred.
func (tx *Tx) Rollback() error {
	if _, ok := tx.finish(); !ok {
		return nil
	}

	if err := tx.db.Rollback().Error; err != nil {
		tx.recordTransaction(metrics.StatusError)
		return dbError(fmt.Errorf("rolling back transaction: %w", err), "rollback", errors.PriorityMedium,
			"dialect", tx.dialect)
	}
	tx.recordTransaction(metrics.StatusRollback)
	return nil
}

func (tx *Tx) recordTransaction(status string) {
	if tx.metrics != nil {
		tx.metrics.RecordTransaction(status)
	}
}

// Transaction runs fn inside a transaction, committing when fn returns nil
// and rolling back on error or panic.
func (ds *DataStore) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := ds.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
