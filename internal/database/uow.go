package database

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/response"
)

// Tx is the handle a unit of work passes to its body.
type Tx struct {
	*gorm.DB
	afterCommit []func()
}

// AfterCommit registers fn to run once the transaction has committed,
// before the unit's locks are released.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// UnitOfWork runs transactional bodies under logical locks with retry on transient errors.
type UnitOfWork struct {
	db       *gorm.DB
	locks    *KeyedMutex
	retryMax int
	logger   *zap.Logger
	postgres bool
}

// NewUnitOfWork creates a unit of work. retryMax is the number of retries after the first attempt.
func NewUnitOfWork(db *gorm.DB, retryMax int, logger *zap.Logger) *UnitOfWork {
	return &UnitOfWork{
		db:       db,
		locks:    NewKeyedMutex(),
		retryMax: retryMax,
		logger:   logger,
		postgres: IsPostgres(db),
	}
}

// DB returns the underlying handle for reads outside a transaction.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

// Do runs fn in a transaction holding lockKeys. Keys are taken in sorted order,
// in-process first and then, on Postgres, as transaction-scoped advisory locks.
// fn may run more than once; it must not have effects outside tx other than
// AfterCommit callbacks.
func (u *UnitOfWork) Do(ctx context.Context, lockKeys []string, fn func(tx *Tx) error) error {
	keys := SortedUnique(lockKeys)

	release, err := u.locks.LockAll(ctx, keys)
	if err != nil {
		u.logger.Warn("Gave up waiting for logical locks",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
		return ClassifyError(err)
	}
	defer release()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := u.attempt(ctx, keys, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsTransient(err) {
			u.logger.Warn("Transient store error, retrying transaction",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(u.retryMax+1)))

	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ClassifyError(context.DeadlineExceeded)
	}
	if IsTransient(err) {
		return response.NewInternalError("store unavailable after retries", err)
	}
	return err
}

func (u *UnitOfWork) attempt(ctx context.Context, keys []string, fn func(tx *Tx) error) error {
	var committed *Tx
	err := u.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if u.postgres {
			for _, key := range keys {
				if err := gtx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
					return err
				}
			}
		}
		tx := &Tx{DB: gtx}
		if err := fn(tx); err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return ClassifyError(err)
	}
	for _, cb := range committed.afterCommit {
		cb()
	}
	return nil
}
