package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/response"
)

func TestUnitOfWork_CommitRunsAfterCommit(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	var fired bool
	err := uow.Do(context.Background(), nil, func(tx *Tx) error {
		tx.AfterCommit(func() { fired = true })
		return tx.Create(&domain.Organization{Name: "A", Slug: "a", CreatedBy: uuid.New()}).Error
	})
	require.NoError(t, err)
	assert.True(t, fired)

	var n int64
	db.Model(&domain.Organization{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestUnitOfWork_RollbackSkipsAfterCommit(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	var fired bool
	err := uow.Do(context.Background(), nil, func(tx *Tx) error {
		tx.AfterCommit(func() { fired = true })
		if err := tx.Create(&domain.Organization{Name: "A", Slug: "a", CreatedBy: uuid.New()}).Error; err != nil {
			return err
		}
		return response.NewValidationError("nope", "")
	})
	require.ErrorIs(t, err, response.ErrInvalid)
	assert.False(t, fired)

	var n int64
	db.Model(&domain.Organization{}).Count(&n)
	assert.Zero(t, n)
}

func TestUnitOfWork_RetriesTransientErrors(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	var calls int
	err := uow.Do(context.Background(), nil, func(tx *Tx) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("serialization failure"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUnitOfWork_GivesUpAsInternal(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	var calls int
	err := uow.Do(context.Background(), nil, func(tx *Tx) error {
		calls++
		return Retryable(errors.New("deadlock"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var appErr *response.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, response.ErrCodeInternal, appErr.Code)
}

func TestUnitOfWork_PermanentErrorsAreNotRetried(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	var calls int
	err := uow.Do(context.Background(), nil, func(tx *Tx) error {
		calls++
		return response.NewForbiddenError("no", "")
	})
	require.ErrorIs(t, err, response.ErrForbidden)
	assert.Equal(t, 1, calls)
}

func TestUnitOfWork_LocksSerialiseSameKey(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 0, zap.NewNop())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = uow.Do(context.Background(), []string{"project:p/stage:todo"}, func(tx *Tx) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside)
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedUnique([]string{"c", "a", "b", "a"}))
	assert.Empty(t, SortedUnique(nil))
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := NewKeyedMutex()
	release, err := k.LockAll(context.Background(), []string{"b", "a", "b"})
	require.NoError(t, err)
	assert.Len(t, k.locks, 2)
	release()
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_WaitEndsWithContext(t *testing.T) {
	k := NewKeyedMutex()
	holdB, err := k.LockAll(context.Background(), []string{"b"})
	require.NoError(t, err)
	defer holdB()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = k.LockAll(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// "a" was taken before the wait on "b" and must have been given back.
	relA, err := k.LockAll(context.Background(), []string{"a"})
	require.NoError(t, err)
	relA()
	assert.Len(t, k.locks, 1)
}

func TestUnitOfWork_LockWaitHonoursDeadline(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, 2, zap.NewNop())

	held := make(chan struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = uow.Do(context.Background(), []string{"k"}, func(tx *Tx) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer wg.Wait()
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var ran bool
	start := time.Now()
	err := uow.Do(ctx, []string{"k"}, func(tx *Tx) error {
		ran = true
		return nil
	})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, response.ErrTimeout)
	assert.False(t, ran)
	assert.Less(t, elapsed, 500*time.Millisecond)
}
