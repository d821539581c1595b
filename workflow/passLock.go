package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrPassInProgress = errors.New("another monitoring pass is running")

const (
	passLockKey  = "lock:monitor-pass"
	passLockName = "monitor-pass"
	passLockTTL  = 10 * time.Minute
)

// heldLock is the part of *redislock.Lock a running pass needs.
type heldLock interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
	Release(ctx context.Context) error
}

// PassLock keeps monitoring passes from overlapping. It always takes an
// in-process lock, then a redis lock when redis is configured, and falls back
// to a MySQL advisory lock when redis is absent or failing.
type PassLock struct {
	mu     sync.Mutex
	locker *redislock.Client
	db     *gorm.DB
	mysql  bool
	logger *logrus.Logger

	// refreshEvery extends the redis lock while a pass runs past its TTL.
	refreshEvery time.Duration
}

// NewPassLock takes locker nil when redis is not configured. db is only used
// for GET_LOCK when useMySQL is set.
func NewPassLock(locker *redislock.Client, db *gorm.DB, useMySQL bool, logger *logrus.Logger) *PassLock {
	return &PassLock{locker: locker, db: db, mysql: useMySQL, logger: logger, refreshEvery: passLockTTL / 2}
}

// Acquire returns ErrPassInProgress when a pass already holds the lock. The
// returned release must be called once the pass ends.
func (l *PassLock) Acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrPassInProgress
	}

	if l.locker != nil {
		lock, err := l.locker.Obtain(ctx, passLockKey, passLockTTL, nil)
		switch {
		case err == nil:
			release := l.holdRedis(lock)
			return func() {
				release()
				l.mu.Unlock()
			}, nil
		case errors.Is(err, redislock.ErrNotObtained):
			l.mu.Unlock()
			return nil, ErrPassInProgress
		default:
			l.logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "PassLock"}).Warn("error obtaining redis lock; trying database lock: " + err.Error())
		}
	}

	if l.mysql && l.db != nil {
		release, err := l.acquireMySQL(ctx)
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		return func() {
			release()
			l.mu.Unlock()
		}, nil
	}

	return l.mu.Unlock, nil
}

// holdRedis refreshes lock every refreshEvery until the returned func stops the
// refresher and releases the lock.
func (l *PassLock) holdRedis(lock heldLock) func() {
	log := l.logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "PassLock"})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := lock.Refresh(context.Background(), passLockTTL, nil); err != nil {
					if errors.Is(err, redislock.ErrNotObtained) {
						log.Warn("redis lock expired while the pass was running; another pass may start")
						return
					}
					log.Warn("failed to refresh redis lock: " + err.Error())
				}
			}
		}
	}()
	return func() {
		close(stop)
		<-done
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn("failed to release redis lock: " + err.Error())
		}
	}
}

// GET_LOCK is connection scoped, so one connection is held for the whole pass.
func (l *PassLock) acquireMySQL(ctx context.Context) (func(), error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var ok sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", passLockName).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("get_lock %s: %w", passLockName, err)
	}
	if !ok.Valid || ok.Int64 != 1 {
		_ = conn.Close()
		return nil, ErrPassInProgress
	}
	return func() {
		var released sql.NullInt64
		if err := conn.QueryRowContext(context.Background(), "SELECT RELEASE_LOCK(?)", passLockName).Scan(&released); err != nil {
			l.logger.WithFields(logrus.Fields{"module": "workflow", "funcName": "PassLock"}).Warn("failed to release database lock: " + err.Error())
		}
		_ = conn.Close()
	}, nil
}
