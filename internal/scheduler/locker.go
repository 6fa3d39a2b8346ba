package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LeaderLock 调度器选主使用的锁
type LeaderLock interface {
	TryLock(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Unlock(ctx context.Context) error
	IsLocked() bool
}

// Locker MySQL分布式锁。
// GET_LOCK 是会话级别的，加锁成功后固定持有同一个连接直到释放。
type Locker struct {
	db       *sql.DB
	lockName string
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	conn *sql.Conn
}

// NewLocker 创建分布式锁
func NewLocker(db *sql.DB, lockName string, timeout time.Duration, logger *zap.Logger) *Locker {
	return &Locker{
		db:       db,
		lockName: lockName,
		timeout:  timeout,
		logger:   logger,
	}
}

// TryLock 尝试获取锁
func (l *Locker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return true, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get connection: %w", err)
	}

	// 返回值: 1-成功获取锁, 0-超时, NULL-错误
	var result sql.NullInt64
	err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockName, int(l.timeout.Seconds())).Scan(&result)
	if err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !result.Valid {
		_ = conn.Close()
		return false, fmt.Errorf("lock query returned NULL")
	}
	if result.Int64 != 1 {
		_ = conn.Close()
		return false, nil
	}

	l.conn = conn
	l.logger.Info("acquired distributed lock",
		zap.String("lock_name", l.lockName))
	return true, nil
}

// Unlock 释放锁
func (l *Locker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	defer func() {
		_ = l.conn.Close()
		l.conn = nil
	}()

	// 返回值: 1-成功释放锁, 0-锁不存在或不是持有者, NULL-错误
	var result sql.NullInt64
	if err := l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockName).Scan(&result); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if !result.Valid || result.Int64 != 1 {
		return fmt.Errorf("failed to release lock: not owner or lock does not exist")
	}

	l.logger.Info("released distributed lock",
		zap.String("lock_name", l.lockName))
	return nil
}

func (l *Locker) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Renew 检查持锁连接仍然有效，连接断开时锁随之丢失
func (l *Locker) Renew(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return fmt.Errorf("not holding lock")
	}

	var owner sql.NullInt64
	err := l.conn.QueryRowContext(ctx, "SELECT IS_USED_LOCK(?) = CONNECTION_ID()", l.lockName).Scan(&owner)
	if err != nil || !owner.Valid || owner.Int64 != 1 {
		_ = l.conn.Close()
		l.conn = nil
		if err != nil {
			return fmt.Errorf("failed to check lock status: %w", err)
		}
		return fmt.Errorf("lock is not held")
	}
	return nil
}

// localLock 单实例部署（sqlite）时始终持有
type localLock struct {
	mu     sync.Mutex
	locked bool
}

func (l *localLock) TryLock(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = true
	return true, nil
}

func (l *localLock) Renew(context.Context) error { return nil }

func (l *localLock) Unlock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
	return nil
}

func (l *localLock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}
