package locks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const pollInterval = 50 * time.Millisecond

// PostgresLocker uses session-level advisory locks so several server
// processes sharing one database exclude each other. Each lease pins a
// dedicated connection until it is released.
type PostgresLocker struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresLocker(db *sql.DB, timeout time.Duration) *PostgresLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PostgresLocker{db: db, timeout: timeout}
}

func (l *PostgresLocker) Acquire(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	conn, err := l.db.Conn(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, key, l.timeout)
		}
		return nil, fmt.Errorf("failed to reserve connection for lock %s: %w", key, err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var acquired bool
		err := conn.QueryRowContext(waitCtx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&acquired)
		if err == nil && acquired {
			break
		}
		if err != nil && waitCtx.Err() == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to try advisory lock %s: %w", key, err)
		}
		select {
		case <-waitCtx.Done():
			conn.Close()
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, key, l.timeout)
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Разблокировка не должна зависеть от отмененного контекста запроса.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.ExecContext(unlockCtx, "SELECT pg_advisory_unlock(hashtext($1))", key); err != nil {
				log.Printf("failed to release advisory lock %s: %v", key, err)
				// Сессия все еще держит блокировку, поэтому соединение нельзя возвращать в пул.
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
			if err := conn.Close(); err != nil {
				log.Printf("failed to return lock connection %s: %v", key, err)
			}
		})
	}, nil
}
