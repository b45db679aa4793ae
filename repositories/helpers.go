package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
)

// SQLExecutor позволяет выполнять запросы как через *sql.DB, так и внутри *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func execQ(ctx context.Context, exec SQLExecutor, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return exec.ExecContext(ctx, query, args...)
}

func queryQ(ctx context.Context, exec SQLExecutor, q sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return exec.QueryContext(ctx, query, args...)
}

func rowQ(ctx context.Context, exec SQLExecutor, q sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return exec.QueryRowContext(ctx, query, args...), nil
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("Error during rollback: %v. Original error: %v", rbErr, txErr)
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// nextID returns max(id)+1 for the table, 1 when it is empty. The caller must
// hold a self-conflicting table lock so two writers never see the same max.
func nextID(ctx context.Context, exec SQLExecutor, table string) (int, error) {
	row, err := rowQ(ctx, exec, psql.Select("COALESCE(MAX(id), 0) + 1").From(table))
	if err != nil {
		return 0, err
	}
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to compute next id for %s: %w", table, err)
	}
	return id, nil
}

func lockTable(ctx context.Context, exec SQLExecutor, table string) error {
	// pq не поддерживает плейсхолдеры для идентификаторов, имя таблицы берется только из констант пакета.
	if _, err := exec.ExecContext(ctx, "LOCK TABLE "+table+" IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("failed to lock table %s: %w", table, err)
	}
	return nil
}

// nextMemoryID mirrors nextID for the in-memory arenas.
func nextMemoryID[T any](rows map[int]T) int {
	maxID := 0
	for id := range rows {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}
