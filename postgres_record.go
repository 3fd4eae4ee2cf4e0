package jsonable

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresRecord
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresRecord is a Record backed by one row of a PostgreSQL table.
// The jsonable column may be text, json or jsonb.
type PostgresRecord struct {
	DB        PgxPool
	Table     string
	KeyColumn string
	Key       any
}

// NewPostgresRecord binds a record to the row of table where keyColumn = key
func NewPostgresRecord(db PgxPool, table, keyColumn string, key any) *PostgresRecord {
	return &PostgresRecord{DB: db, Table: table, KeyColumn: keyColumn, Key: key}
}

// Field reads one column of the row as text. A NULL column is returned as nil.
func (r *PostgresRecord) Field(ctx context.Context, name string) (any, error) {
	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s = $1",
		pgx.Identifier{name}.Sanitize(),
		pgx.Identifier{r.Table}.Sanitize(),
		pgx.Identifier{r.KeyColumn}.Sanitize(),
	)

	var value *string
	if err := r.DB.QueryRow(ctx, query, r.Key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, WithContext(ErrNotFound, map[string]interface{}{
				"table": r.Table,
				"key":   r.Key,
			})
		}
		return nil, fmt.Errorf("select %s.%s: %w", r.Table, name, err)
	}
	if value == nil {
		return nil, nil
	}
	return *value, nil
}

func (r *PostgresRecord) SetField(ctx context.Context, name string, value []byte) error {
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2",
		pgx.Identifier{r.Table}.Sanitize(),
		pgx.Identifier{name}.Sanitize(),
		pgx.Identifier{r.KeyColumn}.Sanitize(),
	)

	tag, err := r.DB.Exec(ctx, query, string(value), r.Key)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", r.Table, name, err)
	}
	if tag.RowsAffected() == 0 {
		return WithContext(ErrNotFound, map[string]interface{}{
			"table": r.Table,
			"key":   r.Key,
		})
	}
	return nil
}
