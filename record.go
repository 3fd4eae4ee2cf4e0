package jsonable

import "context"

// Record is the owning row of a jsonable field.
//
// Implementations exist for JSON documents in a Backend (DocumentRecord),
// Redis hashes (RedisRecord) and PostgreSQL rows (PostgresRecord).
type Record interface {
	// Field returns the raw stored value of a column, or nil when it has none.
	Field(ctx context.Context, name string) (any, error)

	// SetField stores value in a column and durably saves the record.
	SetField(ctx context.Context, name string, value []byte) error
}

// MemoryRecord is a Record held in a map. Saves counts SetField calls.
// Useful in tests and for staging values before a record exists.
type MemoryRecord struct {
	Values map[string]any
	Saves  int
	Err    error
}

// NewMemoryRecord creates an in-memory record
func NewMemoryRecord() *MemoryRecord {
	return &MemoryRecord{Values: make(map[string]any)}
}

func (r *MemoryRecord) Field(ctx context.Context, name string) (any, error) {
	return r.Values[name], nil
}

func (r *MemoryRecord) SetField(ctx context.Context, name string, value []byte) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[name] = string(value)
	r.Saves++
	return nil
}
