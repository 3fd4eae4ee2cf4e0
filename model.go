package jsonable

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Model is the static jsonable configuration of one kind of record.
//
// Fields maps each jsonable column to its schema; a nil or empty schema marks a
// jsonable column whose items are stored verbatim.
//
// Example:
//
//	posts := &jsonable.Model{
//	    Name: "posts",
//	    Fields: map[string]jsonable.Schema{
//	        "contents": nil,
//	        "actions":  {"type", "count"},
//	    },
//	    Timestamps:   true,
//	    StrictSchema: true,
//	}
//	actions, err := posts.Open(ctx, rec, "actions")
type Model struct {
	Name         string
	Fields       map[string]Schema
	Timestamps   bool
	StrictSchema bool
	DisableIDs   bool

	Clock   func() time.Time
	Logger  Logger
	Metrics Metrics
}

// Validate checks every configured schema
func (m *Model) Validate() error {
	for name, schema := range m.Fields {
		if name == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"model":  m.Name,
				"reason": "jsonable field name is empty",
			})
		}
		if err := schema.Validate(); err != nil {
			return fmt.Errorf("%s.%s: %w", m.Name, name, err)
		}
	}
	return nil
}

// IsJsonable reports whether name is a configured jsonable field
func (m *Model) IsJsonable(name string) bool {
	_, ok := m.Fields[name]
	return ok
}

// SchemaFor returns the schema of a jsonable field, nil when it has none
func (m *Model) SchemaFor(name string) Schema {
	return m.Fields[name]
}

// JsonableFields returns the configured field names in sorted order
func (m *Model) JsonableFields() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns the engine options for a jsonable field
func (m *Model) Options(name string) []Option {
	opts := []Option{
		WithSchema(m.SchemaFor(name)),
		WithTimestamps(m.Timestamps),
		WithModelName(m.Name),
		WithClock(m.Clock),
		WithLogger(m.Logger),
		WithMetrics(m.Metrics),
	}
	if m.DisableIDs {
		opts = append(opts, WithoutIDs())
	}
	return opts
}

// Field reads a column of rec. Jsonable columns come back as *Jsonable,
// any other column as its raw stored value.
func (m *Model) Field(ctx context.Context, rec Record, name string) (any, error) {
	if m.IsJsonable(name) {
		return m.Open(ctx, rec, name)
	}
	return rec.Field(ctx, name)
}

// Open returns the collection held by a jsonable column of rec
func (m *Model) Open(ctx context.Context, rec Record, name string) (*Jsonable, error) {
	if !m.IsJsonable(name) {
		return nil, WithContext(ErrFieldNotJsonable, map[string]interface{}{
			"model": m.Name,
			"field": name,
		})
	}
	return Open(ctx, rec, name, m.Options(name)...)
}

// EncodeCreate prepares attributes for the first write of a new record.
//
// Each jsonable field given as a record (not as text) becomes a one-item JSON
// array: fields outside the schema are dropped in strict mode, the item gets
// id 1 and, with timestamps, created_at/updated_at. Text values and other
// attributes pass through. attrs is not modified.
func (m *Model) EncodeCreate(attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}

	clock := m.Clock
	if clock == nil {
		clock = time.Now
	}

	for _, name := range m.JsonableFields() {
		raw, ok := attrs[name]
		if !ok || raw == nil {
			continue
		}
		if isText(raw) {
			continue
		}

		item, ok := asItem(raw)
		if !ok {
			return nil, WithContext(ErrValueMustBeArray, map[string]interface{}{
				"model": m.Name,
				"field": name,
				"type":  fmt.Sprintf("%T", raw),
			})
		}

		if schema := m.SchemaFor(name); !schema.IsEmpty() {
			if m.StrictSchema {
				item = schema.Filter(item)
			} else {
				item = schema.Order(item)
			}
		}
		if !m.DisableIDs {
			item = withID(item, 1)
		}
		if m.Timestamps {
			now := clock().UTC().Format(TimestampLayout)
			item.Set(FieldCreatedAt, now)
			item.Set(FieldUpdatedAt, now)
		}

		data, err := json.Marshal([]*Item{item})
		if err != nil {
			return nil, fmt.Errorf("%s.%s: encode: %w", m.Name, name, err)
		}
		out[name] = string(data)
	}
	return out, nil
}
