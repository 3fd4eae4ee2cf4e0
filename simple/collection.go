package simple

import (
	"context"
	"fmt"
	"time"

	"github.com/adrianmcphee/jsonable"
)

// Collection is a kind of record with jsonable fields, stored as documents
// in the DB's backend.
//
// Example:
//
//	posts, err := simple.NewCollection(db, "posts",
//	    simple.Field("contents", nil),
//	    simple.Field("actions", jsonable.Schema{"type", "count"}),
//	    simple.Timestamps(),
//	)
//	post, err := posts.Create(ctx, map[string]any{"title": "Hello"})
//	actions, err := posts.Jsonable(ctx, post.ID(), "actions")
//	id, err := actions.Add(ctx, "like", 1)
type Collection struct {
	db    *DB
	model *jsonable.Model
}

// CollectionOption configures the model of a collection.
type CollectionOption func(*jsonable.Model)

// Field declares a jsonable field. A nil schema stores items verbatim.
func Field(name string, schema jsonable.Schema) CollectionOption {
	return func(m *jsonable.Model) {
		m.Fields[name] = schema
	}
}

// Timestamps enables created_at/updated_at on every item.
func Timestamps() CollectionOption {
	return func(m *jsonable.Model) {
		m.Timestamps = true
	}
}

// StrictSchema drops non-schema keys from items given at record creation.
func StrictSchema() CollectionOption {
	return func(m *jsonable.Model) {
		m.StrictSchema = true
	}
}

// WithoutIDs turns every jsonable field of the collection into an append-only log.
func WithoutIDs() CollectionOption {
	return func(m *jsonable.Model) {
		m.DisableIDs = true
	}
}

// NewCollection registers a collection named name with the DB's store.
func NewCollection(db *DB, name string, opts ...CollectionOption) (*Collection, error) {
	model := &jsonable.Model{
		Name:    name,
		Fields:  make(map[string]jsonable.Schema),
		Logger:  db.logger,
		Metrics: db.metrics,
	}
	for _, opt := range opts {
		opt(model)
	}

	if err := db.store.Register(model); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return &Collection{db: db, model: model}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.model.Name
}

// Model returns the collection's jsonable configuration.
func (c *Collection) Model() *jsonable.Model {
	return c.model
}

// Create stores a new record. Jsonable fields may be given as a single item
// (map) or as JSON text.
func (c *Collection) Create(ctx context.Context, attrs map[string]any) (*jsonable.DocumentRecord, error) {
	rec, err := c.db.store.Create(ctx, c.model.Name, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create: %w", err)
	}
	return rec, nil
}

// Get loads a record by id.
func (c *Collection) Get(ctx context.Context, id string) (*jsonable.DocumentRecord, error) {
	return c.db.store.Load(ctx, c.model.Name, id)
}

// Delete removes a record by id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.db.store.Delete(ctx, c.model.Name, id)
}

// Jsonable returns the items held by field of the record with the given id.
func (c *Collection) Jsonable(ctx context.Context, id, field string) (*jsonable.Jsonable, error) {
	return c.db.store.Open(ctx, c.model.Name, id, field)
}

// Attach opens field of any record (Redis hash, Postgres row) with the collection's configuration.
//
// Example:
//
//	rec, _ := db.RedisRecord("post:42")
//	actions, err := posts.Attach(ctx, rec, "actions")
func (c *Collection) Attach(ctx context.Context, rec jsonable.Record, field string) (*jsonable.Jsonable, error) {
	return c.model.Open(ctx, rec, field)
}

// Mutate opens field of the record with the given id and passes it to fn.
// With Redis configured the whole cycle holds a distributed lock on the
// record, so concurrent processes cannot overwrite each other's items.
//
// Example:
//
//	err := posts.Mutate(ctx, post.ID(), "actions", func(actions *jsonable.Jsonable) error {
//	    _, err := actions.Add(ctx, "like", 1)
//	    return err
//	})
func (c *Collection) Mutate(ctx context.Context, id, field string, fn func(*jsonable.Jsonable) error) error {
	run := func() error {
		items, err := c.Jsonable(ctx, id, field)
		if err != nil {
			return err
		}
		return fn(items)
	}

	if c.db.lock == nil {
		return run()
	}
	key := c.model.Name + "/" + id
	return c.db.lock.WithLock(ctx, key, 10*time.Second, run)
}
