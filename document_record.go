package jsonable

import (
	"context"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// DocumentStore keeps owning records as JSON documents in a Backend, one
// document per record at "<collection>/<id>.json".
//
// Example:
//
//	store := jsonable.NewDocumentStore(jsonable.NewFilesystemBackend("./data"))
//	store.Register(posts)
//	rec, err := store.Create(ctx, "posts", map[string]any{
//	    "title":   "Hello",
//	    "actions": map[string]any{"type": "like", "count": 1},
//	})
//	actions, err := store.Open(ctx, "posts", rec.ID(), "actions")
type DocumentStore struct {
	backend Backend
	logger  Logger
	metrics Metrics

	mu     sync.RWMutex
	models map[string]*Model
}

// NewDocumentStore creates a store over backend
func NewDocumentStore(backend Backend) *DocumentStore {
	return &DocumentStore{
		backend: backend,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
		models:  make(map[string]*Model),
	}
}

// WithLogger sets the logger used by the store
func (s *DocumentStore) WithLogger(logger Logger) *DocumentStore {
	s.logger = logger
	return s
}

// WithMetrics sets the metrics collector used by the store
func (s *DocumentStore) WithMetrics(metrics Metrics) *DocumentStore {
	s.metrics = metrics
	return s
}

// Backend returns the underlying backend
func (s *DocumentStore) Backend() Backend {
	return s.backend
}

// Register makes model the configuration of the collection named model.Name
func (s *DocumentStore) Register(model *Model) error {
	if model == nil || model.Name == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": "model name is required",
		})
	}
	if err := model.Validate(); err != nil {
		return err
	}
	if model.Logger == nil {
		model.Logger = s.logger
	}
	if model.Metrics == nil {
		model.Metrics = s.metrics
	}

	s.mu.Lock()
	s.models[model.Name] = model
	s.mu.Unlock()
	return nil
}

// Model returns the model registered for collection
func (s *DocumentStore) Model(collection string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[collection]
	return m, ok
}

// Key returns the backend key of a record
func (s *DocumentStore) Key(collection, id string) string {
	return collection + "/" + id + DefaultDocumentSuffix
}

// Create stores a new record with a fresh id. Jsonable fields of a registered
// model are encoded by Model.EncodeCreate first.
func (s *DocumentStore) Create(ctx context.Context, collection string, attrs map[string]any) (*DocumentRecord, error) {
	if err := validateSegment("collection", collection); err != nil {
		return nil, err
	}

	encoded := attrs
	if model, ok := s.Model(collection); ok {
		var err error
		if encoded, err = model.EncodeCreate(attrs); err != nil {
			return nil, err
		}
	}

	doc := make(map[string]any, len(encoded)+1)
	for k, v := range encoded {
		doc[k] = v
	}
	id := NewID()
	doc[FieldID] = id

	rec := &DocumentRecord{store: s, collection: collection, id: id, attrs: doc}
	if err := rec.save(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug("document created", "collection", collection, "id", id)
	return rec, nil
}

// Load reads an existing record
func (s *DocumentStore) Load(ctx context.Context, collection, id string) (*DocumentRecord, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, s.Key(collection, id))
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]any)
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Key(collection, id), err)
	}
	return &DocumentRecord{store: s, collection: collection, id: id, attrs: attrs}, nil
}

// Open loads a record and returns the collection held by one of its jsonable fields
func (s *DocumentStore) Open(ctx context.Context, collection, id, field string) (*Jsonable, error) {
	model, ok := s.Model(collection)
	if !ok {
		return nil, WithContext(ErrFieldNotJsonable, map[string]interface{}{
			"collection": collection,
			"field":      field,
			"reason":     "no model registered",
		})
	}
	rec, err := s.Load(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return model.Open(ctx, rec, field)
}

// Delete removes a record
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, s.Key(collection, id))
}

// Exists reports whether a record exists
func (s *DocumentStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	if err := validateKey(collection, id); err != nil {
		return false, err
	}
	return s.backend.Exists(ctx, s.Key(collection, id))
}

func validateKey(collection, id string) error {
	if err := validateSegment("collection", collection); err != nil {
		return err
	}
	return validateSegment("id", id)
}

func validateSegment(what, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  what,
			"value":  s,
			"reason": "must be a single non-empty path segment",
		})
	}
	return nil
}

// DocumentRecord is a Record stored as one JSON document. Jsonable columns are
// held as JSON strings, the same text a relational column would hold.
type DocumentRecord struct {
	store      *DocumentStore
	collection string
	id         string

	mu    sync.RWMutex
	attrs map[string]any
}

// ID returns the record id
func (r *DocumentRecord) ID() string { return r.id }

// Collection returns the record's collection name
func (r *DocumentRecord) Collection() string { return r.collection }

// Attributes returns a copy of the stored attributes
func (r *DocumentRecord) Attributes() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

func (r *DocumentRecord) Field(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attrs[name], nil
}

// SetField replaces a column and writes the whole document back
func (r *DocumentRecord) SetField(ctx context.Context, name string, value []byte) error {
	r.mu.Lock()
	prev, had := r.attrs[name]
	r.attrs[name] = string(value)
	r.mu.Unlock()

	if err := r.save(ctx); err != nil {
		r.mu.Lock()
		if had {
			r.attrs[name] = prev
		} else {
			delete(r.attrs, name)
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *DocumentRecord) save(ctx context.Context) error {
	r.mu.RLock()
	data, err := json.Marshal(r.attrs)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.store.Key(r.collection, r.id), err)
	}
	return r.store.backend.Put(ctx, r.store.Key(r.collection, r.id), data)
}
