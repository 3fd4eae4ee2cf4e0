package jsonable

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Jsonable is the collection of items held by one jsonable field of one record.
//
// A Jsonable is built from the field's current stored value, changed in memory
// and written back through Record.SetField after every mutation. It is not safe
// for concurrent use; build one per read-then-mutate sequence. Two instances over
// the same field overwrite each other (last write wins).
type Jsonable struct {
	items      []*Item
	field      string
	record     Record
	schema     Schema
	timestamps bool
	ids        bool
	assigned   int64 // highest id handed out by this instance
	model      string
	clock      func() time.Time
	logger     Logger
	metrics    Metrics
}

// Option configures a Jsonable
type Option func(*Jsonable)

// WithSchema restricts items to the given ordered field names.
// An empty schema is the same as none.
func WithSchema(schema Schema) Option {
	return func(j *Jsonable) {
		if schema.IsEmpty() {
			schema = nil
		}
		j.schema = schema
	}
}

// WithTimestamps enables created_at/updated_at bookkeeping
func WithTimestamps(enabled bool) Option {
	return func(j *Jsonable) {
		j.timestamps = enabled
	}
}

// WithoutIDs disables identifier assignment; the collection becomes an append-only log
func WithoutIDs() Option {
	return func(j *Jsonable) {
		j.ids = false
	}
}

// WithClock sets the time source for timestamps
func WithClock(clock func() time.Time) Option {
	return func(j *Jsonable) {
		if clock != nil {
			j.clock = clock
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(j *Jsonable) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics Metrics) Option {
	return func(j *Jsonable) {
		if metrics != nil {
			j.metrics = metrics
		}
	}
}

// WithModelName names the owning model in errors and logs
func WithModelName(name string) Option {
	return func(j *Jsonable) {
		j.model = name
	}
}

// New parses raw into a collection bound to field on rec.
//
// Example:
//
//	actions, err := jsonable.New(raw, "actions", rec,
//	    jsonable.WithSchema(jsonable.Schema{"type", "count"}),
//	    jsonable.WithTimestamps(true),
//	)
//	id, err := actions.Add(ctx, "like", 5)
func New(raw any, field string, rec Record, opts ...Option) (*Jsonable, error) {
	j := &Jsonable{
		field:   field,
		record:  rec,
		ids:     true,
		clock:   time.Now,
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(j)
	}

	if rec == nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  field,
			"reason": "record is required",
		})
	}
	if err := j.schema.Validate(); err != nil {
		return nil, err
	}

	items, err := Normalize(raw)
	if err != nil {
		j.metrics.Increment(MetricParseError)
		return nil, fmt.Errorf("%s: %w", j.name(), err)
	}
	j.items = items
	return j, nil
}

// Open reads field from rec and parses it
func Open(ctx context.Context, rec Record, field string, opts ...Option) (*Jsonable, error) {
	if rec == nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  field,
			"reason": "record is required",
		})
	}
	raw, err := rec.Field(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("read field %s: %w", field, err)
	}
	return New(raw, field, rec, opts...)
}

// Add creates an item from args, appends it and persists the collection.
// It returns the new item's id, or 0 when ids are disabled.
//
// Example:
//
//	id, err := contents.Add(ctx, map[string]any{"title": "Hello kitty"})
//	id, err := actions.Add(ctx, "like", 5) // with Schema{"type", "count"}
func (j *Jsonable) Add(ctx context.Context, args ...any) (int64, error) {
	item, err := j.schema.Build(args)
	if err != nil {
		j.metrics.Increment(MetricSchemaRejected)
		j.logger.Warn("item rejected", "model", j.model, "field", j.field, "args", len(args), "error", err)
		return 0, fmt.Errorf("%s: %w", j.name(), err)
	}

	if j.timestamps {
		now := j.now()
		item.Set(FieldCreatedAt, now)
		item.Set(FieldUpdatedAt, now)
	}

	var id int64
	if j.ids {
		id = j.nextID()
		j.assigned = id
		item = withID(item, id)
	}

	j.items = append(j.items, item)
	return id, j.save(ctx, OpAdd)
}

// Change sets one field of the item with the given id and persists the collection.
// The id field cannot be changed. It returns the item, or nil if none matched.
func (j *Jsonable) Change(ctx context.Context, id int64, field string, value any) (*Item, error) {
	changes := NewItem()
	changes.Set(field, value)
	return j.apply(ctx, OpChange, id, changes)
}

// Update sets every field in fields except id on the item with the given id and
// persists the collection. New fields are added in key order.
func (j *Jsonable) Update(ctx context.Context, id int64, fields map[string]any) (*Item, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := NewItem()
	for _, k := range keys {
		changes.Set(k, fields[k])
	}
	return j.apply(ctx, OpUpdate, id, changes)
}

// UpdateItem is Update with fields applied in the order they appear in changes
func (j *Jsonable) UpdateItem(ctx context.Context, id int64, changes *Item) (*Item, error) {
	return j.apply(ctx, OpUpdate, id, changes)
}

// Remove deletes the item with the given id and persists the collection.
// Removing an id that does not exist is not an error.
func (j *Jsonable) Remove(ctx context.Context, id int64) (bool, error) {
	kept := make([]*Item, 0, len(j.items))
	for _, it := range j.items {
		if !it.HasID(id) {
			kept = append(kept, it)
		}
	}
	j.items = kept

	if err := j.save(ctx, OpRemove); err != nil {
		return true, err
	}
	return true, nil
}

// Get returns the first item with the given id, or nil
func (j *Jsonable) Get(id int64) *Item {
	for _, it := range j.items {
		if it.HasID(id) {
			return it
		}
	}
	return nil
}

// All returns the items in insertion order
func (j *Jsonable) All() []*Item {
	out := make([]*Item, len(j.items))
	copy(out, j.items)
	return out
}

// First returns the first item, or nil when empty
func (j *Jsonable) First() *Item {
	if len(j.items) == 0 {
		return nil
	}
	return j.items[0]
}

// Last returns the last item, or nil when empty
func (j *Jsonable) Last() *Item {
	if len(j.items) == 0 {
		return nil
	}
	return j.items[len(j.items)-1]
}

// Len returns the number of items
func (j *Jsonable) Len() int {
	return len(j.items)
}

// Field returns the name of the field this collection belongs to
func (j *Jsonable) Field() string {
	return j.field
}

// Schema returns the configured schema, nil when none
func (j *Jsonable) Schema() Schema {
	return j.schema
}

// Serialize encodes the collection as a JSON array
func (j *Jsonable) Serialize() ([]byte, error) {
	items := j.items
	if items == nil {
		items = []*Item{}
	}
	return json.Marshal(items)
}

// ToJSON returns the serialized collection as text, "[]" if encoding fails
func (j *Jsonable) ToJSON() string {
	data, err := j.Serialize()
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (j *Jsonable) apply(ctx context.Context, op string, id int64, changes *Item) (*Item, error) {
	var found *Item
	for _, it := range j.items {
		if !it.HasID(id) {
			continue
		}
		for _, k := range changes.Keys() {
			if k == FieldID {
				continue
			}
			it.Set(k, normalizeValue(changes.Value(k)))
		}
		if j.timestamps {
			it.Set(FieldUpdatedAt, j.now())
		}
		if found == nil {
			found = it
		}
	}

	if err := j.save(ctx, op); err != nil {
		return found, err
	}
	return found, nil
}

// nextID returns one more than the highest id in the collection or handed out by
// this instance, 1 for a fresh empty collection. A collection reloaded after its
// highest item was removed hands that id out again.
func (j *Jsonable) nextID() int64 {
	highest := j.assigned
	for _, it := range j.items {
		if id, ok := it.ID(); ok && id > highest {
			highest = id
		}
	}
	return highest + 1
}

func (j *Jsonable) save(ctx context.Context, op string) error {
	j.metrics.Increment(MetricItemOperations, "operation", op)
	j.metrics.Gauge(MetricCollectionSize, float64(len(j.items)))

	data, err := j.Serialize()
	if err != nil {
		j.metrics.Increment(MetricItemErrors, "operation", op)
		return fmt.Errorf("%s: encode: %w", j.name(), err)
	}

	start := time.Now()
	err = j.record.SetField(ctx, j.field, data)
	j.metrics.Timing(MetricPersistDuration, time.Since(start))

	if err != nil {
		j.metrics.Increment(MetricPersistError)
		j.metrics.Increment(MetricItemErrors, "operation", op)
		j.logger.Error("failed to persist jsonable field",
			"model", j.model,
			"field", j.field,
			"operation", op,
			"error", err,
		)
		return fmt.Errorf("%s: persist %s: %w", j.name(), op, err)
	}

	j.metrics.Increment(MetricPersistSuccess)
	j.logger.Debug("jsonable field persisted", "model", j.model, "field", j.field, "operation", op, "items", len(j.items))
	return nil
}

func (j *Jsonable) now() string {
	return j.clock().UTC().Format(TimestampLayout)
}

func (j *Jsonable) name() string {
	if j.model == "" {
		return j.field
	}
	return j.model + "." + j.field
}

// withID returns item with id as its first field
func withID(item *Item, id int64) *Item {
	out := NewItem()
	out.Set(FieldID, id)
	for _, k := range item.Keys() {
		if k != FieldID {
			out.Set(k, item.Value(k))
		}
	}
	return out
}
