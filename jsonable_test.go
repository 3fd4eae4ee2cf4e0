package jsonable

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock returns a clock that advances one second per call
func fakeClock() func() time.Time {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestJsonable(t *testing.T, raw any, opts ...Option) (*Jsonable, *MemoryRecord) {
	t.Helper()

	rec := NewMemoryRecord()
	j, err := New(raw, "items", rec, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return j, rec
}

func TestJsonable_EndToEnd(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, nil)

	id, err := j.Add(ctx, map[string]any{"title": "Hello kitty"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}
	if len(j.All()) != 1 {
		t.Fatalf("expected 1 item, got %d", len(j.All()))
	}
	if got := j.All()[0].Value("title"); got != "Hello kitty" {
		t.Errorf("expected title 'Hello kitty', got %v", got)
	}
	if rec.Values["items"] != `[{"id":1,"title":"Hello kitty"}]` {
		t.Errorf("unexpected stored value: %v", rec.Values["items"])
	}

	removed, err := j.Remove(ctx, 1)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Error("expected Remove to return true")
	}
	if len(j.All()) != 0 {
		t.Errorf("expected empty collection, got %d items", len(j.All()))
	}
	if rec.Values["items"] != "[]" {
		t.Errorf("expected stored '[]', got %v", rec.Values["items"])
	}
	if rec.Saves != 2 {
		t.Errorf("expected 2 saves, got %d", rec.Saves)
	}
}

func TestJsonable_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"empty array", "[]"},
		{"json null", "null"},
		{"whitespace", "  \n"},
		{"empty object", "{}"},
		{"empty bytes", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, _ := newTestJsonable(t, tt.raw)
			if j.Len() != 0 {
				t.Errorf("expected empty collection, got %d items", j.Len())
			}
			if j.ToJSON() != "[]" {
				t.Errorf("expected '[]', got %s", j.ToJSON())
			}
		})
	}
}

func TestJsonable_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"scalar", "42"},
		{"array of scalars", "[1,2]"},
		{"broken json", "[{"},
		{"integer", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.raw, "items", NewMemoryRecord())
			if !IsValueMustBeArray(err) {
				t.Errorf("expected ErrValueMustBeArray, got %v", err)
			}
		})
	}
}

func TestJsonable_NilRecord(t *testing.T) {
	_, err := New(nil, "items", nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestJsonable_RoundTrip(t *testing.T) {
	raw := `[{"id":1,"title":"a","meta":{"z":1,"a":[1,2.5,"x",null,true]}},{"id":2,"title":"b"}]`
	j, _ := newTestJsonable(t, raw)

	first, err := j.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != raw {
		t.Errorf("serialize changed the document:\n got %s\nwant %s", first, raw)
	}

	again, _ := newTestJsonable(t, first)
	second, err := again.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != string(first) {
		t.Errorf("round trip not idempotent:\n got %s\nwant %s", second, first)
	}
}

func TestJsonable_IDMonotonicity(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, nil)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := j.Add(ctx, map[string]any{"n": i})
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}

	if _, err := j.Remove(ctx, last); err != nil {
		t.Fatal(err)
	}
	id, err := j.Add(ctx, map[string]any{"n": "after remove"})
	if err != nil {
		t.Fatal(err)
	}
	if id <= last {
		t.Errorf("expected id greater than %d after removing the tail, got %d", last, id)
	}
}

func TestJsonable_IDContinuesFromStoredItems(t *testing.T) {
	j, _ := newTestJsonable(t, `[{"id":3},{"id":7},{"id":5}]`)

	id, err := j.Add(context.Background(), map[string]any{"x": 1})
	if err != nil {
		t.Fatal(err)
	}
	if id != 8 {
		t.Errorf("expected id 8, got %d", id)
	}
}

func TestJsonable_SchemaFiltering(t *testing.T) {
	j, _ := newTestJsonable(t, nil, WithSchema(Schema{"type", "count"}))

	id, err := j.Add(context.Background(), map[string]any{"type": "like", "count": 5, "extra": "x"})
	if err != nil {
		t.Fatal(err)
	}

	item := j.Get(id)
	if got := item.Keys(); len(got) != 3 || got[0] != "id" || got[1] != "type" || got[2] != "count" {
		t.Errorf("expected keys [id type count], got %v", got)
	}
	if item.Has("extra") {
		t.Error("expected extra to be dropped")
	}
}

func TestJsonable_SchemaPositional(t *testing.T) {
	j, _ := newTestJsonable(t, nil, WithSchema(Schema{"type", "count"}))

	id, err := j.Add(context.Background(), "like", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := j.Get(id).String(); got != `{"id":1,"type":"like","count":5}` {
		t.Errorf("unexpected item: %s", got)
	}

	id, err = j.Add(context.Background(), "view")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := j.Get(id).Get("count"); !ok || v != nil {
		t.Errorf("expected missing positional value to be null, got %v (present=%v)", v, ok)
	}
}

func TestJsonable_NoSchemaRejectsMultipleArgs(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, nil)

	if _, err := j.Add(ctx, "a", "b"); !IsInvalidSchema(err) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}
	if _, err := j.Add(ctx, "a"); !IsInvalidSchema(err) {
		t.Errorf("expected ErrInvalidSchema for a scalar, got %v", err)
	}
	if _, err := j.Add(ctx); !IsInvalidSchema(err) {
		t.Errorf("expected ErrInvalidSchema for no args, got %v", err)
	}
	if rec.Saves != 0 {
		t.Errorf("rejected adds must not persist, got %d saves", rec.Saves)
	}

	if _, err := j.Add(ctx, map[string]any{"x": 1}); err != nil {
		t.Errorf("expected keyed add to succeed, got %v", err)
	}
}

func TestJsonable_EmptySchemaActsAsNone(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, nil, WithSchema(Schema{}))

	if j.Schema() != nil {
		t.Errorf("expected empty schema to be dropped, got %v", j.Schema())
	}
	if _, err := j.Add(ctx, "a", "b"); !IsInvalidSchema(err) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}

	id, err := j.Add(ctx, map[string]any{"title": "Hello kitty"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}
	if got := rec.Values["items"]; got != `[{"id":1,"title":"Hello kitty"}]` {
		t.Errorf("unexpected stored value: %v", got)
	}
}

func TestJsonable_ChangeKeepsID(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, `[{"id":1,"title":"a"},{"id":2,"title":"b"}]`)

	item, err := j.Change(ctx, 1, "id", 999)
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := item.ID(); id != 1 {
		t.Errorf("expected id to stay 1, got %d", id)
	}
	if j.Get(999) != nil {
		t.Error("expected no item with id 999")
	}
}

func TestJsonable_ChangePreservesOtherItems(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, `[{"id":1,"title":"a"},{"id":2,"title":"b"},{"id":3,"title":"c"}]`)

	item, err := j.Change(ctx, 2, "title", "B")
	if err != nil {
		t.Fatal(err)
	}
	if item.Value("title") != "B" {
		t.Errorf("expected title 'B', got %v", item.Value("title"))
	}
	want := `[{"id":1,"title":"a"},{"id":2,"title":"B"},{"id":3,"title":"c"}]`
	if rec.Values["items"] != want {
		t.Errorf("unexpected stored value:\n got %v\nwant %s", rec.Values["items"], want)
	}
}

func TestJsonable_ChangeUnknownID(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, `[{"id":1,"title":"a"}]`)

	item, err := j.Change(ctx, 42, "title", "x")
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Errorf("expected nil item, got %s", item)
	}
	if rec.Saves != 1 {
		t.Errorf("expected the collection to be written, got %d saves", rec.Saves)
	}
}

func TestJsonable_Update(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, `[{"id":1,"title":"a","count":1}]`)

	item, err := j.Update(ctx, 1, map[string]any{"count": 2, "id": 50, "tag": "new"})
	if err != nil {
		t.Fatal(err)
	}
	if got := item.String(); got != `{"id":1,"title":"a","count":2,"tag":"new"}` {
		t.Errorf("unexpected item: %s", got)
	}
}

func TestJsonable_UpdateItemKeepsOrder(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, `[{"id":1}]`)

	item, err := j.UpdateItem(ctx, 1, ItemOf("zeta", 1, "alpha", 2))
	if err != nil {
		t.Fatal(err)
	}
	if got := item.String(); got != `{"id":1,"zeta":1,"alpha":2}` {
		t.Errorf("unexpected item: %s", got)
	}
}

func TestJsonable_Timestamps(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, nil, WithTimestamps(true), WithClock(fakeClock()))

	id, err := j.Add(ctx, map[string]any{"title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	item := j.Get(id)
	created := item.Value(FieldCreatedAt)
	if created == nil || created != item.Value(FieldUpdatedAt) {
		t.Fatalf("expected equal timestamps, got %v and %v", created, item.Value(FieldUpdatedAt))
	}
	if created != "2024-01-02T03:04:06.000000Z" {
		t.Errorf("unexpected timestamp format: %v", created)
	}

	item, err = j.Change(ctx, id, "title", "b")
	if err != nil {
		t.Fatal(err)
	}
	if item.Value(FieldCreatedAt) != created {
		t.Errorf("created_at changed: %v", item.Value(FieldCreatedAt))
	}
	updated, _ := item.Value(FieldUpdatedAt).(string)
	if updated <= created.(string) {
		t.Errorf("expected updated_at after %v, got %v", created, updated)
	}
}

func TestJsonable_Remove(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJsonable(t, `[{"id":1},{"id":2},{"id":3}]`)

	removed, err := j.Remove(ctx, 2)
	if err != nil || !removed {
		t.Fatalf("Remove(2) = %v, %v", removed, err)
	}
	if j.Len() != 2 {
		t.Errorf("expected 2 items, got %d", j.Len())
	}
	if j.Get(2) != nil {
		t.Error("expected Get(2) to return nil after remove")
	}

	removed, err = j.Remove(ctx, 42)
	if err != nil || !removed {
		t.Fatalf("Remove(42) = %v, %v", removed, err)
	}
	if j.Len() != 2 {
		t.Errorf("expected unknown id removal to keep 2 items, got %d", j.Len())
	}
}

func TestJsonable_WithoutIDs(t *testing.T) {
	ctx := context.Background()
	j, rec := newTestJsonable(t, nil, WithoutIDs(), WithSchema(Schema{"event"}))

	id, err := j.Add(ctx, "login")
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Errorf("expected id 0 without ids, got %d", id)
	}
	if rec.Values["items"] != `[{"event":"login"}]` {
		t.Errorf("unexpected stored value: %v", rec.Values["items"])
	}
}

func TestJsonable_Accessors(t *testing.T) {
	j, _ := newTestJsonable(t, `[{"id":1,"n":"a"},{"id":2,"n":"b"}]`, WithSchema(Schema{"n"}))

	if j.First().Value("n") != "a" {
		t.Errorf("unexpected first: %s", j.First())
	}
	if j.Last().Value("n") != "b" {
		t.Errorf("unexpected last: %s", j.Last())
	}
	if j.Field() != "items" {
		t.Errorf("unexpected field: %s", j.Field())
	}
	if len(j.Schema()) != 1 {
		t.Errorf("unexpected schema: %v", j.Schema())
	}

	all := j.All()
	all[0] = nil
	if j.First() == nil {
		t.Error("All must return a copy of the item list")
	}

	empty, _ := newTestJsonable(t, nil)
	if empty.First() != nil || empty.Last() != nil {
		t.Error("expected nil first/last on empty collection")
	}
}

func TestJsonable_PersistError(t *testing.T) {
	ctx := context.Background()
	metrics := NewInMemoryMetrics()
	j, rec := newTestJsonable(t, nil, WithMetrics(metrics))
	rec.Err = errors.New("disk full")

	_, err := j.Add(ctx, map[string]any{"x": 1})
	if err == nil {
		t.Fatal("expected persist error")
	}
	if !errors.Is(err, rec.Err) {
		t.Errorf("expected wrapped record error, got %v", err)
	}
	if metrics.Counters[MetricPersistError] != 1 {
		t.Errorf("expected persist error to be counted, got %d", metrics.Counters[MetricPersistError])
	}
}

func TestJsonable_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewInMemoryMetrics()
	j, _ := newTestJsonable(t, nil, WithMetrics(metrics))

	if _, err := j.Add(ctx, map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Add(ctx, "a", "b"); err == nil {
		t.Fatal("expected schema error")
	}

	if metrics.Counters[MetricItemOperations] != 1 {
		t.Errorf("expected 1 operation, got %d", metrics.Counters[MetricItemOperations])
	}
	if metrics.Counters[MetricPersistSuccess] != 1 {
		t.Errorf("expected 1 persist success, got %d", metrics.Counters[MetricPersistSuccess])
	}
	if metrics.Counters[MetricSchemaRejected] != 1 {
		t.Errorf("expected 1 schema rejection, got %d", metrics.Counters[MetricSchemaRejected])
	}
	if metrics.Gauges[MetricCollectionSize] != 1 {
		t.Errorf("expected collection size 1, got %v", metrics.Gauges[MetricCollectionSize])
	}
}

func TestOpen_ReadsRecordField(t *testing.T) {
	rec := NewMemoryRecord()
	rec.Values["items"] = `[{"id":4,"title":"x"}]`

	j, err := Open(context.Background(), rec, "items")
	if err != nil {
		t.Fatal(err)
	}
	if j.Get(4) == nil {
		t.Error("expected item 4")
	}
}
