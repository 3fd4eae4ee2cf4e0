package jsonable

import (
	"math"
	"reflect"

	json "github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reserved item fields
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Item is one embedded record of a jsonable field.
// Fields keep the order in which they were first set; nested objects are *Item
// and nested lists are []any.
type Item struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewItem creates an empty item
func NewItem() *Item {
	return &Item{fields: orderedmap.New[string, any]()}
}

// ItemOf builds an item from alternating key/value pairs.
//
// Example:
//
//	item := jsonable.ItemOf("type", "like", "count", 5)
func ItemOf(pairs ...any) *Item {
	it := NewItem()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		it.Set(key, pairs[i+1])
	}
	return it
}

func (it *Item) init() {
	if it.fields == nil {
		it.fields = orderedmap.New[string, any]()
	}
}

// Get returns the value of a field and whether it is present
func (it *Item) Get(key string) (any, bool) {
	if it == nil || it.fields == nil {
		return nil, false
	}
	return it.fields.Get(key)
}

// Value returns the value of a field, or nil when absent
func (it *Item) Value(key string) any {
	v, _ := it.Get(key)
	return v
}

// Has reports whether the field is present (even if its value is null)
func (it *Item) Has(key string) bool {
	_, ok := it.Get(key)
	return ok
}

// Set assigns a field. An existing field keeps its position.
func (it *Item) Set(key string, value any) {
	it.init()
	it.fields.Set(key, value)
}

// Delete removes a field
func (it *Item) Delete(key string) {
	if it == nil || it.fields == nil {
		return
	}
	it.fields.Delete(key)
}

// Len returns the number of fields
func (it *Item) Len() int {
	if it == nil || it.fields == nil {
		return 0
	}
	return it.fields.Len()
}

// Keys returns field names in order
func (it *Item) Keys() []string {
	if it == nil || it.fields == nil {
		return nil
	}
	keys := make([]string, 0, it.fields.Len())
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// ID returns the item's identifier when it holds an integral number
func (it *Item) ID() (int64, bool) {
	v, ok := it.Get(FieldID)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// HasID reports whether the item's identifier equals id
func (it *Item) HasID(id int64) bool {
	got, ok := it.ID()
	return ok && got == id
}

// Contains reports whether any top-level field holds value
func (it *Item) Contains(value any) bool {
	if it == nil || it.fields == nil {
		return false
	}
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		if sameValue(pair.Value, value) {
			return true
		}
	}
	return false
}

// Map returns a plain map copy of the item; nested items become maps too
func (it *Item) Map() map[string]any {
	out := make(map[string]any, it.Len())
	if it == nil || it.fields == nil {
		return out
	}
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = plainValue(pair.Value)
	}
	return out
}

// Clone returns a deep copy of the item
func (it *Item) Clone() *Item {
	out := NewItem()
	if it == nil || it.fields == nil {
		return out
	}
	for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, cloneValue(pair.Value))
	}
	return out
}

// MarshalJSON encodes the item as a JSON object in field order
func (it *Item) MarshalJSON() ([]byte, error) {
	if it == nil || it.fields == nil {
		return []byte("{}"), nil
	}
	return it.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping key order at every depth
func (it *Item) UnmarshalJSON(data []byte) error {
	v, err := decodeOrdered(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Item)
	if !ok {
		return WithContext(ErrValueMustBeArray, map[string]interface{}{
			"reason": "item must be a JSON object",
		})
	}
	it.fields = decoded.fields
	return nil
}

// String returns the item as JSON text
func (it *Item) String() string {
	data, err := json.Marshal(it)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *Item:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Item:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// toInt64 converts any integral number representation to int64
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sameValue compares two field values, treating numbers of different Go types as equal
// when they hold the same quantity
func sameValue(a, b any) bool {
	if fa, ok := toFloat64(a); ok {
		fb, ok := toFloat64(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case *Item:
		tb, ok := b.(*Item)
		if !ok || ta.Len() != tb.Len() {
			return false
		}
		for _, k := range ta.Keys() {
			vb, ok := tb.Get(k)
			if !ok || !sameValue(ta.Value(k), vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !sameValue(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
