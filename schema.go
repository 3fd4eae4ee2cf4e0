package jsonable

import (
	"fmt"
	"reflect"
)

// Schema is the ordered list of field names an item may hold.
// An empty Schema (nil or zero length) accepts any single record verbatim.
type Schema []string

// Contains reports whether name is one of the schema's fields
func (s Schema) Contains(name string) bool {
	for _, f := range s {
		if f == name {
			return true
		}
	}
	return false
}

// Validate checks the schema has no empty or repeated names
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Schema",
				"index":  i,
				"reason": "field name is empty",
			})
		}
		if seen[f] {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Schema",
				"value":  f,
				"reason": "field name is repeated",
			})
		}
		seen[f] = true
	}
	return nil
}

// IsEmpty reports whether the schema names no fields
func (s Schema) IsEmpty() bool {
	return len(s) == 0
}

// Filter returns a copy of item holding only the fields the schema names,
// in schema order.
func (s Schema) Filter(item *Item) *Item {
	out := NewItem()
	for _, name := range s {
		if v, ok := item.Get(name); ok {
			out.Set(name, v)
		}
	}
	return out
}

// Order returns a copy of item with the schema's fields first, in schema
// order, followed by the remaining fields in their input order.
func (s Schema) Order(item *Item) *Item {
	out := s.Filter(item)
	for _, k := range item.Keys() {
		if !s.Contains(k) {
			out.Set(k, item.Value(k))
		}
	}
	return out
}

// Build shapes Add arguments into a new item.
//
// With a schema, a single keyed argument is read field by field (missing fields
// become null, unknown keys are dropped) and anything else is zipped positionally
// with the schema names. Without a schema exactly one keyed argument is required
// and is used as is.
func (s Schema) Build(args []any) (*Item, error) {
	if len(args) == 0 {
		return nil, WithContext(ErrInvalidSchema, map[string]interface{}{
			"reason": "no values given",
		})
	}

	if s.IsEmpty() {
		if len(args) > 1 {
			return nil, WithContext(ErrInvalidSchema, map[string]interface{}{
				"reason": "more than one value passed while no schema is defined; pass a single record",
				"args":   len(args),
			})
		}
		item, ok := asItem(args[0])
		if !ok {
			return nil, WithContext(ErrInvalidSchema, map[string]interface{}{
				"reason": "no schema is defined; the value must be a record",
				"type":   fmt.Sprintf("%T", args[0]),
			})
		}
		return item, nil
	}

	if len(args) == 1 && isKeyed(args[0]) {
		src, _ := asItem(args[0])
		item := NewItem()
		for _, name := range s {
			item.Set(name, src.Value(name))
		}
		return item, nil
	}

	item := NewItem()
	for i, name := range s {
		var v any
		if i < len(args) {
			v = normalizeValue(args[i])
		}
		item.Set(name, v)
	}
	return item, nil
}

func isKeyed(v any) bool {
	switch t := v.(type) {
	case *Item:
		return t != nil
	case Item:
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

