package jsonable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
)

// Normalize turns a raw field value into an ordered list of items.
//
// Accepted input:
//   - nil, empty or whitespace text, JSON null, [] and {} yield an empty list
//   - JSON text ([]byte, string, json.RawMessage) holding an array of objects
//   - structured data: slices of *Item, Item or maps with string keys
//
// Nested maps and lists are normalized at every depth, so calling Normalize on
// its own output returns equal data. Anything else fails with ErrValueMustBeArray.
func Normalize(raw any) ([]*Item, error) {
	switch v := raw.(type) {
	case nil:
		return []*Item{}, nil
	case string:
		return normalizeText([]byte(v))
	case *string:
		if v == nil {
			return []*Item{}, nil
		}
		return normalizeText([]byte(*v))
	case []byte:
		return normalizeText(v)
	}

	if isText(raw) {
		rv := reflect.ValueOf(raw)
		if rv.Kind() == reflect.String {
			return normalizeText([]byte(rv.String()))
		}
		return normalizeText(rv.Bytes())
	}
	return normalizeStructured(raw)
}

// isText reports whether v is a string or a byte slice of any named type
func isText(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return false
	}
	if rv.Kind() == reflect.String {
		return true
	}
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8
}

func normalizeText(data []byte) ([]*Item, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*Item{}, nil
	}
	decoded, err := decodeOrdered(data)
	if err != nil {
		return nil, WithContext(ErrValueMustBeArray, map[string]interface{}{
			"reason": "invalid JSON",
			"error":  err.Error(),
		})
	}
	return normalizeStructured(decoded)
}

func normalizeStructured(raw any) ([]*Item, error) {
	if raw == nil {
		return []*Item{}, nil
	}

	// A top-level object is read as a set of items keyed by name
	if it, ok := asItem(raw); ok {
		items := make([]*Item, 0, it.Len())
		for _, key := range it.Keys() {
			elem, ok := asItem(it.Value(key))
			if !ok {
				return nil, WithContext(ErrValueMustBeArray, map[string]interface{}{
					"reason": "object member is not an object",
					"key":    key,
				})
			}
			items = append(items, elem)
		}
		return items, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, WithContext(ErrValueMustBeArray, map[string]interface{}{
			"reason": "unsupported type",
			"type":   fmt.Sprintf("%T", raw),
		})
	}

	items := make([]*Item, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, ok := asItem(rv.Index(i).Interface())
		if !ok {
			return nil, WithContext(ErrValueMustBeArray, map[string]interface{}{
				"reason": "element is not an object",
				"index":  i,
			})
		}
		items = append(items, elem)
	}
	return items, nil
}

// asItem normalizes a keyed value into an *Item
func asItem(v any) (*Item, bool) {
	switch t := v.(type) {
	case *Item:
		if t == nil {
			return nil, false
		}
		return normalizeItem(t), true
	case Item:
		return normalizeItem(&t), true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	// Go maps carry no order; sort keys so output is stable
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	it := NewItem()
	for _, k := range keys {
		it.Set(k, normalizeValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()))
	}
	return it, true
}

func normalizeItem(src *Item) *Item {
	out := NewItem()
	for _, k := range src.Keys() {
		out.Set(k, normalizeValue(src.Value(k)))
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return v
	case json.Number:
		return numberValue(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	}

	if it, ok := asItem(v); ok {
		return it
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// decodeOrdered decodes one JSON value keeping object key order
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			it := NewItem()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string, got %T", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				it.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return it, nil
		case '[':
			list := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
	case json.Number:
		return numberValue(t), nil
	default:
		return t, nil
	}
}
