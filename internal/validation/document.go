package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxSummaryRunes = 64

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = deepCopy(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = deepCopy(x)
		}
		return s
	default:
		return v
	}
}

// matchKey finds key in m the way encoding/json does: exact match first,
// then case-insensitive.
func matchKey(m map[string]any, key string) (string, bool) {
	if _, ok := m[key]; ok {
		return key, true
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

func lookup(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		key, ok := matchKey(obj, part)
		if !ok {
			return nil, false
		}
		cur = obj[key]
	}
	return cur, true
}

func removePath(m map[string]any, path string) bool {
	if path == "" {
		return false
	}

	parts := strings.Split(path, ".")
	cur := m
	for i, part := range parts {
		key, ok := matchKey(cur, part)
		if !ok {
			return false
		}
		if i == len(parts)-1 {
			delete(cur, key)
			return true
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// mismatchMessage describes a type error. A non-array value reported against
// a list means one of its elements is wrong, so the message names the element.
func mismatchMessage(typeErr *json.UnmarshalTypeError, got any) string {
	kind := jsonKindOfType(typeErr.Type)
	list, ok := got.([]any)
	if !ok || kind == "array" || typeErr.Value == "array" {
		return fmt.Sprintf("expected %s, received %s", kind, jsonKindOfValue(got))
	}

	for _, el := range list {
		if k := jsonKindOfValue(el); k != kind {
			return fmt.Sprintf("expected array of %s, received array containing %s", kind, k)
		}
	}
	return "expected array of " + kind
}

func jsonKindOfValue(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func jsonKindOfType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return t.String()
	}
}

// summarize renders a short, log-safe description of a value.
func summarize(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case json.Number:
		return t.String()
	case string:
		return quoteTruncated(t)
	case map[string]any:
		return fmt.Sprintf("object(keys=%d)", len(t))
	case []any:
		return fmt.Sprintf("list(len=%d)", len(t))
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return quoteTruncated(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null"
		}
		return fmt.Sprintf("list(len=%d)", rv.Len())
	case reflect.Map:
		return fmt.Sprintf("object(keys=%d)", rv.Len())
	case reflect.Struct:
		return "object"
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func quoteTruncated(s string) string {
	if utf8.RuneCountInString(s) <= maxSummaryRunes {
		return strconv.Quote(s)
	}
	runes := []rune(s)
	return strconv.Quote(string(runes[:maxSummaryRunes])) + fmt.Sprintf("...(%d chars)", len(runes))
}
