// Package lookup evaluates JSONPath expressions over decoded JSON documents.
//
// Scraped pages and third-party APIs rarely agree on where a field lives, so
// every accessor accepts a list of fallback expressions and returns the first
// non-empty match.
package lookup

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Decode parses raw JSON into the generic form the accessors operate on.
func Decode(raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

// First returns the first non-empty value matched by exprs. Expressions that
// fail to evaluate (missing keys, type mismatches) are treated as misses.
func First(doc any, exprs ...string) (any, bool) {
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		val, err := jsonpath.Get(expr, doc)
		if err != nil {
			continue
		}
		val = unwrap(val)
		if !isEmpty(val) {
			return val, true
		}
	}
	return nil, false
}

// String returns the first match rendered as a string.
func String(doc any, exprs ...string) string {
	val, ok := First(doc, exprs...)
	if !ok {
		return ""
	}
	switch t := val.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns the first numeric match. Numeric strings are parsed.
func Float(doc any, exprs ...string) (float64, bool) {
	for _, expr := range exprs {
		val, ok := First(doc, expr)
		if !ok {
			continue
		}
		switch t := val.(type) {
		case float64:
			return t, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// All returns every value matched by expr, flattening one level of arrays.
func All(doc any, expr string) []any {
	val, err := jsonpath.Get(expr, doc)
	if err != nil || val == nil {
		return nil
	}
	arr, ok := val.([]any)
	if !ok {
		return []any{val}
	}
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		if nested, ok := item.([]any); ok {
			out = append(out, nested...)
			continue
		}
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// Strings returns every string matched by expr.
func Strings(doc any, expr string) []string {
	values := All(doc, expr)
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Merge overlays the top-level keys of each document onto the previous ones.
// Non-object documents are ignored.
func Merge(docs ...any) map[string]any {
	out := make(map[string]any)
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// unwrap collapses single-element filter results.
func unwrap(v any) any {
	if arr, ok := v.([]any); ok && len(arr) == 1 {
		return arr[0]
	}
	return v
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
