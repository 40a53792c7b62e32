package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Apply merges update into a copy of existing using the field transform
// semantics and returns the result. Fields absent from update are kept.
// Plain values are normalized to their JSON form so stored data compares
// equal regardless of the Go type it was written with.
func Apply(existing Fields, update Fields, now time.Time) (Fields, error) {
	out := make(Fields, len(existing)+len(update))
	for k, v := range existing {
		out[k] = v
	}
	for field, value := range update {
		switch v := value.(type) {
		case serverTimestamp:
			out[field] = now
		case DefaultOnce:
			if _, ok := out[field]; ok {
				continue
			}
			norm, err := normalize(v.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			out[field] = norm
		case ArrayUnion:
			merged, err := union(out[field], v.Values)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			out[field] = merged
		default:
			norm, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			out[field] = norm
		}
	}
	return out, nil
}

func union(current any, values []any) ([]any, error) {
	var arr []any
	if existing, ok := current.([]any); ok {
		arr = append(arr, existing...)
	}
	for _, v := range values {
		norm, err := normalize(v)
		if err != nil {
			return nil, err
		}
		if !containsEqual(arr, norm) {
			arr = append(arr, norm)
		}
	}
	if arr == nil {
		arr = []any{}
	}
	return arr, nil
}

func containsEqual(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, time.Time:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}
