package utils

import (
	"encoding/json"
	"fmt"
)

// OrderedMap is a map that preserves key insertion order and supports JSON serialization.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedMap creates a new empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		keys:   make([]K, 0),
		values: make(map[K]V),
	}
}

// Set sets the value for a key, preserving the position of the first insertion.
func (om *OrderedMap[K, V]) Set(key K, value V) {
	if _, exists := om.values[key]; !exists {
		om.keys = append(om.keys, key)
	}
	om.values[key] = value
}

// Get retrieves the value for a key.
func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := om.values[key]
	return v, ok
}

// Len returns the number of entries.
func (om *OrderedMap[K, V]) Len() int {
	return len(om.keys)
}

// Keys returns the keys in insertion order.
func (om *OrderedMap[K, V]) Keys() []K {
	return append([]K(nil), om.keys...)
}

// Values returns the values in key insertion order.
func (om *OrderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(om.keys))
	for _, k := range om.keys {
		out = append(out, om.values[k])
	}
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (om *OrderedMap[K, V]) Range(fn func(key K, value V) bool) {
	for _, k := range om.keys {
		if !fn(k, om.values[k]) {
			return
		}
	}
}

// MarshalJSON implements json.Marshaler, outputting keys in order.
// Keys are rendered with fmt so non-string keys produce valid JSON objects.
func (om *OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range om.keys {
		v := om.values[k]
		keyBytes, err := json.Marshal(fmt.Sprint(k))
		if err != nil {
			return nil, fmt.Errorf("marshal key: %w", err)
		}
		valBytes, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %v: %w", k, err)
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		buf = append(buf, valBytes...)
		if i < len(om.keys)-1 {
			buf = append(buf, ',')
		}
	}
	buf = append(buf, '}')
	return buf, nil
}
