package conversation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Attrs is the scratch space one running command shares across its states.
// Keys keep insertion order so listings and serialized sessions stay
// reproducible. Values are loosely typed; states read back the type they
// expect through the typed getters.
type Attrs struct {
	keys   []string
	values map[string]any
}

// NewAttrs returns an empty attribute store.
func NewAttrs() *Attrs {
	return &Attrs{values: make(map[string]any)}
}

// Set stores value under key, preserving the position of an existing key.
func (a *Attrs) Set(key string, value any) {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the raw value stored under key.
func (a *Attrs) Get(key string) (any, bool) {
	if a == nil || a.values == nil {
		return nil, false
	}
	v, ok := a.values[key]
	return v, ok
}

// String returns the value under key as a string.
func (a *Attrs) String(key string) (string, bool) {
	v, ok := a.Get(key)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}

// Int64 returns the value under key as an int64. Numbers that crossed a
// JSON boundary come back as float64 or string and are coerced here.
func (a *Attrs) Int64(key string) (int64, bool) {
	v, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// clone returns an independent copy. Values are copied by assignment;
// states store plain scalars here, never shared mutable structures.
func (a *Attrs) clone() *Attrs {
	if a == nil {
		return nil
	}
	cp := &Attrs{
		keys:   append([]string(nil), a.keys...),
		values: make(map[string]any, len(a.values)),
	}
	for k, v := range a.values {
		cp.values[k] = v
	}
	return cp
}

// Len reports the number of stored keys.
func (a *Attrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns the stored keys in insertion order.
func (a *Attrs) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

type attrPair struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}

// MarshalJSON encodes the store as an ordered array of key/value pairs.
func (a *Attrs) MarshalJSON() ([]byte, error) {
	pairs := make([]attrPair, 0, len(a.keys))
	for _, k := range a.keys {
		pairs = append(pairs, attrPair{Key: k, Value: a.values[k]})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON restores the store from the ordered pair encoding.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	var pairs []attrPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("conversation: decode attrs: %w", err)
	}
	a.keys = a.keys[:0]
	a.values = make(map[string]any, len(pairs))
	for _, p := range pairs {
		a.Set(p.Key, p.Value)
	}
	return nil
}
