package environment

import (
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
)

// Environment is an ordered string map handed to a command as its process environment.
// Keys are reported in insertion order.
type Environment struct {
	dict *ordereddict.Dict
}

// New returns an empty environment.
func New() *Environment {
	return &Environment{dict: ordereddict.NewDict()}
}

// FromPairs builds an environment from alternating key/value strings.
// A trailing key without a value is ignored.
func FromPairs(pairs ...string) *Environment {
	env := New()
	for i := 0; i+1 < len(pairs); i += 2 {
		env.Set(pairs[i], pairs[i+1])
	}

	return env
}

// Set stores value under key, overwriting any previous value.
func (e *Environment) Set(key, value string) {
	e.dict.Set(key, value)
}

// Add stores value under key only if the key is not present yet.
// It reports whether the value was stored.
func (e *Environment) Add(key, value string) bool {
	if _, ok := e.dict.Get(key); ok {
		return false
	}

	e.dict.Set(key, value)

	return true
}

// Get returns the value stored under key.
func (e *Environment) Get(key string) (string, bool) {
	v, ok := e.dict.Get(key)
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Value returns the value stored under key or an empty string.
func (e *Environment) Value(key string) string {
	v, _ := e.Get(key)

	return v
}

// Keys returns the keys in insertion order.
func (e *Environment) Keys() []string {
	return e.dict.Keys()
}

// Len returns the number of entries.
func (e *Environment) Len() int {
	return len(e.dict.Keys())
}

// Environ renders the entries as "key=value" strings in insertion order.
func (e *Environment) Environ() []string {
	keys := e.Keys()
	result := make([]string, 0, len(keys))

	for _, key := range keys {
		result = append(result, key+"="+e.Value(key))
	}

	return result
}

// Map returns an unordered copy of the entries.
func (e *Environment) Map() map[string]string {
	keys := e.Keys()
	result := make(map[string]string, len(keys))

	for _, key := range keys {
		result[key] = e.Value(key)
	}

	return result
}

// Clone returns an independent copy preserving order.
func (e *Environment) Clone() *Environment {
	clone := New()
	for _, key := range e.Keys() {
		clone.Set(key, e.Value(key))
	}

	return clone
}

// String renders the environment as a shell-like listing, one entry per line.
func (e *Environment) String() string {
	var b strings.Builder

	for _, key := range e.Keys() {
		fmt.Fprintf(&b, "%s=%q\n", key, e.Value(key))
	}

	return b.String()
}
