// Package patch distinguishes an absent JSON field from an explicit null in
// partial-update request bodies.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field records whether a key was present in the body (Set) and, if so,
// whether it carried a value (Valid) or was null.
type Field[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// UnmarshalJSON is only called for keys present in the body, which is what
// makes Set meaningful.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Valid = false
		var zero T
		f.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

// Cleared reports an explicit null.
func (f Field[T]) Cleared() bool {
	return f.Set && !f.Valid
}

// Ptr returns the value as a pointer, nil when unset or null.
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
