// Package conv converts application values into their BSON storage form and back.
// Conversions are keyed by a type name taken from the collection config or inferred
// from the Go value itself.
package conv

import (
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Type converts a value between its application and storage representation.
type Type interface {
	ToNative(v any) (any, error)
	FromNative(v any) (any, error)
}

// TypeFuncs adapts a pair of functions to the Type interface. A nil function
// returns the value unchanged.
type TypeFuncs struct {
	To   func(v any) (any, error)
	From func(v any) (any, error)
}

func (t TypeFuncs) ToNative(v any) (any, error) {
	if t.To == nil {
		return v, nil
	}
	return t.To(v)
}

func (t TypeFuncs) FromNative(v any) (any, error) {
	if t.From == nil {
		return v, nil
	}
	return t.From(v)
}

// ConversionError is returned when a value cannot be converted to its declared type.
type ConversionError struct {
	Type  string
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conv: cannot convert %T to %s: %v", e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Registry holds the named types used for conversion. Register all custom
// types before the registry is shared between goroutines.
type Registry struct {
	types map[string]Type
}

// NewRegistry returns a registry with all the builtin types registered.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]Type, len(builtinTypes))}
	for name, t := range builtinTypes {
		r.types[name] = t
	}
	r.types[TypeArray] = TypeFuncs{To: r.toArray}
	return r
}

// Register adds or replaces a named type.
func (r *Registry) Register(name string, t Type) {
	r.types[name] = t
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Has reports if a type is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.types[name]
	return ok
}

// ToNative converts v to its storage representation. An empty type name infers
// the type from the value. Lists are converted element by element unless the
// declared type is itself a container type.
func (r *Registry) ToNative(typ string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if typ == "" {
		typ = Infer(v)
	}

	if !isContainer(typ) && isList(v) {
		rv := reflect.ValueOf(v)
		out := make(bson.A, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			nv, err := r.ToNative(typ, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}

	t, ok := r.types[typ]
	if !ok {
		return nil, &ConversionError{Type: typ, Value: v, Err: fmt.Errorf("unknown type")}
	}
	nv, err := t.ToNative(v)
	if err != nil {
		if _, ok := err.(*ConversionError); ok {
			return nil, err
		}
		return nil, &ConversionError{Type: typ, Value: v, Err: err}
	}
	return nv, nil
}

// FromNative converts a stored value back into its application representation.
func (r *Registry) FromNative(typ string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if typ == "" {
		return v, nil
	}

	if !isContainer(typ) && isList(v) {
		rv := reflect.ValueOf(v)
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			nv, err := r.FromNative(typ, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}

	t, ok := r.types[typ]
	if !ok {
		return nil, &ConversionError{Type: typ, Value: v, Err: fmt.Errorf("unknown type")}
	}
	nv, err := t.FromNative(v)
	if err != nil {
		return nil, &ConversionError{Type: typ, Value: v, Err: err}
	}
	return nv, nil
}

// Infer returns the type name matching the Go value.
func Infer(v any) string {
	switch v.(type) {
	case time.Time, *time.Time, bson.DateTime:
		return TypeDate
	case bson.ObjectID:
		return TypeObjectID
	case []byte, bson.Binary:
		return TypeBinary
	case bson.Decimal128:
		return TypeDecimal
	case bson.D, bson.M, map[string]any:
		return TypeObject
	}
	if isList(v) {
		return TypeArray
	}
	return TypeAny
}

func isContainer(typ string) bool {
	return typ == TypeArray || typ == TypeObject || typ == TypeAny || typ == TypeBinary
}

func isList(v any) bool {
	switch v.(type) {
	case []byte, bson.D:
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Slice
}
