// Package dialect compiles the portable query model into MongoDB documents:
// filters, expressions, projections, sorts, updates, insert payloads,
// aggregation pipelines and complete commands.
package dialect

import (
	"errors"
	"reflect"
	"sort"

	"github.com/dosco/bsonq/core/internal/conv"
	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrInvalidBetween  = errors.New("dialect: between needs a list of two values")
	ErrEmptyCollection = errors.New("dialect: collection name is empty")
	ErrEmptyUpdate     = errors.New("dialect: update has no changes")
	ErrMissingAlias    = errors.New("dialect: computed field needs an alias")
)

// Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	types *conv.Registry
}

func NewCompiler(types *conv.Registry) *Compiler {
	if types == nil {
		types = conv.NewRegistry()
	}
	return &Compiler{types: types}
}

// compilerContext binds the compiler to the field resolver of one collection
// for the duration of a single compile call.
type compilerContext struct {
	*Compiler
	res sdata.Resolver
}

func (c *Compiler) with(res sdata.Resolver) *compilerContext {
	if res == nil {
		res = (*sdata.Collection)(nil)
	}
	return &compilerContext{Compiler: c, res: res}
}

// value converts v using the declared type. Converted values are returned
// as is. A single value compared against an array field is converted by its
// own type.
func (c *compilerContext) value(typ string, v any) (any, error) {
	if cv, ok := v.(qcode.Converted); ok {
		return cv.Val, nil
	}
	if typ == conv.TypeArray {
		if _, ok := asList(v); !ok {
			typ = ""
		}
	}
	return c.types.ToNative(typ, v)
}

// asList returns the elements of v if it is a list. Byte slices and
// documents are not lists.
func asList(v any) (bson.A, bool) {
	switch v := v.(type) {
	case nil, []byte, bson.D:
		return nil, false
	case bson.A:
		return v, true
	case []any:
		return bson.A(v), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make(bson.A, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toDoc returns a document with deterministic key order. Go maps are sorted
// by key.
func toDoc(v any) (bson.D, bool) {
	switch v := v.(type) {
	case bson.D:
		return v, true
	case bson.M:
		return sortedDoc(v), true
	case map[string]any:
		return sortedDoc(v), true
	}
	return nil, false
}

func sortedDoc(m map[string]any) bson.D {
	keys := lo.Keys(m)
	sort.Strings(keys)

	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}
