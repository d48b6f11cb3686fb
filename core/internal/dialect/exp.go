package dialect

import (
	"strings"

	"github.com/dosco/bsonq/core/internal/conv"
	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileExp compiles an aggregation expression. Strings starting with $ are
// field references and get resolved to their storage path, $$ variables are
// left alone. Documents and lists are compiled recursively with their keys
// kept as given.
func (co *Compiler) CompileExp(res sdata.Resolver, v any) (any, error) {
	return co.with(res).exp(v)
}

func (c *compilerContext) exp(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case qcode.Converted:
		return v.Val, nil
	case string:
		return c.fieldRef(v), nil
	case bson.D:
		return c.expDoc(v)
	case bson.M:
		return c.expDoc(sortedDoc(v))
	case map[string]any:
		return c.expDoc(sortedDoc(v))
	}

	if list, ok := asList(v); ok {
		out := make(bson.A, len(list))
		for i, e := range list {
			ev, err := c.exp(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}

	// plain scalars stay as they are, rich values are converted
	switch typ := conv.Infer(v); typ {
	case conv.TypeAny, conv.TypeObject:
		return v, nil
	default:
		return c.types.ToNative(typ, v)
	}
}

func (c *compilerContext) expDoc(d bson.D) (bson.D, error) {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		ev, err := c.exp(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: e.Key, Value: ev})
	}
	return out, nil
}

// fieldRef resolves a $field reference. Other strings are returned unchanged.
func (c *compilerContext) fieldRef(s string) string {
	if len(s) < 2 || s[0] != '$' || s[1] == '$' {
		return s
	}
	path, _ := c.res.Resolve(s[1:])
	return "$" + path
}

// isFieldRef reports if s is a $field reference.
func isFieldRef(s string) bool {
	return len(s) > 1 && s[0] == '$' && !strings.HasPrefix(s, "$$")
}
