package dialect

import (
	"fmt"

	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/nqd/flat"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileInsert compiles the values of a new document. Unlike filters and
// updates an insert cannot address nested fields with dotted keys, so dotted
// paths are expanded into nested documents.
func (co *Compiler) CompileInsert(res sdata.Resolver, values map[string]any) (bson.M, error) {
	return co.with(res).insert(values)
}

func (c *compilerContext) insert(values map[string]any) (bson.M, error) {
	fm := make(map[string]any, len(values))
	for k, v := range values {
		path, typ := c.res.Resolve(k)
		nv, err := c.value(typ, v)
		if err != nil {
			return nil, err
		}
		if _, ok := fm[path]; ok {
			return nil, fmt.Errorf("dialect: insert: %s is set more than once", path)
		}
		fm[path] = nv
	}

	doc, err := flat.Unflatten(fm, nil)
	if err != nil {
		return nil, fmt.Errorf("dialect: insert: %w", err)
	}
	return bson.M(doc), nil
}
