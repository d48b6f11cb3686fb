package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Operators whose values share the type of the field they change. Array
// operators take elements or modifier documents and use inferred types.
var typedUpdateOps = map[string]struct{}{
	"$set":         {},
	"$setOnInsert": {},
	"$min":         {},
	"$max":         {},
	"$inc":         {},
	"$mul":         {},
}

// CompileUpdate compiles explicit update operators and changed fields into an
// update document. Operators keep the order they were first used in and the
// changes are added as a $set sorted by path.
func (co *Compiler) CompileUpdate(res sdata.Resolver, changes map[string]any, ops []qcode.UpdateOp) (bson.D, error) {
	return co.with(res).update(changes, ops)
}

func (c *compilerContext) update(changes map[string]any, ops []qcode.UpdateOp) (bson.D, error) {
	var d bson.D
	groups := make(map[string]int)

	add := func(op, path string, v any) {
		i, ok := groups[op]
		if !ok {
			i = len(d)
			groups[op] = i
			d = append(d, bson.E{Key: op, Value: bson.D{}})
		}
		d[i].Value = append(d[i].Value.(bson.D), bson.E{Key: path, Value: v})
	}

	for _, o := range ops {
		op := "$" + strings.TrimPrefix(o.Op, "$")
		if op == "$" {
			return nil, fmt.Errorf("dialect: update operator missing for %s", o.Field)
		}
		path, typ := c.res.Resolve(o.Field)

		var v any
		var err error
		switch op {
		case "$rename":
			to, ok := o.Val.(string)
			if !ok {
				return nil, fmt.Errorf("dialect: $rename %s: target must be a string", o.Field)
			}
			v, _ = c.res.Resolve(to)
		case "$unset":
			v = ""
		default:
			if _, ok := typedUpdateOps[op]; !ok {
				typ = ""
			}
			v, err = c.value(typ, o.Val)
		}
		if err != nil {
			return nil, err
		}
		add(op, path, v)
	}

	keys := lo.Keys(changes)
	sort.Strings(keys)
	for _, k := range keys {
		path, typ := c.res.Resolve(k)
		v, err := c.value(typ, changes[k])
		if err != nil {
			return nil, err
		}
		add("$set", path, v)
	}

	if len(d) == 0 {
		return nil, ErrEmptyUpdate
	}
	return d, nil
}

// replace compiles a whole document replace into an upsert keyed by _id.
// It returns false when the values carry no identifier, in which case the
// document has to be inserted instead.
func (c *compilerContext) replace(values map[string]any) (filter, update bson.D, ok bool, err error) {
	var id any
	set := make(map[string]any, len(values))

	for k, v := range values {
		if path, _ := c.res.Resolve(k); path == "_id" {
			id = v
			continue
		}
		set[k] = v
	}
	if id == nil {
		return nil, nil, false, nil
	}

	_, typ := c.res.Resolve("_id")
	if id, err = c.value(typ, id); err != nil {
		return nil, nil, false, err
	}

	update = bson.D{}
	if len(set) != 0 {
		if update, err = c.update(set, nil); err != nil {
			return nil, nil, false, err
		}
	}
	update = append(update, bson.E{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: id}}})
	return bson.D{{Key: "_id", Value: id}}, update, true, nil
}
