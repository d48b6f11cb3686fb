package dialect

import (
	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileProjection compiles selected fields into a projection document.
// Selecting * returns an empty document. When fields are picked and _id is not
// one of them it is excluded, since the database includes it by default. In
// stage mode only plain inclusions count as picked fields.
func (co *Compiler) CompileProjection(res sdata.Resolver, fields []qcode.Field, stage bool) (bson.D, error) {
	return co.with(res).projection(fields, stage)
}

func (c *compilerContext) projection(fields []qcode.Field, stage bool) (bson.D, error) {
	d := make(bson.D, 0, len(fields)+1)
	var picked, hasID bool

	for _, f := range fields {
		switch {
		case f.Expr != nil:
			if f.Alias == "" {
				return nil, ErrMissingAlias
			}
			e, err := c.exp(f.Expr)
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: f.Alias, Value: e})
			picked = picked || !stage
			hasID = hasID || f.Alias == "_id"

		case f.Alias != "":
			ref := f.Name
			if !isFieldRef(ref) {
				ref = "$" + ref
			}
			d = append(d, bson.E{Key: f.Alias, Value: c.fieldRef(ref)})
			picked = picked || !stage
			hasID = hasID || f.Alias == "_id"

		case f.Name == qcode.AllFields:
			return bson.D{}, nil

		default:
			path, _ := c.res.Resolve(f.Name)
			d = append(d, bson.E{Key: path, Value: true})
			picked = true
			hasID = hasID || path == "_id"
		}
	}

	if picked && !hasID {
		d = append(d, bson.E{Key: "_id", Value: false})
	}
	return d, nil
}

// CompileSort compiles sort orders into a sort document, 1 ascending and -1
// descending.
func (co *Compiler) CompileSort(res sdata.Resolver, ob []qcode.OrderBy) bson.D {
	return co.with(res).sort(ob)
}

func (c *compilerContext) sort(ob []qcode.OrderBy) bson.D {
	d := make(bson.D, 0, len(ob))
	for _, o := range ob {
		path, _ := c.res.Resolve(o.Field)
		d = append(d, bson.E{Key: path, Value: o.Order.Direction()})
	}
	return d
}
