package dialect

import (
	"fmt"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompilePipeline compiles stages into an aggregation pipeline. Stages are
// never reordered.
func (co *Compiler) CompilePipeline(res sdata.Resolver, stages []qcode.Stage) (bson.A, error) {
	c := co.with(res)
	out := make(bson.A, 0, len(stages))
	for i, s := range stages {
		d, err := c.stage(s)
		if err != nil {
			return nil, fmt.Errorf("dialect: stage %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// CompileStage compiles a single pipeline stage.
func (co *Compiler) CompileStage(res sdata.Resolver, s qcode.Stage) (bson.D, error) {
	return co.with(res).stage(s)
}

func (c *compilerContext) stage(s qcode.Stage) (bson.D, error) {
	switch s := s.(type) {
	case qcode.Match:
		f, err := c.filter(s.Where)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$match", Value: f}}, nil

	case qcode.Group:
		return c.group(s)

	case qcode.Project:
		p, err := c.projection(s.Fields, true)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$project", Value: p}}, nil

	case qcode.Sort:
		return bson.D{{Key: "$sort", Value: c.sort(s.OrderBy)}}, nil

	case qcode.Limit:
		return bson.D{{Key: "$limit", Value: s.N}}, nil

	case qcode.Skip:
		return bson.D{{Key: "$skip", Value: s.N}}, nil

	default:
		return nil, fmt.Errorf("dialect: unknown stage %T", s)
	}
}

// group compiles the grouping key followed by one field per accumulator in
// the order they were added.
func (c *compilerContext) group(s qcode.Group) (bson.D, error) {
	id, err := c.exp(s.ID)
	if err != nil {
		return nil, err
	}

	d := make(bson.D, 0, len(s.Accumulators)+1)
	d = append(d, bson.E{Key: "_id", Value: id})

	for _, a := range s.Accumulators {
		e, err := c.exp(a.Expr)
		if err != nil {
			return nil, err
		}
		d = append(d, bson.E{Key: a.Field, Value: bson.D{{Key: a.Op.String(), Value: e}}})
	}
	return bson.D{{Key: "$group", Value: d}}, nil
}
