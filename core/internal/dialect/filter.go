package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompileFilter compiles predicates into a filter document. OR binds looser
// than AND: every predicate glued with OR starts a new AND group and the
// groups are joined with $or.
func (co *Compiler) CompileFilter(res sdata.Resolver, where []qcode.Predicate) (bson.D, error) {
	return co.with(res).filter(where)
}

func (c *compilerContext) filter(where []qcode.Predicate) (bson.D, error) {
	var groups [][]bson.D
	var group []bson.D

	for _, p := range where {
		if p.Glue == qcode.GlueOr && len(group) != 0 {
			groups = append(groups, group)
			group = nil
		}
		d, err := c.predicate(p)
		if err != nil {
			return nil, err
		}
		group = append(group, d)
	}
	if len(group) != 0 {
		groups = append(groups, group)
	}

	switch len(groups) {
	case 0:
		return bson.D{}, nil
	case 1:
		return optimize(groups[0]), nil
	}

	or := make(bson.A, len(groups))
	for i, g := range groups {
		or[i] = optimize(g)
	}
	return bson.D{{Key: "$or", Value: or}}, nil
}

// optimize merges an AND group into one document. When two conditions use
// the same key they cannot share a document and the group becomes an $and.
func optimize(group []bson.D) bson.D {
	if len(group) == 1 {
		return group[0]
	}

	seen := make(map[string]struct{})
	merged := make(bson.D, 0, len(group))
	for _, d := range group {
		for _, e := range d {
			if _, ok := seen[e.Key]; ok {
				return and(group)
			}
			seen[e.Key] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

func and(group []bson.D) bson.D {
	a := make(bson.A, len(group))
	for i, d := range group {
		a[i] = d
	}
	return bson.D{{Key: "$and", Value: a}}
}

func (c *compilerContext) predicate(p qcode.Predicate) (bson.D, error) {
	switch {
	case p.Raw != nil:
		d, ok := toDoc(p.Raw)
		if !ok {
			return nil, fmt.Errorf("dialect: raw predicate must be a document, got %T", p.Raw)
		}
		return d, nil
	case p.Nested != nil:
		return c.filter(p.Nested)
	}

	if rw, ok := p.Val.(qcode.Rewriter); ok {
		np, err := rw.Rewrite(p)
		if err != nil {
			return nil, err
		}
		if _, ok := np.Val.(qcode.Rewriter); ok {
			return nil, fmt.Errorf("dialect: %T rewrote %s into another rewriter", rw, p.Field)
		}
		return c.predicate(np)
	}

	path, typ := c.res.Resolve(p.Field)
	op := qcode.ParseOp(p.Op)

	switch op {
	case qcode.OpEquals, qcode.OpNotEquals:
		v, err := c.value(typ, p.Val)
		if err != nil {
			return nil, err
		}
		list, isList := asList(v)
		switch {
		case op == qcode.OpEquals && isList:
			return field(path, "$in", list), nil
		case op == qcode.OpEquals:
			return bson.D{{Key: path, Value: v}}, nil
		case isList:
			return field(path, "$nin", list), nil
		default:
			return field(path, "$ne", v), nil
		}

	case qcode.OpLike:
		return c.like(path, p.Val)

	case qcode.OpIn, qcode.OpNotIn:
		v, err := c.value(typ, p.Val)
		if err != nil {
			return nil, err
		}
		list, ok := asList(v)
		if !ok {
			list = bson.A{v}
		}
		return field(path, op.Native(), list), nil

	case qcode.OpBetween, qcode.OpNotBetween:
		v, err := c.value(typ, p.Val)
		if err != nil {
			return nil, err
		}
		list, ok := asList(v)
		if !ok || len(list) != 2 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidBetween, p.Field)
		}
		if op == qcode.OpBetween {
			return bson.D{{Key: "$and", Value: bson.A{
				field(path, "$gte", list[0]),
				field(path, "$lte", list[1]),
			}}}, nil
		}
		return bson.D{{Key: "$or", Value: bson.A{
			field(path, "$lt", list[0]),
			field(path, "$gt", list[1]),
		}}}, nil

	case qcode.OpElemMatch:
		return c.elemMatch(p.Field, path, p.Val)

	case qcode.OpRegex:
		v, err := c.value("", p.Val)
		if err != nil {
			return nil, err
		}
		return simpleOp(path, op.Native(), v), nil

	case qcode.OpOther:
		// operators outside the table take values that are not of the type
		// of the field, eg. $exists or $size
		v, err := c.value("", p.Val)
		if err != nil {
			return nil, err
		}
		return simpleOp(path, p.Op, v), nil

	default:
		v, err := c.value(typ, p.Val)
		if err != nil {
			return nil, err
		}
		return simpleOp(path, op.Native(), v), nil
	}
}

func field(path, op string, v any) bson.D {
	return bson.D{{Key: path, Value: bson.D{{Key: op, Value: v}}}}
}

// simpleOp applies op to the field. A list is broadcast since the database
// has no generic "any of" form: an empty list becomes null, a single value is
// unwrapped and more values become an $or of one condition per value.
func simpleOp(path, op string, v any) bson.D {
	list, ok := asList(v)
	if !ok {
		return field(path, op, v)
	}
	switch len(list) {
	case 0:
		return field(path, op, nil)
	case 1:
		return field(path, op, list[0])
	}
	or := make(bson.A, len(list))
	for i, e := range list {
		or[i] = field(path, op, e)
	}
	return bson.D{{Key: "$or", Value: or}}
}

func (c *compilerContext) like(path string, v any) (bson.D, error) {
	if cv, ok := v.(qcode.Converted); ok {
		return bson.D{{Key: path, Value: cv.Val}}, nil
	}
	list, ok := asList(v)
	if !ok {
		re, err := likeRegex(v)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: path, Value: re}}, nil
	}

	switch len(list) {
	case 0:
		return field(path, "$in", bson.A{}), nil
	case 1:
		return c.like(path, list[0])
	}
	or := make(bson.A, len(list))
	for i, e := range list {
		re, err := likeRegex(e)
		if err != nil {
			return nil, err
		}
		or[i] = bson.D{{Key: path, Value: re}}
	}
	return bson.D{{Key: "$or", Value: or}}, nil
}

// likeRegex turns a like pattern into an anchored case insensitive regex.
// % matches any run of characters and ? a single one.
func likeRegex(v any) (bson.D, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, fmt.Errorf("dialect: like pattern: %w", err)
	}

	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range s {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')

	return bson.D{
		{Key: "$regex", Value: sb.String()},
		{Key: "$options", Value: "i"},
	}, nil
}

func (c *compilerContext) elemMatch(name, path string, v any) (bson.D, error) {
	if where, ok := v.([]qcode.Predicate); ok {
		ec := &compilerContext{
			Compiler: c.Compiler,
			res:      elemResolver{res: c.res, prefix: name, path: path},
		}
		d, err := ec.filter(where)
		if err != nil {
			return nil, err
		}
		return field(path, "$elemMatch", d), nil
	}

	ev, err := c.value("", v)
	if err != nil {
		return nil, err
	}
	if d, ok := toDoc(ev); ok {
		ev = d
	}
	return field(path, "$elemMatch", ev), nil
}

// elemResolver resolves the fields of array elements relative to the array.
type elemResolver struct {
	res    sdata.Resolver
	prefix string
	path   string
}

func (r elemResolver) Resolve(name string) (string, string) {
	full, typ := r.res.Resolve(r.prefix + "." + name)
	if rel, ok := strings.CutPrefix(full, r.path+"."); ok {
		return rel, typ
	}
	return name, ""
}
