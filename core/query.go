package core

import (
	"strings"

	"github.com/dosco/bsonq/core/internal/qcode"
)

type (
	Statement = qcode.Statement
	Predicate = qcode.Predicate
	UpdateOp  = qcode.UpdateOp
	Glue      = qcode.Glue
)

const (
	GlueAnd = qcode.GlueAnd
	GlueOr  = qcode.GlueOr
)

// Values with special meaning in a Where clause.
type (
	// Converted is sent to the database as is.
	Converted = qcode.Converted
	Rewriter  = qcode.Rewriter
	Exists    = qcode.Exists
	Size      = qcode.Size
	TypeIs    = qcode.TypeIs
	Pattern   = qcode.Pattern
	Text      = qcode.Text
	Not       = qcode.Not
)

func Where(field, op string, val any) Predicate {
	return qcode.Where(field, op, val)
}

func OrWhere(field, op string, val any) Predicate {
	return qcode.OrWhere(field, op, val)
}

// Query builds a statement against one collection. It starts as a select and
// turns into a write with Update, Delete or Count.
type Query struct {
	st qcode.Statement
}

// From starts a select on collection.
func From(collection string) *Query {
	return &Query{st: qcode.Statement{Type: qcode.QTSelect, Collection: collection}}
}

// Insert starts an insert of values into collection.
func Insert(collection string, values map[string]any) *Query {
	return &Query{st: qcode.Statement{Type: qcode.QTInsert, Collection: collection, Values: values}}
}

// Replace replaces the whole document with the identifier found in values,
// inserting it when missing. Values without an identifier are inserted.
func Replace(collection string, values map[string]any) *Query {
	q := Insert(collection, values)
	q.st.Replace = true
	return q
}

func (q *Query) Select(fields ...string) *Query {
	for _, f := range fields {
		q.st.Fields = append(q.st.Fields, qcode.Field{Name: f})
	}
	return q
}

// SelectAs outputs field under alias.
func (q *Query) SelectAs(alias, field string) *Query {
	q.st.Fields = append(q.st.Fields, qcode.Field{Name: field, Alias: alias})
	return q
}

// SelectExp outputs the result of an aggregation expression under alias.
func (q *Query) SelectExp(alias string, exp any) *Query {
	q.st.Fields = append(q.st.Fields, qcode.Field{Alias: alias, Expr: exp})
	return q
}

func (q *Query) Where(field, op string, val any) *Query {
	q.st.Where = append(q.st.Where, qcode.Where(field, op, val))
	return q
}

func (q *Query) OrWhere(field, op string, val any) *Query {
	q.st.Where = append(q.st.Where, qcode.OrWhere(field, op, val))
	return q
}

// WhereGroup adds a parenthesised group of conditions built by fn.
func (q *Query) WhereGroup(fn func(g *Query)) *Query {
	return q.group(qcode.GlueAnd, fn)
}

func (q *Query) OrWhereGroup(fn func(g *Query)) *Query {
	return q.group(qcode.GlueOr, fn)
}

func (q *Query) group(glue qcode.Glue, fn func(g *Query)) *Query {
	g := &Query{}
	fn(g)
	if len(g.st.Where) != 0 {
		q.st.Where = append(q.st.Where, qcode.Nested(glue, g.st.Where...))
	}
	return q
}

// WhereRaw adds a filter document that is used as is.
func (q *Query) WhereRaw(doc any) *Query {
	q.st.Where = append(q.st.Where, qcode.Raw(qcode.GlueAnd, doc))
	return q
}

// OrderBy sorts ascending, or descending when the field starts with a minus.
func (q *Query) OrderBy(fields ...string) *Query {
	for _, f := range fields {
		ob := qcode.OrderBy{Field: f}
		if name, ok := strings.CutPrefix(f, "-"); ok {
			ob = qcode.OrderBy{Field: name, Order: qcode.OrderDesc}
		}
		q.st.OrderBy = append(q.st.OrderBy, ob)
	}
	return q
}

func (q *Query) Skip(n int64) *Query {
	q.st.Skip = n
	return q
}

func (q *Query) Limit(n int64) *Query {
	q.st.Limit = n
	return q
}

// Count turns the query into a count of the matching documents.
func (q *Query) Count() *Query {
	q.st.Type = qcode.QTCount
	return q
}

// Delete turns the query into a delete of the first matching document, or
// of all of them with Multi.
func (q *Query) Delete() *Query {
	q.st.Type = qcode.QTDelete
	return q
}

// Update turns the query into an update setting the changed fields.
func (q *Query) Update(changes map[string]any) *Query {
	q.st.Type = qcode.QTUpdate
	if q.st.Changes == nil {
		q.st.Changes = make(map[string]any, len(changes))
	}
	for k, v := range changes {
		q.st.Changes[k] = v
	}
	return q
}

// Op adds an update operator such as $inc, $push or $unset.
func (q *Query) Op(op, field string, val any) *Query {
	q.st.Type = qcode.QTUpdate
	q.st.Ops = append(q.st.Ops, qcode.UpdateOp{Op: op, Field: field, Val: val})
	return q
}

func (q *Query) Inc(field string, n any) *Query {
	return q.Op("$inc", field, n)
}

func (q *Query) Mul(field string, n any) *Query {
	return q.Op("$mul", field, n)
}

func (q *Query) Push(field string, val any) *Query {
	return q.Op("$push", field, val)
}

func (q *Query) Pull(field string, val any) *Query {
	return q.Op("$pull", field, val)
}

func (q *Query) Unset(field string) *Query {
	return q.Op("$unset", field, "")
}

func (q *Query) Upsert() *Query {
	q.st.Upsert = true
	return q
}

// Multi applies an update or delete to every matching document.
func (q *Query) Multi() *Query {
	q.st.Multi = true
	return q
}

// Statement returns a copy of the built statement.
func (q *Query) Statement() *Statement {
	st := q.st
	st.Where = append([]qcode.Predicate(nil), q.st.Where...)
	st.Fields = append([]qcode.Field(nil), q.st.Fields...)
	st.OrderBy = append([]qcode.OrderBy(nil), q.st.OrderBy...)
	st.Ops = append([]qcode.UpdateOp(nil), q.st.Ops...)
	return &st
}
