package qcode

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Stage is one step of an aggregation pipeline. The set of stages is closed,
// stages are immutable values created directly or through the builders below.
type Stage interface {
	// Export returns the canonical uncompiled form of the stage.
	Export() bson.D
	stage()
}

type Match struct {
	Where []Predicate
}

type Group struct {
	ID           any
	Accumulators []Accumulator
}

type Project struct {
	Fields []Field
}

type Sort struct {
	OrderBy []OrderBy
}

type Limit struct {
	N int64
}

type Skip struct {
	N int64
}

func (Match) stage()   {}
func (Group) stage()   {}
func (Project) stage() {}
func (Sort) stage()    {}
func (Limit) stage()   {}
func (Skip) stage()    {}

func (s Match) Export() bson.D {
	return bson.D{{Key: "match", Value: exportPredicates(s.Where)}}
}

func exportPredicates(where []Predicate) bson.A {
	out := make(bson.A, 0, len(where))
	for _, p := range where {
		d := bson.D{{Key: "glue", Value: p.Glue.String()}}
		switch {
		case p.Raw != nil:
			d = append(d, bson.E{Key: "raw", Value: p.Raw})
		case p.Nested != nil:
			d = append(d, bson.E{Key: "nested", Value: exportPredicates(p.Nested)})
		default:
			d = append(d,
				bson.E{Key: "field", Value: p.Field},
				bson.E{Key: "op", Value: p.Op},
				bson.E{Key: "value", Value: p.Val})
		}
		out = append(out, d)
	}
	return out
}

func (s Group) Export() bson.D {
	acc := make(bson.A, 0, len(s.Accumulators))
	for _, a := range s.Accumulators {
		acc = append(acc, bson.D{
			{Key: "field", Value: a.Field},
			{Key: "op", Value: a.Op.String()},
			{Key: "expr", Value: a.Expr},
		})
	}
	return bson.D{{Key: "group", Value: bson.D{
		{Key: "id", Value: s.ID},
		{Key: "accumulators", Value: acc},
	}}}
}

func (s Project) Export() bson.D {
	fields := make(bson.A, 0, len(s.Fields))
	for _, f := range s.Fields {
		d := bson.D{{Key: "name", Value: f.Name}}
		if f.Alias != "" {
			d = append(d, bson.E{Key: "alias", Value: f.Alias})
		}
		if f.Expr != nil {
			d = append(d, bson.E{Key: "expr", Value: f.Expr})
		}
		fields = append(fields, d)
	}
	return bson.D{{Key: "project", Value: fields}}
}

func (s Sort) Export() bson.D {
	d := make(bson.D, 0, len(s.OrderBy))
	for _, ob := range s.OrderBy {
		d = append(d, bson.E{Key: ob.Field, Value: ob.Order.String()})
	}
	return bson.D{{Key: "sort", Value: d}}
}

func (s Limit) Export() bson.D {
	return bson.D{{Key: "limit", Value: s.N}}
}

func (s Skip) Export() bson.D {
	return bson.D{{Key: "skip", Value: s.N}}
}

type AccOp int8

const (
	AccSum AccOp = iota
	AccAvg
	AccFirst
	AccLast
	AccMax
	AccMin
	AccPush
	AccAddToSet
	AccStdDevPop
	AccStdDevSamp
)

var accNames = [...]string{
	AccSum:        "$sum",
	AccAvg:        "$avg",
	AccFirst:      "$first",
	AccLast:       "$last",
	AccMax:        "$max",
	AccMin:        "$min",
	AccPush:       "$push",
	AccAddToSet:   "$addToSet",
	AccStdDevPop:  "$stdDevPop",
	AccStdDevSamp: "$stdDevSamp",
}

// String returns the native accumulator operator.
func (op AccOp) String() string {
	if op < 0 || int(op) >= len(accNames) {
		return "AccOp(" + strconv.Itoa(int(op)) + ")"
	}
	return accNames[op]
}

// ParseAccOp returns the accumulator for a name with or without the $ sigil.
func ParseAccOp(s string) (AccOp, bool) {
	name := "$" + strings.TrimPrefix(s, "$")
	for i, n := range accNames {
		if strings.EqualFold(n, name) {
			return AccOp(i), true
		}
	}
	return 0, false
}

// Accumulator reduces the documents of a group into the output field Field.
type Accumulator struct {
	Field string
	Op    AccOp
	Expr  any
}

// GroupBuilder collects accumulators for a Group stage.
type GroupBuilder struct {
	id  any
	acc []Accumulator
}

// NewGroup starts a group keyed by id: nil for the whole collection, a $field
// reference or a map of named sub-expressions.
func NewGroup(id any) *GroupBuilder {
	return &GroupBuilder{id: id}
}

func (b *GroupBuilder) Add(field string, op AccOp, expr any) *GroupBuilder {
	b.acc = append(b.acc, Accumulator{Field: field, Op: op, Expr: expr})
	return b
}

func (b *GroupBuilder) Sum(field string, expr any) *GroupBuilder {
	return b.Add(field, AccSum, expr)
}

func (b *GroupBuilder) Avg(field string, expr any) *GroupBuilder {
	return b.Add(field, AccAvg, expr)
}

func (b *GroupBuilder) First(field string, expr any) *GroupBuilder {
	return b.Add(field, AccFirst, expr)
}

func (b *GroupBuilder) Last(field string, expr any) *GroupBuilder {
	return b.Add(field, AccLast, expr)
}

func (b *GroupBuilder) Max(field string, expr any) *GroupBuilder {
	return b.Add(field, AccMax, expr)
}

func (b *GroupBuilder) Min(field string, expr any) *GroupBuilder {
	return b.Add(field, AccMin, expr)
}

func (b *GroupBuilder) Push(field string, expr any) *GroupBuilder {
	return b.Add(field, AccPush, expr)
}

func (b *GroupBuilder) AddToSet(field string, expr any) *GroupBuilder {
	return b.Add(field, AccAddToSet, expr)
}

func (b *GroupBuilder) StdDevPop(field string, expr any) *GroupBuilder {
	return b.Add(field, AccStdDevPop, expr)
}

func (b *GroupBuilder) StdDevSamp(field string, expr any) *GroupBuilder {
	return b.Add(field, AccStdDevSamp, expr)
}

// Build returns the frozen stage. The builder can keep being used afterwards
// without affecting the returned value.
func (b *GroupBuilder) Build() Group {
	acc := make([]Accumulator, len(b.acc))
	copy(acc, b.acc)
	return Group{ID: b.id, Accumulators: acc}
}

type ProjectBuilder struct {
	fields []Field
}

func NewProject() *ProjectBuilder {
	return &ProjectBuilder{}
}

// Include adds plain field inclusions.
func (b *ProjectBuilder) Include(names ...string) *ProjectBuilder {
	for _, n := range names {
		b.fields = append(b.fields, Field{Name: n})
	}
	return b
}

// Alias outputs the $field reference under a new name.
func (b *ProjectBuilder) Alias(alias, ref string) *ProjectBuilder {
	b.fields = append(b.fields, Field{Name: ref, Alias: alias})
	return b
}

// Compute outputs the result of an expression under alias.
func (b *ProjectBuilder) Compute(alias string, expr any) *ProjectBuilder {
	b.fields = append(b.fields, Field{Alias: alias, Expr: expr})
	return b
}

func (b *ProjectBuilder) Build() Project {
	fields := make([]Field, len(b.fields))
	copy(fields, b.fields)
	return Project{Fields: fields}
}

type SortBuilder struct {
	ob []OrderBy
}

func NewSort() *SortBuilder {
	return &SortBuilder{}
}

func (b *SortBuilder) Asc(field string) *SortBuilder {
	b.ob = append(b.ob, OrderBy{Field: field, Order: OrderAsc})
	return b
}

func (b *SortBuilder) Desc(field string) *SortBuilder {
	b.ob = append(b.ob, OrderBy{Field: field, Order: OrderDesc})
	return b
}

func (b *SortBuilder) Build() Sort {
	ob := make([]OrderBy, len(b.ob))
	copy(ob, b.ob)
	return Sort{OrderBy: ob}
}
