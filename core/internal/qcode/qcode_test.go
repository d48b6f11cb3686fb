package qcode_test

import (
	"testing"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseOp(t *testing.T) {
	tests := []struct {
		sym  string
		want qcode.ExpOp
	}{
		{"", qcode.OpEquals},
		{"=", qcode.OpEquals},
		{":eq", qcode.OpEquals},
		{"!=", qcode.OpNotEquals},
		{":ne", qcode.OpNotEquals},
		{"<=", qcode.OpLesserOrEquals},
		{"=~", qcode.OpRegex},
		{"LIKE", qcode.OpLike},
		{"notin", qcode.OpNotIn},
		{"!between", qcode.OpNotBetween},
		{"$elemMatch", qcode.OpElemMatch},
		{"$geoWithin", qcode.OpOther},
		{"$exists", qcode.OpOther},
	}

	for _, tt := range tests {
		t.Run(tt.sym, func(t *testing.T) {
			assert.Equal(t, tt.want, qcode.ParseOp(tt.sym))
		})
	}
}

func TestExpOpString(t *testing.T) {
	assert.Equal(t, "OpLike", qcode.OpLike.String())
	assert.Equal(t, "ExpOp(99)", qcode.ExpOp(99).String())
	assert.Equal(t, "$nin", qcode.OpNotIn.Native())
	assert.Empty(t, qcode.OpBetween.Native())
}

func TestRewriters(t *testing.T) {
	p, err := qcode.Exists(true).Rewrite(qcode.Where("email", "=", nil))
	require.NoError(t, err)
	assert.Equal(t, "$exists", p.Op)
	assert.Equal(t, qcode.Converted{Val: true}, p.Val)
	assert.Equal(t, "email", p.Field)

	p, err = qcode.Text{Search: "coffee"}.Rewrite(qcode.OrWhere("body", "=", nil))
	require.NoError(t, err)
	assert.Empty(t, p.Field)
	assert.Equal(t, qcode.GlueOr, p.Glue)
	assert.Equal(t, bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: "coffee"}}}}, p.Raw)

	p, err = qcode.Not{Op: ">", Val: 5}.Rewrite(qcode.Where("age", "=", nil))
	require.NoError(t, err)
	assert.Equal(t, "$not", p.Op)
	assert.Equal(t, qcode.Converted{Val: bson.D{{Key: "$gt", Value: 5}}}, p.Val)

	_, err = qcode.Not{Op: "between", Val: []int{1, 2}}.Rewrite(qcode.Where("age", "=", nil))
	assert.Error(t, err)
}

func TestGroupBuilderFreezes(t *testing.T) {
	b := qcode.NewGroup("$dept").Sum("total", "$salary").Avg("avg", "$salary")
	g := b.Build()
	b.Max("max", "$salary")

	require.Len(t, g.Accumulators, 2)
	assert.Equal(t, "total", g.Accumulators[0].Field)
	assert.Equal(t, qcode.AccAvg, g.Accumulators[1].Op)
	assert.Len(t, b.Build().Accumulators, 3)
}

func TestParseAccOp(t *testing.T) {
	op, ok := qcode.ParseAccOp("addToSet")
	require.True(t, ok)
	assert.Equal(t, qcode.AccAddToSet, op)

	op, ok = qcode.ParseAccOp("$stddevpop")
	require.True(t, ok)
	assert.Equal(t, "$stdDevPop", op.String())

	_, ok = qcode.ParseAccOp("median")
	assert.False(t, ok)
}

func TestStageExport(t *testing.T) {
	s := qcode.NewSort().Asc("name").Desc("age").Build()
	assert.Equal(t, bson.D{{Key: "sort", Value: bson.D{
		{Key: "name", Value: "asc"},
		{Key: "age", Value: "desc"},
	}}}, s.Export())

	assert.Equal(t, bson.D{{Key: "limit", Value: int64(10)}}, qcode.Limit{N: 10}.Export())

	m := qcode.Match{Where: []qcode.Predicate{qcode.Where("age", ">", 18)}}
	assert.Equal(t, bson.D{{Key: "match", Value: bson.A{bson.D{
		{Key: "glue", Value: "and"},
		{Key: "field", Value: "age"},
		{Key: "op", Value: ">"},
		{Key: "value", Value: 18},
	}}}}, m.Export())

	p := qcode.NewProject().Include("name").Compute("n", "$age").Build()
	assert.Equal(t, bson.D{{Key: "project", Value: bson.A{
		bson.D{{Key: "name", Value: "name"}},
		bson.D{{Key: "name", Value: ""}, {Key: "alias", Value: "n"}, {Key: "expr", Value: "$age"}},
	}}}, p.Export())
}
