package dialect_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dosco/bsonq/core/internal/conv"
	"github.com/dosco/bsonq/core/internal/dialect"
	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestProjection(t *testing.T) {
	co := newCompiler()

	tests := []struct {
		name   string
		fields []qcode.Field
		want   bson.D
	}{
		{
			name:   "hides _id",
			fields: []qcode.Field{{Name: "name"}},
			want:   bson.D{{Key: "name", Value: true}, {Key: "_id", Value: false}},
		},
		{
			name:   "keeps _id when picked",
			fields: []qcode.Field{{Name: "name"}, {Name: "_id"}},
			want:   bson.D{{Key: "name", Value: true}, {Key: "_id", Value: true}},
		},
		{
			name:   "all fields",
			fields: []qcode.Field{{Name: "*"}},
			want:   bson.D{},
		},
		{
			name:   "alias",
			fields: []qcode.Field{{Name: "name", Alias: "n"}},
			want:   bson.D{{Key: "n", Value: "$name"}, {Key: "_id", Value: false}},
		},
		{
			name: "expression",
			fields: []qcode.Field{{
				Alias: "total",
				Expr:  bson.D{{Key: "$add", Value: bson.A{"$a", "$b"}}},
			}},
			want: bson.D{
				{Key: "total", Value: bson.D{{Key: "$add", Value: bson.A{"$a", "$b"}}}},
				{Key: "_id", Value: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := co.CompileProjection(nil, tt.fields, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}

	_, err := co.CompileProjection(nil, []qcode.Field{{Expr: "$a"}}, false)
	assert.True(t, errors.Is(err, dialect.ErrMissingAlias))
}

func TestProjectionResolves(t *testing.T) {
	p, err := newCompiler().CompileProjection(usersResolver(t), []qcode.Field{
		{Name: "name"},
		{Name: "$name", Alias: "display"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "full_name", Value: true},
		{Key: "display", Value: "$full_name"},
		{Key: "_id", Value: false},
	}, p)
}

func TestExpression(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	e, err := newCompiler().CompileExp(usersResolver(t), bson.M{
		"label": bson.D{{Key: "$concat", Value: bson.A{"$name", " ", "$$ROOT.x"}}},
		"since": ts,
		"count": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "count", Value: 3},
		{Key: "label", Value: bson.D{{Key: "$concat", Value: bson.A{"$full_name", " ", "$$ROOT.x"}}}},
		{Key: "since", Value: bson.NewDateTimeFromTime(ts)},
	}, e)
}

func TestUpdateTypedOperators(t *testing.T) {
	res, err := sdata.NewCollection("stats", []sdata.Field{
		{Name: "views", Type: conv.TypeLong},
		{Name: "score", Type: conv.TypeDouble},
		{Name: "rank", Type: conv.TypeInt},
		{Name: "tags", Type: conv.TypeArray},
	}, nil)
	require.NoError(t, err)

	u, err := newCompiler().CompileUpdate(res, nil, []qcode.UpdateOp{
		{Op: "$inc", Field: "views", Val: 1},
		{Op: "$mul", Field: "score", Val: 2},
		{Op: "$max", Field: "rank", Val: "7"},
		{Op: "$push", Field: "tags", Val: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "views", Value: int64(1)}}},
		{Key: "$mul", Value: bson.D{{Key: "score", Value: float64(2)}}},
		{Key: "$max", Value: bson.D{{Key: "rank", Value: int32(7)}}},
		{Key: "$push", Value: bson.D{{Key: "tags", Value: "x"}}},
	}, u)

	_, err = newCompiler().CompileUpdate(res, nil, []qcode.UpdateOp{{Op: "$inc", Field: "rank", Val: int64(1) << 40}})
	var ce *conv.ConversionError
	assert.ErrorAs(t, err, &ce)
}

func TestUpdate(t *testing.T) {
	u, err := newCompiler().CompileUpdate(usersResolver(t),
		map[string]any{"name": "Bob", "age": 3},
		[]qcode.UpdateOp{
			{Op: "$inc", Field: "count", Val: 1},
			{Op: "push", Field: "tags", Val: "x"},
			{Op: "$inc", Field: "views", Val: 2},
			{Op: "$rename", Field: "nick", Val: "name"},
		})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "count", Value: 1}, {Key: "views", Value: 2}}},
		{Key: "$push", Value: bson.D{{Key: "tags", Value: "x"}}},
		{Key: "$rename", Value: bson.D{{Key: "nick", Value: "full_name"}}},
		{Key: "$set", Value: bson.D{{Key: "age", Value: 3}, {Key: "full_name", Value: "Bob"}}},
	}, u)

	_, err = newCompiler().CompileUpdate(nil, nil, nil)
	assert.True(t, errors.Is(err, dialect.ErrEmptyUpdate))
}

func TestInsertNestsPaths(t *testing.T) {
	co := newCompiler()

	doc, err := co.CompileInsert(nil, map[string]any{"a.b": 1, "c": "x"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"a": map[string]any{"b": 1}, "c": "x"}, doc)

	// the same field stays dotted in filters and updates
	u, err := co.CompileUpdate(nil, map[string]any{"a.b": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "a.b", Value: 1}}}}, u)
}

func TestPipeline(t *testing.T) {
	stages := []qcode.Stage{
		qcode.Match{Where: []qcode.Predicate{qcode.Where("age", ">", 18)}},
		qcode.NewGroup(bson.M{"dept": "$department"}).Sum("total", "$salary").Sum("n", 1).Build(),
		qcode.NewSort().Desc("total").Build(),
		qcode.Skip{N: 5},
		qcode.Limit{N: 10},
		qcode.NewProject().Include("name").Compute("years", "$age").Build(),
	}

	p, err := newCompiler().CompilePipeline(usersResolver(t), stages)
	require.NoError(t, err)
	assert.Equal(t, bson.A{
		bson.D{{Key: "$match", Value: gt("age", 18)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "dept", Value: "$department"}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$salary"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
		bson.D{{Key: "$skip", Value: int64(5)}},
		bson.D{{Key: "$limit", Value: int64(10)}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "full_name", Value: true},
			{Key: "years", Value: "$age"},
			{Key: "_id", Value: false},
		}}},
	}, p)
}

func TestPipelineComputedOnlyProject(t *testing.T) {
	s, err := newCompiler().CompileStage(nil, qcode.NewProject().Compute("years", "$age").Build())
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{{Key: "years", Value: "$age"}}}}, s)

	s, err = newCompiler().CompileStage(nil, qcode.NewGroup(nil).Avg("avg", "$age").Build())
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$age"}}},
	}}}, s)
}

func TestCompileSelect(t *testing.T) {
	cmd, err := newCompiler().Compile(usersResolver(t), &qcode.Statement{
		Type:       qcode.QTSelect,
		Collection: "users",
		Where:      []qcode.Predicate{qcode.Where("name", "like", "j%")},
		Fields:     []qcode.Field{{Name: "name"}},
		OrderBy:    []qcode.OrderBy{{Field: "created", Order: qcode.OrderDesc}},
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, dialect.CmdFind, cmd.Kind)
	assert.Equal(t, bson.D{
		{Key: "find", Value: "users"},
		{Key: "filter", Value: bson.D{{Key: "full_name", Value: bson.D{{Key: "$regex", Value: "^j.*$"}, {Key: "$options", Value: "i"}}}}},
		{Key: "projection", Value: bson.D{{Key: "full_name", Value: true}, {Key: "_id", Value: false}}},
		{Key: "sort", Value: bson.D{{Key: "created", Value: -1}}},
		{Key: "limit", Value: int64(20)},
	}, cmd.Doc())
}

func TestCompileReplace(t *testing.T) {
	co := newCompiler()
	res := usersResolver(t)

	cmd, err := co.Compile(res, &qcode.Statement{
		Type:       qcode.QTInsert,
		Collection: "users",
		Values:     map[string]any{"id": "u1", "name": "Bob"},
		Replace:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, dialect.CmdUpdate, cmd.Kind)
	assert.True(t, cmd.Upsert)
	assert.False(t, cmd.Multi)
	assert.Equal(t, bson.D{{Key: "_id", Value: "u1"}}, cmd.Filter)
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "full_name", Value: "Bob"}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: "u1"}}},
	}, cmd.Update)

	// without an identifier a replace is an insert
	cmd, err = co.Compile(res, &qcode.Statement{
		Type:       qcode.QTInsert,
		Collection: "users",
		Values:     map[string]any{"name": "Bob"},
		Replace:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, dialect.CmdInsert, cmd.Kind)
	assert.Equal(t, []bson.M{{"full_name": "Bob"}}, cmd.Documents)
}

func TestCompileWrites(t *testing.T) {
	co := newCompiler()

	cmd, err := co.Compile(nil, &qcode.Statement{
		Type:       qcode.QTDelete,
		Collection: "users",
		Where:      []qcode.Predicate{qcode.Where("age", "<", 18)},
		Multi:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "delete", Value: "users"},
		{Key: "deletes", Value: bson.A{bson.D{
			{Key: "q", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 18}}}}},
			{Key: "limit", Value: int32(0)},
		}}},
	}, cmd.Doc())

	cmd, err = co.Compile(nil, &qcode.Statement{
		Type:       qcode.QTUpdate,
		Collection: "users",
		Where:      []qcode.Predicate{qcode.Where("_id", "=", 1)},
		Ops:        []qcode.UpdateOp{{Op: "$inc", Field: "visits", Val: 1}},
		Upsert:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, dialect.CmdUpdate, cmd.Kind)
	assert.True(t, cmd.Upsert)
	assert.Equal(t, bson.D{{Key: "$inc", Value: bson.D{{Key: "visits", Value: 1}}}}, cmd.Update)

	cmd, err = co.Compile(nil, &qcode.Statement{Type: qcode.QTCount, Collection: "users", Skip: 2})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "count", Value: "users"},
		{Key: "query", Value: bson.D{}},
		{Key: "skip", Value: int64(2)},
	}, cmd.Doc())

	_, err = co.Compile(nil, &qcode.Statement{Type: qcode.QTSelect})
	assert.True(t, errors.Is(err, dialect.ErrEmptyCollection))
}

func TestCompileAggregate(t *testing.T) {
	cmd, err := newCompiler().CompileAggregate(nil, "orders", []qcode.Stage{qcode.Limit{N: 1}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "aggregate", Value: "orders"},
		{Key: "pipeline", Value: bson.A{bson.D{{Key: "$limit", Value: int64(1)}}}},
		{Key: "cursor", Value: bson.D{}},
	}, cmd.Doc())
}
