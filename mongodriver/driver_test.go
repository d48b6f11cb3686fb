package mongodriver

import (
	"testing"

	"github.com/dosco/bsonq/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestWriteModels(t *testing.T) {
	id := bson.NewObjectID()
	byID := bson.D{{Key: "_id", Value: id}}
	set := bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "ann"}}}}

	models, err := writeModels([]core.WriteOp{
		{Kind: core.WriteInsert, Document: bson.M{"_id": id}},
		{Kind: core.WriteUpdate, Filter: byID, Update: set, Upsert: true},
		{Kind: core.WriteUpdate, Update: set, Multi: true},
		{Kind: core.WriteDelete, Filter: byID},
		{Kind: core.WriteDelete, Multi: true},
	})
	require.NoError(t, err)
	require.Len(t, models, 5)

	ins, ok := models[0].(*mongo.InsertOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": id}, ins.Document)

	upd, ok := models[1].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, byID, upd.Filter)
	assert.Equal(t, set, upd.Update)
	require.NotNil(t, upd.Upsert)
	assert.True(t, *upd.Upsert)

	many, ok := models[2].(*mongo.UpdateManyModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{}, many.Filter)

	del, ok := models[3].(*mongo.DeleteOneModel)
	require.True(t, ok)
	assert.Equal(t, byID, del.Filter)

	_, ok = models[4].(*mongo.DeleteManyModel)
	assert.True(t, ok)
}

func TestWriteModelsInvalid(t *testing.T) {
	_, err := writeModels([]core.WriteOp{{Kind: core.WriteInsert}})
	assert.ErrorContains(t, err, "insert without a document")

	_, err = writeModels([]core.WriteOp{{Kind: core.WriteUpdate, Filter: bson.D{}}})
	assert.ErrorContains(t, err, "update without changes")

	models, err := writeModels(nil)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestBulkResult(t *testing.T) {
	res := bulkResult(&mongo.BulkWriteResult{
		InsertedCount: 2,
		MatchedCount:  3,
		ModifiedCount: 1,
		UpsertedCount: 1,
		DeletedCount:  4,
	})
	assert.Equal(t, core.WriteResult{Inserted: 2, Matched: 3, Modified: 1, Upserted: 1, Deleted: 4}, res)
	assert.EqualValues(t, 10, res.Affected())

	assert.Equal(t, core.WriteResult{}, bulkResult(nil))
}

func TestInferBSONType(t *testing.T) {
	tests := []struct {
		val  any
		want string
	}{
		{nil, "null"},
		{bson.NewObjectID(), "objectId"},
		{"a", "string"},
		{int32(1), "int"},
		{int64(1), "long"},
		{1.5, "double"},
		{true, "bool"},
		{bson.DateTime(0), "date"},
		{bson.A{1}, "array"},
		{[]string{"a"}, "array"},
		{bson.M{"a": 1}, "object"},
		{bson.D{{Key: "a", Value: 1}}, "object"},
		{bson.Binary{Subtype: bson.TypeBinaryUUID, Data: make([]byte, 16)}, "uuid"},
		{bson.Binary{Data: []byte("x")}, "binData"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferBSONType(tt.val), "%T", tt.val)
	}
}

func TestColumnTypes(t *testing.T) {
	fields := make(map[string]fieldInfo)
	addSampled(fields, bson.M{"_id": bson.NewObjectID(), "name": nil, "age": int32(3)})
	addSampled(fields, bson.M{"name": "ann", "age": "three", "tags": bson.A{"x"}})

	assert.Equal(t, "string", fields["name"].BSONType, "null values are replaced")
	assert.Equal(t, "int", fields["age"].BSONType, "the first type seen wins")

	merged := mergeFields(map[string]fieldInfo{
		"age": {Name: "age", BSONType: normalizeBSONType(bson.A{"null", "long"})},
	}, fields)

	assert.Equal(t, "objectid", columnType(merged["_id"].BSONType))
	assert.Equal(t, "long", columnType(merged["age"].BSONType))
	assert.Equal(t, "array", columnType(merged["tags"].BSONType))
	assert.Equal(t, "binary", columnType("binData"))
	assert.Equal(t, "", columnType("javascript"))
}
