package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type account struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

func (a *account) GetID() any {
	if a.ID == "" {
		return nil
	}
	return a.ID
}

func (a *account) SetID(id any) { a.ID = id.(string) }

func TestBulkWriterFlush(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("users", drv)
	ctx := context.Background()

	alice := map[string]any{"name": "alice"}
	n, err := bw.Insert(alice, InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.IsType(t, bson.ObjectID{}, alice["_id"], "a generated id is set on the entity")

	alice["name"] = "alicia"
	n, err = bw.Update(alice, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = bw.Insert(map[string]any{"name": "bob"}, InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = bw.Delete(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 4, bw.Pending())

	affected, err := bw.Flush(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, affected)
	assert.Equal(t, 0, bw.Pending())

	affected, err = bw.Flush(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
	require.Len(t, drv.batches, 1, "an empty queue does not reach the driver")

	ops := drv.batches[0]
	require.Len(t, ops, 4)
	assert.Equal(t, WriteInsert, ops[0].Kind)
	assert.Equal(t, bson.M{"_id": alice["_id"], "full_name": "alice"}, ops[0].Document)

	assert.Equal(t, WriteUpdate, ops[1].Kind)
	assert.Equal(t, bson.D{{Key: "_id", Value: alice["_id"]}}, ops[1].Filter)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "full_name", Value: "alicia"}}}}, ops[1].Update)

	assert.Equal(t, WriteDelete, ops[3].Kind)
	assert.Equal(t, bson.D{{Key: "_id", Value: alice["_id"]}}, ops[3].Filter)
}

func TestBulkWriterUpdateWithoutID(t *testing.T) {
	co := newTestCompiler(t)
	bw := co.NewBulkWriter("users", &fakeDriver{})

	_, err := bw.Insert(map[string]any{"name": "a"}, InsertOptions{})
	require.NoError(t, err)

	_, err = bw.Update(map[string]any{"name": "b"}, UpdateOptions{})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
	assert.Equal(t, 1, bw.Pending())
}

func TestBulkWriterDeleteWithoutID(t *testing.T) {
	co := newTestCompiler(t)
	bw := co.NewBulkWriter("users", &fakeDriver{})

	n, err := bw.Delete(map[string]any{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, bw.Pending())
}

func TestBulkWriterReplace(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("users", drv)

	id := bson.NewObjectID()
	_, err := bw.Insert(map[string]any{"_id": id, "name": "carol"}, InsertOptions{Replace: true})
	require.NoError(t, err)

	_, err = bw.Flush(context.Background())
	require.NoError(t, err)

	op := drv.batches[0][0]
	assert.Equal(t, WriteUpdate, op.Kind)
	assert.True(t, op.Upsert)
	assert.Equal(t, bson.D{{Key: "_id", Value: id}}, op.Filter)
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "full_name", Value: "carol"}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: id}}},
	}, op.Update)
}

func TestBulkWriterAttributes(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("users", drv)

	acc := &account{ID: "a1", Name: "dave", Email: "dave@example.com"}
	_, err := bw.Update(acc, UpdateOptions{Attributes: []string{"email"}, Upsert: true})
	require.NoError(t, err)

	_, err = bw.Update(acc, UpdateOptions{Attributes: []string{"missing"}})
	assert.Error(t, err)

	_, err = bw.Flush(context.Background())
	require.NoError(t, err)

	op := drv.batches[0][0]
	assert.True(t, op.Upsert)
	assert.Equal(t, bson.D{{Key: "_id", Value: "a1"}}, op.Filter)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "contact.email", Value: "dave@example.com"}}}}, op.Update)
}

func TestBulkWriterEntityIDGenerator(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("events", drv, BulkOptionSetOrdered(false))

	acc := &account{Name: "erin"}
	_, err := bw.Insert(acc, InsertOptions{})
	require.NoError(t, err)
	assert.Len(t, acc.ID, 20, "events use xid identifiers")

	_, err = bw.Flush(context.Background())
	require.NoError(t, err)
	assert.False(t, drv.opts[0].Ordered)
	assert.Equal(t, acc.ID, drv.batches[0][0].Document["_id"])
}

func TestBulkWriterFlushError(t *testing.T) {
	co := newTestCompiler(t)
	cause := errors.New("connection reset")
	drv := &fakeDriver{err: cause}
	bw := co.NewBulkWriter("users", drv)

	_, err := bw.Insert(map[string]any{"name": "a"}, InsertOptions{})
	require.NoError(t, err)

	_, err = bw.Flush(context.Background())
	require.Error(t, err)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "bulkWrite", ee.Op)
	assert.Equal(t, "users", ee.Collection)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, bw.Pending())
}

func TestBulkWriterOrderedByDefault(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("users", drv)

	_, err := bw.Insert(map[string]any{"name": "a"}, InsertOptions{})
	require.NoError(t, err)
	_, err = bw.Flush(context.Background())
	require.NoError(t, err)

	require.Len(t, drv.opts, 1)
	assert.True(t, drv.opts[0].Ordered)
}

type profile struct {
	ID      string    `bson:"_id,omitempty"`
	Name    string    `bson:"name"`
	Created time.Time `bson:"created"`
	Note    string
	Secret  string `bson:"-"`
	Email   string `bson:"email,omitempty"`
}

func (p *profile) GetID() any {
	if p.ID == "" {
		return nil
	}
	return p.ID
}

func (p *profile) SetID(id any) { p.ID = id.(string) }

func TestDefaultMapperStruct(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err := DefaultMapper{}.ToDocument(&profile{ID: "p1", Name: "ann", Created: ts, Note: "hi", Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"_id":     "p1",
		"name":    "ann",
		"created": bson.NewDateTimeFromTime(ts),
		"note":    "hi",
	}, doc)
}

func TestBulkWriterStructWithTime(t *testing.T) {
	co := newTestCompiler(t)
	drv := &fakeDriver{}
	bw := co.NewBulkWriter("users", drv)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &profile{ID: "p1", Name: "ann", Created: ts}
	_, err := bw.Insert(p, InsertOptions{})
	require.NoError(t, err)

	_, err = bw.Update(p, UpdateOptions{Attributes: []string{"created"}})
	require.NoError(t, err)

	_, err = bw.Flush(context.Background())
	require.NoError(t, err)

	ops := drv.batches[0]
	require.Len(t, ops, 2)
	assert.Equal(t, bson.M{
		"_id":       "p1",
		"full_name": "ann",
		"created":   bson.NewDateTimeFromTime(ts),
		"note":      "",
	}, ops[0].Document)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "created", Value: bson.NewDateTimeFromTime(ts)}}}}, ops[1].Update)
}
