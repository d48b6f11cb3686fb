// Package mongodriver runs compiled commands against a MongoDB database
// using the official Go driver.
package mongodriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dosco/bsonq/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// namespace not found, returned when listing indexes of a missing collection
const codeNamespaceNotFound = 26

// Driver implements core.Driver for one database.
type Driver struct {
	db *mongo.Database
}

var _ core.Driver = (*Driver)(nil)

func New(db *mongo.Database) *Driver {
	return &Driver{db: db}
}

// Database returns the underlying database handle.
func (d *Driver) Database() *mongo.Database {
	return d.db
}

func (d *Driver) Find(ctx context.Context, cmd *core.Command) ([]bson.M, error) {
	opts := options.Find()
	if len(cmd.Projection) != 0 {
		opts.SetProjection(cmd.Projection)
	}
	if len(cmd.Sort) != 0 {
		opts.SetSort(cmd.Sort)
	}
	if cmd.Skip > 0 {
		opts.SetSkip(cmd.Skip)
	}
	if cmd.Limit > 0 {
		opts.SetLimit(cmd.Limit)
	}

	cursor, err := d.db.Collection(cmd.Collection).Find(ctx, filter(cmd.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: find: %w", err)
	}
	return all(ctx, cursor, "find")
}

func (d *Driver) Aggregate(ctx context.Context, cmd *core.Command) ([]bson.M, error) {
	pipeline := cmd.Pipeline
	if pipeline == nil {
		pipeline = bson.A{}
	}
	cursor, err := d.db.Collection(cmd.Collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: aggregate: %w", err)
	}
	return all(ctx, cursor, "aggregate")
}

func all(ctx context.Context, cursor *mongo.Cursor, op string) ([]bson.M, error) {
	defer cursor.Close(ctx)

	results := []bson.M{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("mongodriver: %s results: %w", op, err)
	}
	return results, nil
}

func (d *Driver) Count(ctx context.Context, cmd *core.Command) (int64, error) {
	opts := options.Count()
	if cmd.Skip > 0 {
		opts.SetSkip(cmd.Skip)
	}
	if cmd.Limit > 0 {
		opts.SetLimit(cmd.Limit)
	}

	n, err := d.db.Collection(cmd.Collection).CountDocuments(ctx, filter(cmd.Filter), opts)
	if err != nil {
		return 0, fmt.Errorf("mongodriver: count: %w", err)
	}
	return n, nil
}

// Write runs an insert, update or delete command.
func (d *Driver) Write(ctx context.Context, cmd *core.Command) (core.WriteResult, error) {
	coll := d.db.Collection(cmd.Collection)

	switch cmd.Kind {
	case core.CmdInsert:
		if len(cmd.Documents) == 0 {
			return core.WriteResult{}, nil
		}
		res, err := coll.InsertMany(ctx, cmd.Documents)
		if err != nil {
			return core.WriteResult{}, fmt.Errorf("mongodriver: insert: %w", err)
		}
		return core.WriteResult{Inserted: int64(len(res.InsertedIDs))}, nil

	case core.CmdUpdate:
		var res *mongo.UpdateResult
		var err error
		if cmd.Multi {
			res, err = coll.UpdateMany(ctx, filter(cmd.Filter), cmd.Update,
				options.UpdateMany().SetUpsert(cmd.Upsert))
		} else {
			res, err = coll.UpdateOne(ctx, filter(cmd.Filter), cmd.Update,
				options.UpdateOne().SetUpsert(cmd.Upsert))
		}
		if err != nil {
			return core.WriteResult{}, fmt.Errorf("mongodriver: update: %w", err)
		}
		return core.WriteResult{
			Matched:  res.MatchedCount,
			Modified: res.ModifiedCount,
			Upserted: res.UpsertedCount,
		}, nil

	case core.CmdDelete:
		var res *mongo.DeleteResult
		var err error
		if cmd.Multi {
			res, err = coll.DeleteMany(ctx, filter(cmd.Filter))
		} else {
			res, err = coll.DeleteOne(ctx, filter(cmd.Filter))
		}
		if err != nil {
			return core.WriteResult{}, fmt.Errorf("mongodriver: delete: %w", err)
		}
		return core.WriteResult{Deleted: res.DeletedCount}, nil
	}

	return core.WriteResult{}, fmt.Errorf("mongodriver: %s is not a write", cmd.Kind)
}

// BulkWrite sends ops to the collection in one batch.
func (d *Driver) BulkWrite(ctx context.Context, collection string, ops []core.WriteOp, opts core.BulkOptions) (core.WriteResult, error) {
	models, err := writeModels(ops)
	if err != nil {
		return core.WriteResult{}, err
	}
	if len(models) == 0 {
		return core.WriteResult{}, nil
	}

	res, err := d.db.Collection(collection).BulkWrite(ctx, models,
		options.BulkWrite().SetOrdered(opts.Ordered))
	if err != nil {
		return core.WriteResult{}, fmt.Errorf("mongodriver: bulkWrite: %w", err)
	}
	return bulkResult(res), nil
}

func (d *Driver) ListIndexes(ctx context.Context, collection string) ([]bson.D, error) {
	cursor, err := d.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Code == codeNamespaceNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodriver: listIndexes: %w", err)
	}
	defer cursor.Close(ctx)

	var indexes []bson.D
	if err := cursor.All(ctx, &indexes); err != nil {
		return nil, fmt.Errorf("mongodriver: listIndexes results: %w", err)
	}
	return indexes, nil
}

func (d *Driver) CreateIndex(ctx context.Context, collection string, idx core.IndexDesc) error {
	op := core.IndexOperation{Type: core.OpCreateIndex, Collection: collection, Index: idx}
	if err := d.db.RunCommand(ctx, op.Command()).Err(); err != nil {
		return fmt.Errorf("mongodriver: createIndexes: %w", err)
	}
	return nil
}

func (d *Driver) DropIndex(ctx context.Context, collection, name string) error {
	op := core.IndexOperation{Type: core.OpDropIndex, Collection: collection, Index: core.IndexDesc{Name: name}}
	if err := d.db.RunCommand(ctx, op.Command()).Err(); err != nil {
		return fmt.Errorf("mongodriver: dropIndexes: %w", err)
	}
	return nil
}

func filter(f bson.D) bson.D {
	if f == nil {
		return bson.D{}
	}
	return f
}
