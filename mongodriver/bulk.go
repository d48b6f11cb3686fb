package mongodriver

import (
	"fmt"

	"github.com/dosco/bsonq/core"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// writeModels converts queued writes into driver write models.
func writeModels(ops []core.WriteOp) ([]mongo.WriteModel, error) {
	models := make([]mongo.WriteModel, 0, len(ops))

	for i, op := range ops {
		switch op.Kind {
		case core.WriteInsert:
			if op.Document == nil {
				return nil, fmt.Errorf("mongodriver: write %d: insert without a document", i)
			}
			models = append(models, mongo.NewInsertOneModel().SetDocument(op.Document))

		case core.WriteUpdate:
			if len(op.Update) == 0 {
				return nil, fmt.Errorf("mongodriver: write %d: update without changes", i)
			}
			if op.Multi {
				models = append(models, mongo.NewUpdateManyModel().
					SetFilter(filter(op.Filter)).
					SetUpdate(op.Update).
					SetUpsert(op.Upsert))
			} else {
				models = append(models, mongo.NewUpdateOneModel().
					SetFilter(filter(op.Filter)).
					SetUpdate(op.Update).
					SetUpsert(op.Upsert))
			}

		case core.WriteDelete:
			if op.Multi {
				models = append(models, mongo.NewDeleteManyModel().SetFilter(filter(op.Filter)))
			} else {
				models = append(models, mongo.NewDeleteOneModel().SetFilter(filter(op.Filter)))
			}

		default:
			return nil, fmt.Errorf("mongodriver: write %d: unknown kind %s", i, op.Kind)
		}
	}
	return models, nil
}

func bulkResult(res *mongo.BulkWriteResult) core.WriteResult {
	if res == nil {
		return core.WriteResult{}
	}
	return core.WriteResult{
		Inserted: res.InsertedCount,
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
		Upserted: res.UpsertedCount,
		Deleted:  res.DeletedCount,
	}
}
