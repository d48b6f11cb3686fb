package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	OpDropIndex   = "drop_index"
	OpCreateIndex = "create_index"
)

// IndexOperation is one step of moving a collection from its live indexes
// to the declared ones.
type IndexOperation struct {
	Type       string // "drop_index" or "create_index"
	Collection string
	Index      IndexDesc
}

// Command returns the database command for the operation.
func (op IndexOperation) Command() bson.D {
	if op.Type == OpDropIndex {
		return bson.D{
			{Key: "dropIndexes", Value: op.Collection},
			{Key: "index", Value: op.Index.Name},
		}
	}
	return bson.D{
		{Key: "createIndexes", Value: op.Collection},
		{Key: "indexes", Value: bson.A{op.Index.Spec()}},
	}
}

// DiffIndexes computes the operations that turn the live indexes of a
// collection into the declared ones. Indexes are matched by name and one that
// changed keys, key order or uniqueness is dropped and created again. All
// drops come before all creates so a redefined index can reuse its name.
// The primary index is never touched. Changes to other index options are not
// detected.
func DiffIndexes(collection string, live, declared IndexSet) []IndexOperation {
	liveByName := lo.KeyBy(live, func(i IndexDesc) string { return i.Name })
	declaredByName := lo.KeyBy(declared, func(i IndexDesc) string { return i.Name })

	var ops []IndexOperation

	for _, l := range live {
		if l.Primary {
			continue
		}
		if d, ok := declaredByName[l.Name]; !ok || !d.Equal(l) {
			ops = append(ops, IndexOperation{Type: OpDropIndex, Collection: collection, Index: l})
		}
	}

	for _, d := range declared {
		if d.Primary {
			continue
		}
		if l, ok := liveByName[d.Name]; !ok || !l.Equal(d) {
			ops = append(ops, IndexOperation{Type: OpCreateIndex, Collection: collection, Index: d})
		}
	}

	return ops
}

type SyncOptions struct {
	// Only compute the operations without applying them
	DryRun bool
}

// SyncIndexes brings the indexes of every configured collection in line
// with the config. Collections are handled concurrently, within a collection
// drops are applied before creates. The operations are returned by
// collection whether or not they were applied.
func (co *Compiler) SyncIndexes(ctx context.Context, drv Driver, opts SyncOptions) (map[string][]IndexOperation, error) {
	var mu sync.Mutex
	result := make(map[string][]IndexOperation)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range co.schema.Collections() {
		g.Go(func() error {
			ops, err := co.syncCollection(ctx, drv, c, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			result[c.Name] = ops
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (co *Compiler) syncCollection(ctx context.Context, drv Driver, c *sdata.Collection, opts SyncOptions) (ops []IndexOperation, err error) {
	ctx, span := co.spanStart(ctx, "Sync Indexes")
	defer func() {
		if err != nil {
			span.Error(err)
		}
		span.End()
	}()
	span.SetAttributesString(StringAttr{"sync.collection", c.Name})

	docs, err := drv.ListIndexes(ctx, c.Name)
	if err != nil {
		return nil, &ExecutionError{Op: "listIndexes", Collection: c.Name, Err: err}
	}

	live := make(IndexSet, 0, len(docs))
	for _, d := range docs {
		idx, err := sdata.ParseIndex(d)
		if err != nil {
			return nil, fmt.Errorf("core: collection %s: %w", c.Name, err)
		}
		live = append(live, idx)
	}

	ops = DiffIndexes(c.Name, live, c.Indexes)
	for _, op := range ops {
		co.log.Info("index change",
			zap.String("collection", c.Name),
			zap.String("index", op.Index.Name),
			zap.String("type", op.Type),
			zap.Bool("dry_run", opts.DryRun))

		if opts.DryRun {
			continue
		}
		if op.Type == OpDropIndex {
			err = drv.DropIndex(ctx, c.Name, op.Index.Name)
		} else {
			err = drv.CreateIndex(ctx, c.Name, op.Index)
		}
		if err != nil {
			return nil, &ExecutionError{Op: op.Type, Collection: c.Name, Err: err}
		}
	}
	return ops, nil
}
