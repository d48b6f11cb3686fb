package core

import (
	"context"

	"github.com/dosco/bsonq/core/internal/dialect"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Command is a compiled statement. Doc renders it as a database command.
type Command = dialect.Command

type CommandKind = dialect.CommandKind

const (
	CmdFind      = dialect.CmdFind
	CmdInsert    = dialect.CmdInsert
	CmdUpdate    = dialect.CmdUpdate
	CmdDelete    = dialect.CmdDelete
	CmdCount     = dialect.CmdCount
	CmdAggregate = dialect.CmdAggregate
)

// Index descriptors as used by the driver and the index differ.
type (
	IndexDesc = sdata.Index
	IndexKey  = sdata.IndexKey
	IndexSet  = sdata.IndexSet
)

type WriteKind int8

const (
	WriteInsert WriteKind = iota
	WriteUpdate
	WriteDelete
)

func (k WriteKind) String() string {
	switch k {
	case WriteInsert:
		return "insert"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	}
	return "unknown"
}

// WriteOp is one operation of a batched write.
type WriteOp struct {
	Kind     WriteKind
	Filter   bson.D
	Update   bson.D
	Document bson.M
	Upsert   bool
	Multi    bool
}

// WriteResult holds the counts reported by the database for a write.
type WriteResult struct {
	Inserted int64
	Matched  int64
	Modified int64
	Upserted int64
	Deleted  int64
}

// Affected returns the number of documents the write touched.
func (r WriteResult) Affected() int64 {
	return r.Inserted + r.Matched + r.Upserted + r.Deleted
}

// BulkOptions are passed through to the driver. Ordered writes stop at the
// first failure.
type BulkOptions struct {
	Ordered bool
}

// Driver executes compiled commands against the database. Errors returned by
// a driver are wrapped in an ExecutionError by the callers in this package.
type Driver interface {
	Find(ctx context.Context, cmd *Command) ([]bson.M, error)
	Aggregate(ctx context.Context, cmd *Command) ([]bson.M, error)
	Count(ctx context.Context, cmd *Command) (int64, error)
	Write(ctx context.Context, cmd *Command) (WriteResult, error)
	BulkWrite(ctx context.Context, collection string, ops []WriteOp, opts BulkOptions) (WriteResult, error)
	ListIndexes(ctx context.Context, collection string) ([]bson.D, error)
	CreateIndex(ctx context.Context, collection string, idx IndexDesc) error
	DropIndex(ctx context.Context, collection, name string) error
}

// Result of executing a command. Docs is set for reads, Count for counts and
// Write for inserts, updates and deletes.
type Result struct {
	Kind  CommandKind
	Docs  []bson.M
	Count int64
	Write WriteResult
}

// Execute runs a compiled command with the driver.
func (co *Compiler) Execute(ctx context.Context, drv Driver, cmd *Command) (*Result, error) {
	ctx, span := co.spanStart(ctx, "Execute Command")
	defer span.End()

	if span.IsRecording() {
		span.SetAttributesString(
			StringAttr{"command.kind", cmd.Kind.String()},
			StringAttr{"command.collection", cmd.Collection})
	}

	res := &Result{Kind: cmd.Kind}
	var err error

	switch cmd.Kind {
	case CmdFind:
		res.Docs, err = drv.Find(ctx, cmd)
	case CmdAggregate:
		res.Docs, err = drv.Aggregate(ctx, cmd)
	case CmdCount:
		res.Count, err = drv.Count(ctx, cmd)
	default:
		res.Write, err = drv.Write(ctx, cmd)
	}

	if err != nil {
		span.Error(err)
		co.log.Debug("execute failed",
			zap.String("kind", cmd.Kind.String()),
			zap.String("collection", cmd.Collection),
			zap.Error(err))
		return nil, &ExecutionError{Op: cmd.Kind.String(), Collection: cmd.Collection, Err: err}
	}
	return res, nil
}
