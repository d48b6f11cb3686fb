package core

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Entity is implemented by application types stored through a BulkWriter.
type Entity interface {
	GetID() any
	SetID(id any)
}

// Mapper turns entities into documents and reads or assigns their
// identifier.
type Mapper interface {
	ToDocument(entity any) (map[string]any, error)
	ID(entity any) (any, bool)
	SetID(entity any, id any) error
}

// DefaultMapper handles maps and Entity structs. Structs are serialized
// using their bson tags.
type DefaultMapper struct{}

func (DefaultMapper) ToDocument(entity any) (map[string]any, error) {
	switch e := entity.(type) {
	case map[string]any:
		return lo.Assign(e), nil
	case bson.M:
		return lo.Assign(map[string]any(e)), nil
	}

	data, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("core: serialize %T: %w", entity, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("core: serialize %T: %w", entity, err)
	}
	return map[string]any(doc), nil
}

func (DefaultMapper) ID(entity any) (any, bool) {
	var id any
	switch e := entity.(type) {
	case map[string]any:
		id = mapID(e)
	case bson.M:
		id = mapID(e)
	case Entity:
		id = e.GetID()
	}
	return id, !isZeroID(id)
}

func (DefaultMapper) SetID(entity any, id any) error {
	switch e := entity.(type) {
	case map[string]any:
		e["_id"] = id
	case bson.M:
		e["_id"] = id
	case Entity:
		e.SetID(id)
	default:
		return fmt.Errorf("core: cannot set the identifier of %T", entity)
	}
	return nil
}

func mapID(m map[string]any) any {
	if id, ok := m["_id"]; ok {
		return id
	}
	return m["id"]
}

func isZeroID(id any) bool {
	if id == nil {
		return true
	}
	rv := reflect.ValueOf(id)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return true
	}
	return rv.IsZero()
}

type InsertOptions struct {
	// Replace the stored document when the entity has an identifier
	Replace bool
}

type UpdateOptions struct {
	// Only these fields are written. Dotted names address nested fields
	Attributes []string
	Upsert     bool
}

// BulkWriter queues writes to one collection and sends them as a single
// batch on Flush. A BulkWriter must not be used from more than one goroutine
// at a time.
type BulkWriter struct {
	co         *Compiler
	drv        Driver
	collection string
	res        sdata.Resolver
	mapper     Mapper
	idgen      IDGenerator
	opts       BulkOptions
	queue      []WriteOp
	log        *zap.Logger
}

type BulkOption func(*BulkWriter)

func BulkOptionSetMapper(m Mapper) BulkOption {
	return func(bw *BulkWriter) { bw.mapper = m }
}

// BulkOptionSetOrdered sets whether the batch stops at the first failed
// write. Batches are ordered unless set to false.
func BulkOptionSetOrdered(ordered bool) BulkOption {
	return func(bw *BulkWriter) { bw.opts.Ordered = ordered }
}

// NewBulkWriter creates an empty writer for collection.
func (co *Compiler) NewBulkWriter(collection string, drv Driver, options ...BulkOption) *BulkWriter {
	bw := &BulkWriter{
		co:         co,
		drv:        drv,
		collection: collection,
		res:        co.resolver(collection),
		mapper:     DefaultMapper{},
		idgen:      co.idGenerator(collection),
		opts:       BulkOptions{Ordered: true},
		log:        co.log.With(zap.String("collection", collection)),
	}
	for _, op := range options {
		op(bw)
	}
	return bw
}

// Insert queues an insert and returns 1. An entity without an identifier
// gets a new one. An entity with an identifier and the Replace option is
// queued as an upsert replacing the stored document.
func (bw *BulkWriter) Insert(entity any, opts InsertOptions) (int, error) {
	id, hasID := bw.mapper.ID(entity)
	if !hasID {
		id = bw.idgen()
		if err := bw.mapper.SetID(entity, id); err != nil {
			return 0, err
		}
	}

	doc, err := bw.mapper.ToDocument(entity)
	if err != nil {
		return 0, err
	}
	delete(doc, "id")
	doc["_id"] = id

	st := &qcode.Statement{
		Type:       qcode.QTInsert,
		Collection: bw.collection,
		Values:     doc,
		Replace:    hasID && opts.Replace,
	}
	cmd, err := bw.co.dc.Compile(bw.res, st)
	if err != nil {
		return 0, err
	}

	op := WriteOp{Kind: WriteInsert}
	if cmd.Kind == CmdUpdate {
		op = WriteOp{Kind: WriteUpdate, Filter: cmd.Filter, Update: cmd.Update, Upsert: true}
	} else {
		op.Document = cmd.Documents[0]
	}
	bw.push(op)
	return 1, nil
}

// Update queues an update keyed by the entity identifier and returns 1.
// With Attributes only those fields are written, otherwise the whole
// document except the identifier.
func (bw *BulkWriter) Update(entity any, opts UpdateOptions) (int, error) {
	id, ok := bw.mapper.ID(entity)
	if !ok {
		return 0, ErrMissingIdentifier
	}

	doc, err := bw.mapper.ToDocument(entity)
	if err != nil {
		return 0, err
	}

	changes := make(map[string]any)
	if len(opts.Attributes) != 0 {
		for _, a := range opts.Attributes {
			v, ok := lookup(doc, a)
			if !ok {
				return 0, fmt.Errorf("core: update %s: attribute %s not found", bw.collection, a)
			}
			changes[a] = v
		}
	} else {
		for k, v := range doc {
			if k == "_id" || k == "id" {
				continue
			}
			changes[k] = v
		}
	}

	filter, err := bw.idFilter(id)
	if err != nil {
		return 0, err
	}
	update, err := bw.co.dc.CompileUpdate(bw.res, changes, nil)
	if err != nil {
		return 0, err
	}

	bw.push(WriteOp{Kind: WriteUpdate, Filter: filter, Update: update, Upsert: opts.Upsert})
	return 1, nil
}

// Delete queues a delete keyed by the entity identifier and returns 1. An
// entity without an identifier was never stored so nothing is queued and 0
// is returned.
func (bw *BulkWriter) Delete(entity any) (int, error) {
	id, ok := bw.mapper.ID(entity)
	if !ok {
		return 0, nil
	}
	filter, err := bw.idFilter(id)
	if err != nil {
		return 0, err
	}
	bw.push(WriteOp{Kind: WriteDelete, Filter: filter})
	return 1, nil
}

// Pending returns the number of queued writes.
func (bw *BulkWriter) Pending() int {
	return len(bw.queue)
}

// Flush sends every queued write as one batch and returns the number of
// documents affected. The queue is empty afterwards even when the batch
// fails, which writes were applied then depends on the ordered option.
func (bw *BulkWriter) Flush(ctx context.Context) (int64, error) {
	if len(bw.queue) == 0 {
		return 0, nil
	}
	ops := bw.queue
	bw.queue = nil

	bw.log.Debug("bulk flush", zap.Int("ops", len(ops)), zap.Bool("ordered", bw.opts.Ordered))

	ctx, span := bw.co.spanStart(ctx, "Bulk Flush")
	defer span.End()

	if span.IsRecording() {
		span.SetAttributesString(
			StringAttr{"bulk.collection", bw.collection},
			StringAttr{"bulk.ops", strconv.Itoa(len(ops))})
	}

	res, err := bw.drv.BulkWrite(ctx, bw.collection, ops, bw.opts)
	if err != nil {
		span.Error(err)
		bw.log.Debug("bulk flush failed", zap.Error(err))
		return 0, &ExecutionError{Op: "bulkWrite", Collection: bw.collection, Err: err}
	}

	bw.log.Debug("bulk flushed",
		zap.Int64("inserted", res.Inserted),
		zap.Int64("matched", res.Matched),
		zap.Int64("upserted", res.Upserted),
		zap.Int64("deleted", res.Deleted))
	return res.Affected(), nil
}

// Close flushes the writes still queued.
func (bw *BulkWriter) Close(ctx context.Context) error {
	_, err := bw.Flush(ctx)
	return err
}

func (bw *BulkWriter) push(op WriteOp) {
	bw.queue = append(bw.queue, op)
	bw.log.Debug("bulk queued", zap.Stringer("op", op.Kind), zap.Int("pending", len(bw.queue)))
}

func (bw *BulkWriter) idFilter(id any) (bson.D, error) {
	return bw.co.dc.CompileFilter(bw.res, []qcode.Predicate{qcode.Where("_id", "=", id)})
}

// lookup reads a dotted path from nested maps.
func lookup(doc map[string]any, path string) (any, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}
	head, rest, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	switch sub := doc[head].(type) {
	case map[string]any:
		return lookup(sub, rest)
	case bson.M:
		return lookup(sub, rest)
	}
	return nil, false
}
