package dialect

import (
	"fmt"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type CommandKind int8

const (
	CmdFind CommandKind = iota
	CmdInsert
	CmdUpdate
	CmdDelete
	CmdCount
	CmdAggregate
)

func (k CommandKind) String() string {
	switch k {
	case CmdFind:
		return "find"
	case CmdInsert:
		return "insert"
	case CmdUpdate:
		return "update"
	case CmdDelete:
		return "delete"
	case CmdCount:
		return "count"
	case CmdAggregate:
		return "aggregate"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is a compiled statement ready to be handed to a driver.
type Command struct {
	Kind       CommandKind
	Collection string

	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64

	Documents []bson.M
	Update    bson.D
	Upsert    bool
	Multi     bool

	Pipeline bson.A
}

// Doc renders the database command, eg. {find: "users", filter: {...}}.
func (cmd *Command) Doc() bson.D {
	switch cmd.Kind {
	case CmdFind:
		d := bson.D{
			{Key: "find", Value: cmd.Collection},
			{Key: "filter", Value: orEmpty(cmd.Filter)},
		}
		if len(cmd.Projection) != 0 {
			d = append(d, bson.E{Key: "projection", Value: cmd.Projection})
		}
		if len(cmd.Sort) != 0 {
			d = append(d, bson.E{Key: "sort", Value: cmd.Sort})
		}
		return appendPaging(d, cmd.Skip, cmd.Limit)

	case CmdCount:
		d := bson.D{
			{Key: "count", Value: cmd.Collection},
			{Key: "query", Value: orEmpty(cmd.Filter)},
		}
		return appendPaging(d, cmd.Skip, cmd.Limit)

	case CmdInsert:
		docs := make(bson.A, len(cmd.Documents))
		for i, doc := range cmd.Documents {
			docs[i] = doc
		}
		return bson.D{
			{Key: "insert", Value: cmd.Collection},
			{Key: "documents", Value: docs},
		}

	case CmdUpdate:
		return bson.D{
			{Key: "update", Value: cmd.Collection},
			{Key: "updates", Value: bson.A{bson.D{
				{Key: "q", Value: orEmpty(cmd.Filter)},
				{Key: "u", Value: cmd.Update},
				{Key: "upsert", Value: cmd.Upsert},
				{Key: "multi", Value: cmd.Multi},
			}}},
		}

	case CmdDelete:
		limit := int32(1)
		if cmd.Multi {
			limit = 0
		}
		return bson.D{
			{Key: "delete", Value: cmd.Collection},
			{Key: "deletes", Value: bson.A{bson.D{
				{Key: "q", Value: orEmpty(cmd.Filter)},
				{Key: "limit", Value: limit},
			}}},
		}

	case CmdAggregate:
		return bson.D{
			{Key: "aggregate", Value: cmd.Collection},
			{Key: "pipeline", Value: orEmptyA(cmd.Pipeline)},
			{Key: "cursor", Value: bson.D{}},
		}
	}
	return nil
}

func appendPaging(d bson.D, skip, limit int64) bson.D {
	if skip > 0 {
		d = append(d, bson.E{Key: "skip", Value: skip})
	}
	if limit > 0 {
		d = append(d, bson.E{Key: "limit", Value: limit})
	}
	return d
}

func orEmpty(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}

func orEmptyA(a bson.A) bson.A {
	if a == nil {
		return bson.A{}
	}
	return a
}

// Compile compiles a statement into a command for its collection.
func (co *Compiler) Compile(res sdata.Resolver, st *qcode.Statement) (*Command, error) {
	if st.Collection == "" {
		return nil, ErrEmptyCollection
	}
	if st.Skip < 0 || st.Limit < 0 {
		return nil, fmt.Errorf("dialect: %s: negative skip or limit", st.Collection)
	}
	c := co.with(res)
	cmd := &Command{Collection: st.Collection}

	var err error
	switch st.Type {
	case qcode.QTSelect:
		cmd.Kind = CmdFind
		if cmd.Filter, err = c.filter(st.Where); err != nil {
			return nil, err
		}
		if cmd.Projection, err = c.projection(st.Fields, false); err != nil {
			return nil, err
		}
		cmd.Sort = c.sort(st.OrderBy)
		cmd.Skip, cmd.Limit = st.Skip, st.Limit

	case qcode.QTCount:
		cmd.Kind = CmdCount
		if cmd.Filter, err = c.filter(st.Where); err != nil {
			return nil, err
		}
		cmd.Skip, cmd.Limit = st.Skip, st.Limit

	case qcode.QTDelete:
		cmd.Kind = CmdDelete
		if cmd.Filter, err = c.filter(st.Where); err != nil {
			return nil, err
		}
		cmd.Multi = st.Multi

	case qcode.QTInsert:
		err = c.compileWrite(cmd, st, st.Values)

	case qcode.QTUpdate:
		if st.Replace {
			values := st.Values
			if len(values) == 0 {
				values = st.Changes
			}
			err = c.compileWrite(cmd, st, values)
			break
		}
		cmd.Kind = CmdUpdate
		if cmd.Filter, err = c.filter(st.Where); err != nil {
			return nil, err
		}
		if cmd.Update, err = c.update(st.Changes, st.Ops); err != nil {
			return nil, err
		}
		cmd.Upsert, cmd.Multi = st.Upsert, st.Multi

	default:
		return nil, fmt.Errorf("dialect: %s: unsupported statement type %s", st.Collection, st.Type)
	}

	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// compileWrite compiles an insert, or a replace keyed by identifier when
// the statement asks for one and the values carry an identifier.
func (c *compilerContext) compileWrite(cmd *Command, st *qcode.Statement, values map[string]any) error {
	if st.Replace {
		filter, update, ok, err := c.replace(values)
		if err != nil {
			return err
		}
		if ok {
			cmd.Kind = CmdUpdate
			cmd.Filter, cmd.Update = filter, update
			cmd.Upsert, cmd.Multi = true, false
			return nil
		}
	}

	doc, err := c.insert(values)
	if err != nil {
		return err
	}
	cmd.Kind = CmdInsert
	cmd.Documents = []bson.M{doc}
	return nil
}

// CompileAggregate compiles stages into an aggregate command.
func (co *Compiler) CompileAggregate(res sdata.Resolver, collection string, stages []qcode.Stage) (*Command, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	p, err := co.CompilePipeline(res, stages)
	if err != nil {
		return nil, err
	}
	return &Command{Kind: CmdAggregate, Collection: collection, Pipeline: p}, nil
}
