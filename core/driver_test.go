package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

// fakeDriver records every call and answers from canned values.
type fakeDriver struct {
	mu sync.Mutex

	err     error
	docs    []bson.M
	count   int64
	cmds    []*Command
	batches [][]WriteOp
	opts    []BulkOptions

	indexes map[string][]bson.D
	created []string
	dropped []string
}

func (d *fakeDriver) record(cmd *Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	return d.err
}

func (d *fakeDriver) Find(ctx context.Context, cmd *Command) ([]bson.M, error) {
	if err := d.record(cmd); err != nil {
		return nil, err
	}
	return d.docs, nil
}

func (d *fakeDriver) Aggregate(ctx context.Context, cmd *Command) ([]bson.M, error) {
	return d.Find(ctx, cmd)
}

func (d *fakeDriver) Count(ctx context.Context, cmd *Command) (int64, error) {
	if err := d.record(cmd); err != nil {
		return 0, err
	}
	return d.count, nil
}

func (d *fakeDriver) Write(ctx context.Context, cmd *Command) (WriteResult, error) {
	if err := d.record(cmd); err != nil {
		return WriteResult{}, err
	}
	switch cmd.Kind {
	case CmdInsert:
		return WriteResult{Inserted: int64(len(cmd.Documents))}, nil
	case CmdDelete:
		return WriteResult{Deleted: 1}, nil
	}
	return WriteResult{Matched: 1, Modified: 1}, nil
}

func (d *fakeDriver) BulkWrite(ctx context.Context, collection string, ops []WriteOp, opts BulkOptions) (WriteResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, ops)
	d.opts = append(d.opts, opts)
	if d.err != nil {
		return WriteResult{}, d.err
	}

	var res WriteResult
	for _, op := range ops {
		switch op.Kind {
		case WriteInsert:
			res.Inserted++
		case WriteUpdate:
			res.Matched++
			res.Modified++
		case WriteDelete:
			res.Deleted++
		}
	}
	return res, nil
}

func (d *fakeDriver) ListIndexes(ctx context.Context, collection string) ([]bson.D, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.indexes[collection], nil
}

func (d *fakeDriver) CreateIndex(ctx context.Context, collection string, idx IndexDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, collection+"."+idx.Name)
	return nil
}

func (d *fakeDriver) DropIndex(ctx context.Context, collection, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = append(d.dropped, collection+"."+name)
	return nil
}

func testConfig() *Config {
	return &Config{
		Collections: []Collection{
			{
				Name: "users",
				Columns: []Column{
					{Name: "name", Path: "full_name", Type: "string"},
					{Name: "email", Path: "contact.email", Type: "string"},
					{Name: "created", Type: "date"},
					{Name: "owner", Type: "objectid"},
				},
				Indexes: []Index{
					{Keys: []string{"email"}, Unique: true},
					{Name: "by_created", Keys: []string{"-created"}},
				},
			},
			{
				Name:        "events",
				IDGenerator: "xid",
			},
		},
	}
}

func newTestCompiler(t *testing.T, options ...Option) *Compiler {
	t.Helper()
	options = append([]Option{OptionSetLogger(zaptest.NewLogger(t))}, options...)
	co, err := NewCompiler(testConfig(), options...)
	require.NoError(t, err)
	return co
}
