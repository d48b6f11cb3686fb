// Package core compiles portable queries, writes and aggregations into
// MongoDB commands and runs them through a Driver.
//
//	co, err := core.NewCompiler(conf, core.OptionSetLogger(log))
//	cmd, err := co.Compile(core.From("users").Where("age", ">", 18).Select("name"))
//	res, err := co.Execute(ctx, drv, cmd)
package core

import (
	"fmt"

	"github.com/dosco/bsonq/core/internal/conv"
	"github.com/dosco/bsonq/core/internal/dialect"
	"github.com/dosco/bsonq/core/internal/sdata"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Type converts values of a named type between their application and
// storage form.
type (
	Type      = conv.Type
	TypeFuncs = conv.TypeFuncs
)

// Compiler is immutable once created and safe for concurrent use. The
// BulkWriters it creates are not.
type Compiler struct {
	conf   *Config
	schema *sdata.Schema
	types  *conv.Registry
	dc     *dialect.Compiler
	log    *zap.Logger
	idgens map[string]IDGenerator
	trace  Tracer
}

type Option func(*Compiler) error

// OptionSetLogger sets the logger used by the compiler, bulk writers and
// index sync. Defaults to a no-op logger.
func OptionSetLogger(log *zap.Logger) Option {
	return func(co *Compiler) error {
		if log == nil {
			return fmt.Errorf("core: logger is nil")
		}
		co.log = log
		return nil
	}
}

// OptionRegisterType adds a named value type that columns can declare.
func OptionRegisterType(name string, t Type) Option {
	return func(co *Compiler) error {
		if name == "" {
			return fmt.Errorf("core: type name is empty")
		}
		co.types.Register(name, t)
		return nil
	}
}

// OptionSetIDGenerator adds or replaces a named identifier generator.
func OptionSetIDGenerator(name string, gen IDGenerator) Option {
	return func(co *Compiler) error {
		if gen == nil {
			return fmt.Errorf("core: id generator %s is nil", name)
		}
		co.idgens[name] = gen
		return nil
	}
}

// NewCompiler validates the config and creates a compiler.
func NewCompiler(conf *Config, options ...Option) (*Compiler, error) {
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	co := &Compiler{
		conf:   conf,
		types:  conv.NewRegistry(),
		log:    zap.NewNop(),
		idgens: builtinIDGenerators(),
		trace:  &tracer{},
	}
	for _, op := range options {
		if err := op(co); err != nil {
			return nil, err
		}
	}
	if co.trace == nil {
		co.trace = &tracer{}
	}

	// checked after the options since they can add types and generators
	if conf.IDGenerator != "" {
		if _, ok := co.idgens[conf.IDGenerator]; !ok {
			return nil, fmt.Errorf("core: unknown id generator %q", conf.IDGenerator)
		}
	}
	for _, c := range conf.Collections {
		for _, col := range c.Columns {
			if col.Type != "" && !co.types.Has(col.Type) {
				return nil, fmt.Errorf("core: collection %s: column %s: unknown type %q",
					c.Name, col.Name, col.Type)
			}
		}
		if c.IDGenerator != "" {
			if _, ok := co.idgens[c.IDGenerator]; !ok {
				return nil, fmt.Errorf("core: collection %s: unknown id generator %q",
					c.Name, c.IDGenerator)
			}
		}
	}

	schema, err := conf.schema()
	if err != nil {
		return nil, err
	}
	co.schema = schema
	co.dc = dialect.NewCompiler(co.types)

	co.log.Debug("compiler ready", zap.Int("collections", len(conf.Collections)))
	return co, nil
}

func (co *Compiler) resolver(collection string) sdata.Resolver {
	return co.schema.Resolver(collection)
}

// Compile compiles a statement built with From, Insert or Replace.
func (co *Compiler) Compile(q *Query) (*Command, error) {
	return co.CompileStatement(q.Statement())
}

// CompileStatement compiles a statement into a command.
func (co *Compiler) CompileStatement(st *Statement) (*Command, error) {
	return co.dc.Compile(co.resolver(st.Collection), st)
}

// CompileAggregate compiles a pipeline into an aggregate command.
func (co *Compiler) CompileAggregate(collection string, p *Pipeline) (*Command, error) {
	return co.dc.CompileAggregate(co.resolver(collection), collection, p.Stages())
}

// Hydrate converts a document read from the database back into application
// values, keyed by the logical field names. Fields that are not configured
// are returned unchanged.
func (co *Compiler) Hydrate(collection string, doc bson.M) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	c, ok := co.schema.Find(collection)
	if !ok {
		for k, v := range doc {
			out[k] = v
		}
		return out, nil
	}

	for k, v := range doc {
		f, ok := c.FieldByPath(k)
		if !ok {
			out[k] = v
			continue
		}
		nv, err := co.types.FromNative(f.Type, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}
	return out, nil
}

// DeclaredIndexes returns the indexes configured for a collection.
func (co *Compiler) DeclaredIndexes(collection string) IndexSet {
	if c, ok := co.schema.Find(collection); ok {
		return c.Indexes
	}
	return nil
}
