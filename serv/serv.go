// Package serv wires the compiler to a database from a config file. It backs
// the bsonq command line tool.
package serv

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dosco/bsonq/core"
	"github.com/dosco/bsonq/mongodriver"
	"github.com/dosco/bsonq/plugin/otel"
	"github.com/dosco/bsonq/serv/internal/util"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var version string

// Service holds a compiler and, once connected, a driver for the
// configured database.
type Service struct {
	conf *Config
	log  *zap.Logger
	fs   afero.Fs
	co   *core.Compiler

	mu     sync.Mutex
	drv    core.Driver
	client *mongo.Client
}

type Option func(*Service) error

// OptionSetLogger replaces the logger built from the config.
func OptionSetLogger(log *zap.Logger) Option {
	return func(s *Service) error {
		s.log = log
		return nil
	}
}

// OptionSetFS sets the filesystem used to read statement and data files.
func OptionSetFS(fs afero.Fs) Option {
	return func(s *Service) error {
		s.fs = fs
		return nil
	}
}

// OptionSetDriver uses drv instead of connecting to the configured database.
func OptionSetDriver(drv core.Driver) Option {
	return func(s *Service) error {
		s.drv = drv
		return nil
	}
}

// NewService creates a service from the config. The database is not
// contacted until a command needs it.
func NewService(conf *Config, options ...Option) (*Service, error) {
	s := &Service{conf: conf}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.log == nil {
		log, err := util.NewLogger(conf.ShouldUseJSONLogs(), conf.LogLevel, os.Stderr)
		if err != nil {
			return nil, err
		}
		s.log = log
	}

	copts := []core.Option{core.OptionSetLogger(s.log)}
	if conf.EnableTracing {
		copts = append(copts, core.OptionSetTrace(otel.NewTracer()))
	}

	co, err := core.NewCompiler(&conf.Core, copts...)
	if err != nil {
		return nil, err
	}
	s.co = co

	s.log.Debug("service ready",
		zap.String("app-name", conf.AppName),
		zap.String("version", Version()),
		zap.Bool("production", conf.Production))
	return s, nil
}

// Version returns the build version, set using -ldflags
func Version() string {
	if version == "" {
		return "not-set"
	}
	return version
}

func (s *Service) Compiler() *core.Compiler {
	return s.co
}

func (s *Service) Logger() *zap.Logger {
	return s.log
}

// Driver returns the driver, connecting to the database on first use.
func (s *Service) Driver(ctx context.Context) (core.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drv != nil {
		return s.drv, nil
	}

	client, db, err := NewDB(ctx, s.conf, s.log, s.fs)
	if err != nil {
		return nil, err
	}
	s.client = client
	s.drv = mongodriver.New(db)
	return s.drv, nil
}

// Close disconnects from the database if the service connected to it.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.log.Sync() //nolint:errcheck

	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client, s.drv = nil, nil
	return err
}

// LoadStatement reads a statement file relative to the config path.
func (s *Service) LoadStatement(path string) (*core.StatementFile, error) {
	data, err := afero.ReadFile(s.fs, s.conf.AbsolutePath(path))
	if err != nil {
		return nil, err
	}
	return core.ParseStatement(data)
}

// CompileFile compiles a statement file into a command.
func (s *Service) CompileFile(path string) (*core.Command, error) {
	f, err := s.LoadStatement(path)
	if err != nil {
		return nil, err
	}
	return s.co.CompileFile(f)
}

// RunFile compiles a statement file and executes it.
func (s *Service) RunFile(ctx context.Context, path string) (*core.Result, error) {
	cmd, err := s.CompileFile(path)
	if err != nil {
		return nil, err
	}
	drv, err := s.Driver(ctx)
	if err != nil {
		return nil, err
	}
	return s.co.Execute(ctx, drv, cmd)
}

// SyncIndexes brings the database indexes in line with the config.
func (s *Service) SyncIndexes(ctx context.Context, dryRun bool) (map[string][]core.IndexOperation, error) {
	drv, err := s.Driver(ctx)
	if err != nil {
		return nil, err
	}
	return s.co.SyncIndexes(ctx, drv, core.SyncOptions{DryRun: dryRun})
}

// Introspect suggests column configs for the named collections, or for every
// collection when none are named.
func (s *Service) Introspect(ctx context.Context, names ...string) ([]core.Collection, error) {
	drv, err := s.Driver(ctx)
	if err != nil {
		return nil, err
	}
	md, ok := drv.(*mongodriver.Driver)
	if !ok {
		return nil, fmt.Errorf("introspection needs a database connection")
	}

	if len(names) == 0 {
		if names, err = md.Collections(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]core.Collection, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			c, err := md.Introspect(ctx, name, s.conf.Introspect)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Import inserts the documents of a YAML or JSON file into a collection in
// batches. Documents with an identifier replace the stored ones. Returns the
// number of documents written.
func (s *Service) Import(ctx context.Context, collection, path string) (int64, error) {
	data, err := afero.ReadFile(s.fs, s.conf.AbsolutePath(path))
	if err != nil {
		return 0, err
	}

	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}

	drv, err := s.Driver(ctx)
	if err != nil {
		return 0, err
	}

	bw := s.co.NewBulkWriter(collection, drv, core.BulkOptionSetOrdered(s.conf.Bulk.Ordered))
	batch := s.conf.Bulk.BatchSize

	var total int64
	for i, doc := range docs {
		if _, err := bw.Insert(bson.M(doc), core.InsertOptions{Replace: true}); err != nil {
			return total, fmt.Errorf("import %s: document %d: %w", path, i, err)
		}
		if batch > 0 && bw.Pending() >= batch {
			n, err := bw.Flush(ctx)
			if err != nil {
				return total, err
			}
			total += n
		}
	}

	n, err := bw.Flush(ctx)
	total += n

	s.log.Info("import done",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)),
		zap.Int64("affected", total))
	return total, err
}
