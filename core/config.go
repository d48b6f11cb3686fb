package core

import (
	"fmt"
	"strings"

	"github.com/dosco/bsonq/core/internal/sdata"
	"github.com/go-playground/validator/v10"
)

// Configuration for the compiler
type Config struct {
	// Collections with their field mappings and declared indexes. Collections
	// that are not listed can still be used, their field names are then taken
	// as storage paths
	Collections []Collection `mapstructure:"collections" json:"collections" yaml:"collections" validate:"dive"`

	// Identifier generator used for new documents without an id
	// (objectid, xid, ksuid or one added with OptionSetIDGenerator).
	// Defaults to objectid
	IDGenerator string `mapstructure:"id_generator" json:"id_generator" yaml:"id_generator,omitempty"`
}

// Configuration for a collection
type Collection struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`

	// Overrides the identifier generator for this collection
	IDGenerator string `mapstructure:"id_generator" json:"id_generator" yaml:"id_generator,omitempty"`

	Columns []Column `mapstructure:"columns" json:"columns" yaml:"columns,omitempty" validate:"dive"`
	Indexes []Index  `mapstructure:"indexes" json:"indexes" yaml:"indexes,omitempty" validate:"dive"`
}

// Configuration for a document field. Path is the storage path when it
// differs from the name (eg. name: email, path: contact.email)
type Column struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Path string `mapstructure:"path" json:"path" yaml:"path,omitempty"`
	Type string `mapstructure:"type" json:"type" yaml:"type,omitempty"`
}

// Configuration for a declared index. Keys are field names, a leading minus
// sorts descending and a type suffix creates a special index
// (eg. "-created_at", "body:text")
type Index struct {
	Name    string         `mapstructure:"name" json:"name" yaml:"name,omitempty"`
	Keys    []string       `mapstructure:"keys" json:"keys" yaml:"keys" validate:"required,min=1,dive,required"`
	Unique  bool           `mapstructure:"unique" json:"unique" yaml:"unique,omitempty"`
	Options map[string]any `mapstructure:"options" json:"options" yaml:"options,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("core: invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for _, coll := range c.Collections {
		if _, ok := seen[coll.Name]; ok {
			return fmt.Errorf("core: invalid config: collection %q listed twice", coll.Name)
		}
		seen[coll.Name] = struct{}{}
	}
	return nil
}

// indexSet returns the declared indexes of a collection with their keys
// resolved to storage paths.
func (c *Collection) indexSet(res sdata.Resolver) sdata.IndexSet {
	set := make(sdata.IndexSet, 0, len(c.Indexes))
	for _, ic := range c.Indexes {
		set = append(set, ic.descriptor(res))
	}
	return set
}

func (ic Index) descriptor(res sdata.Resolver) sdata.Index {
	idx := sdata.Index{
		Name:    ic.Name,
		Unique:  ic.Unique,
		Options: ic.Options,
	}
	for _, k := range ic.Keys {
		key := sdata.IndexKey{Order: 1}
		if name, ok := strings.CutPrefix(k, "-"); ok {
			key.Order = -1
			k = name
		}
		if name, typ, ok := strings.Cut(k, ":"); ok {
			key.Type = typ
			k = name
		}
		key.Field, _ = res.Resolve(k)
		idx.Keys = append(idx.Keys, key)
	}
	if idx.Name == "" {
		idx.Name = sdata.IndexName(idx.Keys)
	}
	idx.Primary = idx.Name == sdata.PrimaryIndex
	return idx
}

func (c *Config) schema() (*sdata.Schema, error) {
	colls := make([]*sdata.Collection, 0, len(c.Collections))
	for i := range c.Collections {
		cc := &c.Collections[i]
		fields := make([]sdata.Field, len(cc.Columns))
		for j, col := range cc.Columns {
			fields[j] = sdata.Field{Name: col.Name, Path: col.Path, Type: col.Type}
		}
		coll, err := sdata.NewCollection(cc.Name, fields, nil)
		if err != nil {
			return nil, err
		}
		coll.Indexes = cc.indexSet(coll)
		colls = append(colls, coll)
	}
	return sdata.NewSchema(colls...)
}
