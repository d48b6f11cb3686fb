// Package sdata holds what the compiler knows about collections: the mapping
// from logical field names to storage paths and types, and index descriptors.
package sdata

import (
	"fmt"
	"sort"
	"strings"
)

// Field maps a logical field name to its storage path and declared type.
type Field struct {
	Name string
	Path string
	Type string
}

// Resolver turns a logical field name into its storage path and declared
// type. Unknown names resolve to themselves with no type.
type Resolver interface {
	Resolve(name string) (path, typ string)
}

type Collection struct {
	Name    string
	Fields  []Field
	Indexes IndexSet

	byName map[string]Field
	byPath map[string]Field
}

// NewCollection indexes the fields of a collection for lookup.
func NewCollection(name string, fields []Field, indexes IndexSet) (*Collection, error) {
	c := &Collection{
		Name:    name,
		Fields:  fields,
		Indexes: indexes,
		byName:  make(map[string]Field, len(fields)),
		byPath:  make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("sdata: collection %s: field with no name", name)
		}
		if f.Path == "" {
			f.Path = f.Name
		}
		if _, ok := c.byName[f.Name]; ok {
			return nil, fmt.Errorf("sdata: collection %s: duplicate field %s", name, f.Name)
		}
		c.byName[f.Name] = f
		c.byPath[f.Path] = f
	}
	return c, nil
}

// Resolve looks up the logical name, then the storage path and finally the
// longest mapped prefix of a dotted name, eg. with address stored as addr
// "address.city" resolves to "addr.city".
func (c *Collection) Resolve(name string) (string, string) {
	if c == nil {
		return resolveDefault(name)
	}
	if f, ok := c.byName[name]; ok {
		return f.Path, f.Type
	}
	if f, ok := c.byPath[name]; ok {
		return f.Path, f.Type
	}

	for i := strings.LastIndexByte(name, '.'); i > 0; i = strings.LastIndexByte(name[:i], '.') {
		if f, ok := c.byName[name[:i]]; ok {
			return f.Path + name[i:], ""
		}
	}
	return resolveDefault(name)
}

// FieldByPath returns the field stored at path.
func (c *Collection) FieldByPath(path string) (Field, bool) {
	f, ok := c.byPath[path]
	return f, ok
}

func resolveDefault(name string) (string, string) {
	if name == "id" {
		return "_id", ""
	}
	return name, ""
}

// Schema is the set of configured collections.
type Schema struct {
	colls map[string]*Collection
}

func NewSchema(colls ...*Collection) (*Schema, error) {
	s := &Schema{colls: make(map[string]*Collection, len(colls))}
	for _, c := range colls {
		if _, ok := s.colls[c.Name]; ok {
			return nil, fmt.Errorf("sdata: duplicate collection %s", c.Name)
		}
		s.colls[c.Name] = c
	}
	return s, nil
}

// Find returns a configured collection.
func (s *Schema) Find(name string) (*Collection, bool) {
	c, ok := s.colls[name]
	return c, ok
}

// Resolver returns the resolver for a collection. Collections that are not
// configured get one that passes names through.
func (s *Schema) Resolver(name string) Resolver {
	if c, ok := s.colls[name]; ok {
		return c
	}
	return (*Collection)(nil)
}

// Collections returns the configured collections sorted by name.
func (s *Schema) Collections() []*Collection {
	out := make([]*Collection, 0, len(s.colls))
	for _, c := range s.colls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
