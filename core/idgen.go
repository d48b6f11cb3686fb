package core

import (
	"github.com/rs/xid"
	"github.com/segmentio/ksuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDGenerator returns a new document identifier.
type IDGenerator func() any

const defaultIDGenerator = "objectid"

func builtinIDGenerators() map[string]IDGenerator {
	return map[string]IDGenerator{
		"objectid": func() any { return bson.NewObjectID() },
		"xid":      func() any { return xid.New().String() },
		"ksuid":    func() any { return ksuid.New().String() },
	}
}

// idGenerator returns the generator for a collection, falling back to the
// configured default.
func (co *Compiler) idGenerator(collection string) IDGenerator {
	name := co.conf.IDGenerator
	if c := co.collectionConfig(collection); c != nil && c.IDGenerator != "" {
		name = c.IDGenerator
	}
	if name == "" {
		name = defaultIDGenerator
	}
	return co.idgens[name]
}

func (co *Compiler) collectionConfig(name string) *Collection {
	for i := range co.conf.Collections {
		if co.conf.Collections[i].Name == name {
			return &co.conf.Collections[i]
		}
	}
	return nil
}
