package mongodriver

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/dosco/bsonq/core"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IntrospectOptions configures column discovery.
type IntrospectOptions struct {
	SampleSize        int  `mapstructure:"sample_size"`
	IncludeValidators bool `mapstructure:"include_validators"`
}

func DefaultIntrospectOptions() IntrospectOptions {
	return IntrospectOptions{SampleSize: 100, IncludeValidators: true}
}

// fieldInfo describes a discovered top level field.
type fieldInfo struct {
	Name     string
	BSONType string
}

// Collections returns the names of the user collections in the database.
func (d *Driver) Collections(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodriver: list collections: %w", err)
	}
	names = lo.Filter(names, func(n string, _ int) bool {
		return !strings.HasPrefix(n, "system.")
	})
	sort.Strings(names)
	return names, nil
}

// Introspect suggests a column config for a collection from its JSON schema
// validator and a sample of its documents. Validator types win over sampled
// ones.
func (d *Driver) Introspect(ctx context.Context, collection string, opts IntrospectOptions) (core.Collection, error) {
	var schema map[string]fieldInfo
	if opts.IncludeValidators {
		schema = d.validatorFields(ctx, collection)
	}
	sampled, err := d.sampleFields(ctx, collection, opts.SampleSize)
	if err != nil {
		return core.Collection{}, err
	}

	fields := mergeFields(schema, sampled)
	names := lo.Keys(fields)
	sort.Strings(names)

	c := core.Collection{Name: collection}
	for _, n := range names {
		c.Columns = append(c.Columns, core.Column{Name: n, Type: columnType(fields[n].BSONType)})
	}
	return c, nil
}

func (d *Driver) validatorFields(ctx context.Context, collection string) map[string]fieldInfo {
	fields := make(map[string]fieldInfo)

	cursor, err := d.db.ListCollections(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return fields
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return fields
	}

	var info struct {
		Options struct {
			Validator struct {
				JSONSchema struct {
					Properties map[string]struct {
						BSONType any `bson:"bsonType"`
					} `bson:"properties"`
				} `bson:"$jsonSchema"`
			} `bson:"validator"`
		} `bson:"options"`
	}
	if err := cursor.Decode(&info); err != nil {
		return fields
	}

	for name, prop := range info.Options.Validator.JSONSchema.Properties {
		fields[name] = fieldInfo{Name: name, BSONType: normalizeBSONType(prop.BSONType)}
	}
	return fields
}

func (d *Driver) sampleFields(ctx context.Context, collection string, size int) (map[string]fieldInfo, error) {
	if size <= 0 {
		size = DefaultIntrospectOptions().SampleSize
	}
	pipeline := bson.A{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
	}

	cursor, err := d.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: sample %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	fields := make(map[string]fieldInfo)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		addSampled(fields, doc)
	}
	return fields, cursor.Err()
}

// addSampled records the type of every field of doc seen for the first time
// with a non null value.
func addSampled(fields map[string]fieldInfo, doc bson.M) {
	for k, v := range doc {
		if f, ok := fields[k]; ok && f.BSONType != "null" {
			continue
		}
		fields[k] = fieldInfo{Name: k, BSONType: inferBSONType(v)}
	}
}

func inferBSONType(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32:
		return "int"
	case int, int64:
		return "long"
	case float32, float64:
		return "double"
	case bson.Decimal128:
		return "decimal"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.Timestamp:
		return "timestamp"
	case bson.Binary:
		if val.Subtype == bson.TypeBinaryUUID {
			return "uuid"
		}
		return "binData"
	case bson.A, []any:
		return "array"
	case bson.M, bson.D, map[string]any:
		return "object"
	}

	rt := reflect.TypeOf(v)
	switch rt.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

// normalizeBSONType handles bsonType being a string or a list of types.
func normalizeBSONType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bson.A:
		return firstType([]any(t))
	case []any:
		return firstType(t)
	}
	return "string"
}

func firstType(types []any) string {
	for _, t := range types {
		if s, ok := t.(string); ok && s != "null" {
			return s
		}
	}
	return "string"
}

// columnType maps a BSON type name to a column type.
func columnType(bsonType string) string {
	switch bsonType {
	case "objectId":
		return "objectid"
	case "string", "int", "long", "double", "decimal", "bool", "date",
		"timestamp", "array", "object", "uuid":
		return bsonType
	case "binData":
		return "binary"
	}
	return ""
}

// mergeFields combines validator and sampled fields. Validator fields win.
func mergeFields(schema, sampled map[string]fieldInfo) map[string]fieldInfo {
	return lo.Assign(sampled, schema)
}
