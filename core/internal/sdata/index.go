package sdata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// PrimaryIndex is the name of the index the database creates on _id.
const PrimaryIndex = "_id_"

// IndexKey is one field of an index. Order is 1 or -1, Type is set for
// special indexes (text, hashed, 2dsphere) and takes the place of Order.
type IndexKey struct {
	Field string
	Order int
	Type  string
}

func (k IndexKey) value() any {
	if k.Type != "" {
		return k.Type
	}
	if k.Order < 0 {
		return int32(-1)
	}
	return int32(1)
}

type Index struct {
	Name    string
	Keys    []IndexKey
	Unique  bool
	Primary bool
	Options map[string]any
}

// Equal reports if both indexes have the same keys, in the same order with
// the same direction or type, and the same uniqueness. The fields of a text
// index are compared in any order. Options are not compared.
func (i Index) Equal(o Index) bool {
	if i.Unique != o.Unique || len(i.Keys) != len(o.Keys) {
		return false
	}
	a, b := sortTextKeys(i.Keys), sortTextKeys(o.Keys)
	for n := range a {
		if a[n].Field != b[n].Field || a[n].value() != b[n].value() {
			return false
		}
	}
	return true
}

// sortTextKeys returns keys with each run of text keys sorted by field.
func sortTextKeys(keys []IndexKey) []IndexKey {
	out := append([]IndexKey(nil), keys...)
	for n := 0; n < len(out); {
		if out[n].Type != textIndex {
			n++
			continue
		}
		end := n
		for end < len(out) && out[end].Type == textIndex {
			end++
		}
		sort.SliceStable(out[n:end], func(a, b int) bool {
			return out[n+a].Field < out[n+b].Field
		})
		n = end
	}
	return out
}

// KeyDoc returns the key document of the index, eg. {name: 1, age: -1}.
func (i Index) KeyDoc() bson.D {
	d := make(bson.D, 0, len(i.Keys))
	for _, k := range i.Keys {
		d = append(d, bson.E{Key: k.Field, Value: k.value()})
	}
	return d
}

// Spec returns the index specification used by createIndexes.
func (i Index) Spec() bson.D {
	d := bson.D{
		{Key: "key", Value: i.KeyDoc()},
		{Key: "name", Value: i.Name},
	}
	if i.Unique {
		d = append(d, bson.E{Key: "unique", Value: true})
	}
	keys := lo.Keys(i.Options)
	sort.Strings(keys)
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: i.Options[k]})
	}
	return d
}

// IndexName returns the name the database would give an index on keys,
// eg. "name_1_age_-1".
func IndexName(keys []IndexKey) string {
	parts := lo.Map(keys, func(k IndexKey, _ int) string {
		return fmt.Sprintf("%s_%v", k.Field, k.value())
	})
	return strings.Join(parts, "_")
}

const textIndex = "text"

var reservedIndexKeys = map[string]struct{}{
	"v": {}, "key": {}, "name": {}, "unique": {}, "ns": {}, "weights": {},
}

// ParseIndex reads an index document as returned by listIndexes. A text
// index is listed with the internal keys _fts and _ftsx and its fields under
// weights, these are read back as one text key per field.
func ParseIndex(doc bson.D) (Index, error) {
	var idx Index
	weights, err := textWeights(doc)
	if err != nil {
		return idx, err
	}
	for _, e := range doc {
		switch e.Key {
		case "name":
			idx.Name = cast.ToString(e.Value)
		case "unique":
			idx.Unique = cast.ToBool(e.Value)
		case "key":
			kd, ok := e.Value.(bson.D)
			if !ok {
				return idx, fmt.Errorf("sdata: index key: unexpected %T", e.Value)
			}
			for _, k := range kd {
				switch k.Key {
				case "_fts":
					for _, f := range weights {
						idx.Keys = append(idx.Keys, IndexKey{Field: f, Type: textIndex})
					}
					continue
				case "_ftsx":
					continue
				}
				key, err := parseIndexKey(k)
				if err != nil {
					return idx, err
				}
				idx.Keys = append(idx.Keys, key)
			}
		default:
			if _, ok := reservedIndexKeys[e.Key]; ok {
				continue
			}
			if idx.Options == nil {
				idx.Options = make(map[string]any)
			}
			idx.Options[e.Key] = e.Value
		}
	}
	if len(idx.Keys) == 0 {
		return idx, fmt.Errorf("sdata: index %s has no keys", idx.Name)
	}
	if idx.Name == "" {
		idx.Name = IndexName(idx.Keys)
	}
	idx.Primary = idx.Name == PrimaryIndex
	return idx, nil
}

// textWeights returns the sorted field names of the weights document.
func textWeights(doc bson.D) ([]string, error) {
	for _, e := range doc {
		if e.Key != "weights" {
			continue
		}
		var fields []string
		switch w := e.Value.(type) {
		case bson.D:
			for _, f := range w {
				fields = append(fields, f.Key)
			}
		case bson.M:
			fields = lo.Keys(w)
		case map[string]any:
			fields = lo.Keys(w)
		default:
			return nil, fmt.Errorf("sdata: index weights: unexpected %T", e.Value)
		}
		sort.Strings(fields)
		return fields, nil
	}
	return nil, nil
}

func parseIndexKey(e bson.E) (IndexKey, error) {
	if s, ok := e.Value.(string); ok {
		return IndexKey{Field: e.Key, Type: s}, nil
	}
	n, err := cast.ToIntE(e.Value)
	if err != nil {
		return IndexKey{}, fmt.Errorf("sdata: index key %s: %w", e.Key, err)
	}
	if n < 0 {
		return IndexKey{Field: e.Key, Order: -1}, nil
	}
	return IndexKey{Field: e.Key, Order: 1}, nil
}

// IndexSet is an ordered set of indexes keyed by name.
type IndexSet []Index

func (s IndexSet) Get(name string) (Index, bool) {
	return lo.Find(s, func(i Index) bool { return i.Name == name })
}

func (s IndexSet) Names() []string {
	return lo.Map(s, func(i Index, _ int) string { return i.Name })
}
