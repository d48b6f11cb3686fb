package qcode

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Converted marks a value that is already in its storage form. The compiler
// emits it without passing it through the type registry.
type Converted struct {
	Val any
}

// Rewriter is implemented by values that rewrite the predicate holding them
// before it is compiled. The returned predicate may change the field, the
// operator, the value or turn into a raw document.
type Rewriter interface {
	Rewrite(p Predicate) (Predicate, error)
}

// Exists matches documents where the field is present (or absent).
type Exists bool

func (e Exists) Rewrite(p Predicate) (Predicate, error) {
	p.Op = "$exists"
	p.Val = Converted{Val: bool(e)}
	return p, nil
}

// Size matches array fields holding exactly n elements.
type Size int

func (s Size) Rewrite(p Predicate) (Predicate, error) {
	p.Op = "$size"
	p.Val = Converted{Val: int(s)}
	return p, nil
}

// TypeIs matches fields of the given BSON type alias (eg. "string", "date").
type TypeIs string

func (t TypeIs) Rewrite(p Predicate) (Predicate, error) {
	p.Op = "$type"
	p.Val = Converted{Val: string(t)}
	return p, nil
}

// Pattern matches a field against a regular expression with options.
type Pattern struct {
	Regex   string
	Options string
}

func (r Pattern) Rewrite(p Predicate) (Predicate, error) {
	p.Op = "="
	p.Val = Converted{Val: bson.Regex{Pattern: r.Regex, Options: r.Options}}
	return p, nil
}

// Text runs a full text search. The field of the predicate is ignored since
// the search uses the text index of the collection.
type Text struct {
	Search   string
	Language string
}

func (t Text) Rewrite(p Predicate) (Predicate, error) {
	search := bson.D{{Key: "$search", Value: t.Search}}
	if t.Language != "" {
		search = append(search, bson.E{Key: "$language", Value: t.Language})
	}
	return Predicate{
		Glue: p.Glue,
		Raw:  bson.D{{Key: "$text", Value: search}},
	}, nil
}

// Not negates an operator expression on the field using $not. The value is
// emitted as given.
type Not struct {
	Op  string
	Val any
}

func (n Not) Rewrite(p Predicate) (Predicate, error) {
	op := ParseOp(n.Op)
	name := op.Native()
	if op == OpOther {
		name = n.Op
	}
	if name == "" {
		return p, fmt.Errorf("qcode: operator %q cannot be negated", n.Op)
	}
	p.Op = "$not"
	p.Val = Converted{Val: bson.D{{Key: name, Value: n.Val}}}
	return p, nil
}
