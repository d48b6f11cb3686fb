package qcode

import (
	"strconv"
	"strings"
)

type ExpOp int8

const (
	OpNop ExpOp = iota
	OpEquals
	OpNotEquals
	OpLesserThan
	OpLesserOrEquals
	OpGreaterThan
	OpGreaterOrEquals
	OpRegex
	OpLike
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpElemMatch
	OpOther
)

var opNames = [...]string{
	OpNop:             "OpNop",
	OpEquals:          "OpEquals",
	OpNotEquals:       "OpNotEquals",
	OpLesserThan:      "OpLesserThan",
	OpLesserOrEquals:  "OpLesserOrEquals",
	OpGreaterThan:     "OpGreaterThan",
	OpGreaterOrEquals: "OpGreaterOrEquals",
	OpRegex:           "OpRegex",
	OpLike:            "OpLike",
	OpIn:              "OpIn",
	OpNotIn:           "OpNotIn",
	OpBetween:         "OpBetween",
	OpNotBetween:      "OpNotBetween",
	OpElemMatch:       "OpElemMatch",
	OpOther:           "OpOther",
}

func (op ExpOp) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "ExpOp(" + strconv.Itoa(int(op)) + ")"
	}
	return opNames[op]
}

var symbols = map[string]ExpOp{
	"=":           OpEquals,
	":eq":         OpEquals,
	"<>":          OpNotEquals,
	"!=":          OpNotEquals,
	":not":        OpNotEquals,
	":ne":         OpNotEquals,
	"<":           OpLesserThan,
	":lt":         OpLesserThan,
	"<=":          OpLesserOrEquals,
	":lte":        OpLesserOrEquals,
	">":           OpGreaterThan,
	":gt":         OpGreaterThan,
	">=":          OpGreaterOrEquals,
	":gte":        OpGreaterOrEquals,
	"~=":          OpRegex,
	"=~":          OpRegex,
	":regex":      OpRegex,
	"like":        OpLike,
	":like":       OpLike,
	"in":          OpIn,
	":in":         OpIn,
	"notin":       OpNotIn,
	"!in":         OpNotIn,
	":notin":      OpNotIn,
	"between":     OpBetween,
	":between":    OpBetween,
	"!between":    OpNotBetween,
	":notbetween": OpNotBetween,
	"$elemMatch":  OpElemMatch,
}

// ParseOp maps a symbolic operator to its ExpOp. Unknown operators map to
// OpOther and are passed to the database as is.
func ParseOp(sym string) ExpOp {
	if sym == "" {
		return OpEquals
	}
	if op, ok := symbols[sym]; ok {
		return op
	}
	if op, ok := symbols[strings.ToLower(sym)]; ok {
		return op
	}
	return OpOther
}

// Native returns the database operator for ops that have a one-to-one mapping.
func (op ExpOp) Native() string {
	switch op {
	case OpEquals:
		return "$eq"
	case OpNotEquals:
		return "$ne"
	case OpLesserThan:
		return "$lt"
	case OpLesserOrEquals:
		return "$lte"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterOrEquals:
		return "$gte"
	case OpRegex:
		return "$regex"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$nin"
	case OpElemMatch:
		return "$elemMatch"
	}
	return ""
}

// Glue is the boolean connective joining a predicate to the one before it.
type Glue int8

const (
	GlueAnd Glue = iota
	GlueOr
)

func (g Glue) String() string {
	if g == GlueOr {
		return "or"
	}
	return "and"
}

// Predicate is a single filter condition. Raw predicates hold an already
// native document and Nested predicates hold a sub-group compiled with the
// same precedence rules.
type Predicate struct {
	Field  string
	Op     string
	Val    any
	Glue   Glue
	Raw    any
	Nested []Predicate
}

func Where(field, op string, val any) Predicate {
	return Predicate{Field: field, Op: op, Val: val}
}

func OrWhere(field, op string, val any) Predicate {
	return Predicate{Field: field, Op: op, Val: val, Glue: GlueOr}
}

// Nested returns a nested predicate group joined with glue.
func Nested(glue Glue, where ...Predicate) Predicate {
	return Predicate{Glue: glue, Nested: where}
}

// Raw returns a predicate emitted unchanged into the filter.
func Raw(glue Glue, doc any) Predicate {
	return Predicate{Glue: glue, Raw: doc}
}
