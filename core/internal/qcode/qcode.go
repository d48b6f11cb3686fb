// Package qcode holds the portable query model: predicates, selected fields,
// sort orders, update operators, statements and aggregation stages. Nothing in
// here knows how the database spells any of it.
package qcode

type QType int8

const (
	QTUnknown QType = iota
	QTSelect
	QTInsert
	QTUpdate
	QTDelete
	QTCount
)

func (qt QType) String() string {
	switch qt {
	case QTSelect:
		return "select"
	case QTInsert:
		return "insert"
	case QTUpdate:
		return "update"
	case QTDelete:
		return "delete"
	case QTCount:
		return "count"
	}
	return "unknown"
}

// ParseQType returns the statement type for its name.
func ParseQType(s string) QType {
	switch s {
	case "select", "find":
		return QTSelect
	case "insert":
		return QTInsert
	case "update":
		return QTUpdate
	case "delete":
		return QTDelete
	case "count":
		return QTCount
	}
	return QTUnknown
}

// Field is one entry of a projection. A field with only a Name is a plain
// inclusion. An Alias renames the field or names the result of Expr.
type Field struct {
	Name  string
	Alias string
	Expr  any
}

// AllFields selects every field of the document.
const AllFields = "*"

type Order int8

const (
	OrderAsc Order = iota
	OrderDesc
)

// Direction returns the numeric sort direction used by the database.
func (o Order) Direction() int {
	if o == OrderDesc {
		return -1
	}
	return 1
}

func (o Order) String() string {
	if o == OrderDesc {
		return "desc"
	}
	return "asc"
}

type OrderBy struct {
	Field string
	Order Order
}

// UpdateOp is an explicit update operator applied to a field, eg. $inc or $push.
type UpdateOp struct {
	Op    string
	Field string
	Val   any
}

// Statement is a single portable read or write against one collection.
type Statement struct {
	Type       QType
	Collection string
	Where      []Predicate
	Fields     []Field
	OrderBy    []OrderBy
	Skip       int64
	Limit      int64

	// Values is the document for inserts.
	Values map[string]any

	// Changes are the fields set by updates and Ops the explicit operators.
	Changes map[string]any
	Ops     []UpdateOp

	Upsert  bool
	Multi   bool
	Replace bool
}
