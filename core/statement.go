package core

import (
	"fmt"

	"github.com/dosco/bsonq/core/internal/qcode"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// StatementFile is a statement or an aggregation written as YAML or JSON.
//
//	type: select
//	collection: users
//	where:
//	  - {field: age, op: ">", value: 18}
//	  - {field: name, op: like, value: "j%", or: true}
//	fields: [name, {alias: years, name: age}]
//	order_by: [-created_at]
//	limit: 10
type StatementFile struct {
	Type       string         `mapstructure:"type"`
	Collection string         `mapstructure:"collection"`
	Where      []fileWhere    `mapstructure:"where"`
	Fields     []any          `mapstructure:"fields"`
	OrderBy    []string       `mapstructure:"order_by"`
	Skip       int64          `mapstructure:"skip"`
	Limit      int64          `mapstructure:"limit"`
	Values     map[string]any `mapstructure:"values"`
	Changes    map[string]any `mapstructure:"changes"`
	Ops        []fileOp       `mapstructure:"ops"`
	Upsert     bool           `mapstructure:"upsert"`
	Multi      bool           `mapstructure:"multi"`
	Replace    bool           `mapstructure:"replace"`

	// Pipeline stages for type aggregate, one key per stage
	// (match, group, project, sort, skip, limit)
	Pipeline []map[string]any `mapstructure:"pipeline"`
}

type fileWhere struct {
	Field string      `mapstructure:"field"`
	Op    string      `mapstructure:"op"`
	Value any         `mapstructure:"value"`
	Or    bool        `mapstructure:"or"`
	Raw   any         `mapstructure:"raw"`
	Group []fileWhere `mapstructure:"group"`
}

type fileOp struct {
	Op    string `mapstructure:"op"`
	Field string `mapstructure:"field"`
	Value any    `mapstructure:"value"`
}

type fileField struct {
	Name  string `mapstructure:"name"`
	Alias string `mapstructure:"alias"`
	Exp   any    `mapstructure:"exp"`
}

type fileGroup struct {
	ID           any `mapstructure:"id"`
	Accumulators []struct {
		Field string `mapstructure:"field"`
		Op    string `mapstructure:"op"`
		Exp   any    `mapstructure:"exp"`
	} `mapstructure:"accumulators"`
}

// ParseStatement reads a statement file.
func ParseStatement(data []byte) (*StatementFile, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: statement: %w", err)
	}
	var f StatementFile
	if err := decode(raw, &f); err != nil {
		return nil, fmt.Errorf("core: statement: %w", err)
	}
	if f.Collection == "" {
		return nil, fmt.Errorf("core: statement: collection is required")
	}
	if f.Type == "" {
		f.Type = "select"
	}
	return &f, nil
}

func decode(input, result any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// CompileFile compiles a statement file into a command.
func (co *Compiler) CompileFile(f *StatementFile) (*Command, error) {
	if f.Type == "aggregate" {
		p, err := f.pipeline()
		if err != nil {
			return nil, err
		}
		return co.CompileAggregate(f.Collection, p)
	}

	st, err := f.statement()
	if err != nil {
		return nil, err
	}
	return co.CompileStatement(st)
}

func (f *StatementFile) statement() (*Statement, error) {
	qt := qcode.ParseQType(f.Type)
	if qt == qcode.QTUnknown {
		return nil, fmt.Errorf("core: statement: unknown type %q", f.Type)
	}

	q := &Query{st: qcode.Statement{
		Type:       qt,
		Collection: f.Collection,
		Skip:       f.Skip,
		Limit:      f.Limit,
		Values:     f.Values,
		Changes:    f.Changes,
		Upsert:     f.Upsert,
		Multi:      f.Multi,
		Replace:    f.Replace,
	}}
	q.st.Where = predicates(f.Where)
	q.OrderBy(f.OrderBy...)

	fields, err := parseFields(f.Fields)
	if err != nil {
		return nil, err
	}
	q.st.Fields = fields

	for _, o := range f.Ops {
		q.st.Ops = append(q.st.Ops, qcode.UpdateOp{Op: o.Op, Field: o.Field, Val: o.Value})
	}
	return q.Statement(), nil
}

func predicates(where []fileWhere) []qcode.Predicate {
	if len(where) == 0 {
		return nil
	}
	out := make([]qcode.Predicate, 0, len(where))
	for _, w := range where {
		glue := qcode.GlueAnd
		if w.Or {
			glue = qcode.GlueOr
		}
		switch {
		case w.Raw != nil:
			out = append(out, qcode.Raw(glue, w.Raw))
		case len(w.Group) != 0:
			out = append(out, qcode.Nested(glue, predicates(w.Group)...))
		default:
			out = append(out, qcode.Predicate{Field: w.Field, Op: w.Op, Val: w.Value, Glue: glue})
		}
	}
	return out
}

func parseFields(fields []any) ([]qcode.Field, error) {
	out := make([]qcode.Field, 0, len(fields))
	for _, v := range fields {
		if s, ok := v.(string); ok {
			out = append(out, qcode.Field{Name: s})
			continue
		}
		var ff fileField
		if err := decode(v, &ff); err != nil {
			return nil, fmt.Errorf("core: statement: field: %w", err)
		}
		out = append(out, qcode.Field{Name: ff.Name, Alias: ff.Alias, Expr: ff.Exp})
	}
	return out, nil
}

func (f *StatementFile) pipeline() (*Pipeline, error) {
	p := NewPipeline()
	for i, s := range f.Pipeline {
		if len(s) != 1 {
			return nil, fmt.Errorf("core: statement: stage %d must have exactly one key", i)
		}
		for name, v := range s {
			if err := addStage(p, name, v); err != nil {
				return nil, fmt.Errorf("core: statement: stage %d (%s): %w", i, name, err)
			}
		}
	}
	return p, nil
}

func addStage(p *Pipeline, name string, v any) error {
	switch name {
	case "match":
		var where []fileWhere
		if err := decode(v, &where); err != nil {
			return err
		}
		p.Match(predicates(where)...)

	case "group":
		var fg fileGroup
		if err := decode(v, &fg); err != nil {
			return err
		}
		g := NewGroup(fg.ID)
		for _, a := range fg.Accumulators {
			op, ok := qcode.ParseAccOp(a.Op)
			if !ok {
				return fmt.Errorf("unknown accumulator %q", a.Op)
			}
			g.Add(a.Field, op, a.Exp)
		}
		p.Group(g)

	case "project":
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected a list of fields")
		}
		fields, err := parseFields(list)
		if err != nil {
			return err
		}
		p.Add(qcode.Project{Fields: fields})

	case "sort":
		var order []string
		if err := decode(v, &order); err != nil {
			return err
		}
		q := From("").OrderBy(order...)
		p.Add(qcode.Sort{OrderBy: q.st.OrderBy})

	case "skip", "limit":
		n, err := cast.ToInt64E(v)
		if err != nil {
			return err
		}
		if name == "skip" {
			p.Skip(n)
		} else {
			p.Limit(n)
		}

	default:
		return fmt.Errorf("unknown stage")
	}
	return nil
}
