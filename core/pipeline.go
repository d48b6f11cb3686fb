package core

import (
	"github.com/dosco/bsonq/core/internal/qcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type (
	Stage          = qcode.Stage
	GroupBuilder   = qcode.GroupBuilder
	ProjectBuilder = qcode.ProjectBuilder
	SortBuilder    = qcode.SortBuilder
)

// NewGroup starts a $group stage keyed by id: nil groups the whole
// collection, "$field" groups by a field and a map groups by several named
// expressions.
func NewGroup(id any) *GroupBuilder {
	return qcode.NewGroup(id)
}

func NewProject() *ProjectBuilder {
	return qcode.NewProject()
}

func NewSort() *SortBuilder {
	return qcode.NewSort()
}

// Pipeline is an ordered list of aggregation stages. Stages are compiled in
// the order they are added.
type Pipeline struct {
	stages []qcode.Stage
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Match(where ...Predicate) *Pipeline {
	w := append([]qcode.Predicate(nil), where...)
	p.stages = append(p.stages, qcode.Match{Where: w})
	return p
}

func (p *Pipeline) Group(b *GroupBuilder) *Pipeline {
	p.stages = append(p.stages, b.Build())
	return p
}

func (p *Pipeline) Project(b *ProjectBuilder) *Pipeline {
	p.stages = append(p.stages, b.Build())
	return p
}

func (p *Pipeline) Sort(b *SortBuilder) *Pipeline {
	p.stages = append(p.stages, b.Build())
	return p
}

func (p *Pipeline) Skip(n int64) *Pipeline {
	p.stages = append(p.stages, qcode.Skip{N: n})
	return p
}

func (p *Pipeline) Limit(n int64) *Pipeline {
	p.stages = append(p.stages, qcode.Limit{N: n})
	return p
}

// Add appends an already built stage.
func (p *Pipeline) Add(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	return p
}

func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Export returns the uncompiled form of every stage.
func (p *Pipeline) Export() bson.A {
	out := make(bson.A, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Export()
	}
	return out
}
