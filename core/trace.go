package core

import "context"

// Tracer starts spans around command execution, bulk flushes and index
// sync. The default tracer does nothing, see plugin/otel for OpenTelemetry.
type Tracer interface {
	Start(c context.Context, name string) (context.Context, Spaner)
}

type Spaner interface {
	SetAttributesString(attrs ...StringAttr)
	IsRecording() bool
	Error(err error)
	End()
}

type StringAttr struct {
	Name  string
	Value string
}

type tracer struct{}

func (t *tracer) Start(c context.Context, name string) (context.Context, Spaner) {
	return c, &span{}
}

type span struct{}

func (s *span) SetAttributesString(attrs ...StringAttr) {}
func (s *span) IsRecording() bool                        { return false }
func (s *span) Error(err error)                          {}
func (s *span) End()                                     {}

// OptionSetTrace sets the tracer used by the compiler and its bulk writers
func OptionSetTrace(trace Tracer) Option {
	return func(co *Compiler) error {
		co.trace = trace
		return nil
	}
}

func (co *Compiler) spanStart(c context.Context, name string) (context.Context, Spaner) {
	return co.trace.Start(c, name)
}
