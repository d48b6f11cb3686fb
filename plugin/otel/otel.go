// Package otel traces bsonq commands with OpenTelemetry.
//
//	co, err := core.NewCompiler(conf, core.OptionSetTrace(otel.NewTracer()))
package otel

import (
	"context"

	"github.com/dosco/bsonq/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dosco/bsonq"

type tracer struct {
	t trace.Tracer
}

// NewTracer returns a tracer using the global tracer provider
func NewTracer() core.Tracer {
	return NewTracerFrom(otel.GetTracerProvider())
}

func NewTracerFrom(tp trace.TracerProvider) core.Tracer {
	return &tracer{t: tp.Tracer(instrumentationName)}
}

func (t *tracer) Start(c context.Context, name string) (context.Context, core.Spaner) {
	c, s := t.t.Start(c, name, trace.WithSpanKind(trace.SpanKindClient))
	return c, &span{s}
}

type span struct {
	s trace.Span
}

func (s *span) SetAttributesString(attrs ...core.StringAttr) {
	kv := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kv[i] = attribute.String(a.Name, a.Value)
	}
	s.s.SetAttributes(kv...)
}

func (s *span) IsRecording() bool {
	return s.s.IsRecording()
}

func (s *span) Error(err error) {
	s.s.RecordError(err)
	s.s.SetStatus(codes.Error, err.Error())
}

func (s *span) End() {
	s.s.End()
}
