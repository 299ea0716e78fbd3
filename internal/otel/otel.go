package otel

import (
	"context"
	"sync"

	"github.com/hanpama/rendergraph/internal/eventbus"
	"github.com/hanpama/rendergraph/internal/events"
	"github.com/hanpama/rendergraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches subscribers to the global
// event bus. If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	bus := eventbus.Current()
	if bus == nil {
		bus = eventbus.New()
		eventbus.Use(bus)
	}
	unsubscribe := Register(bus, tp.Tracer("rendergraph"))

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register turns request, compile and stage events published on bus into
// spans of tracer. Spans of one request are correlated through the request
// ID carried by the event context.
func Register(bus *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer       trace.Tracer
	httpSpans    sync.Map // rid -> trace.Span
	compileSpans sync.Map // rid -> trace.Span
	stageSpans   sync.Map // rid -> trace.Span
}

func requestID(ctx context.Context) int64 {
	rid, _ := reqid.FromContext(ctx)
	return rid
}

func parent(ctx context.Context, rid int64, spans ...*sync.Map) context.Context {
	for _, m := range spans {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func finish(m *sync.Map, rid int64, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	unsubscribers := []func(){
		eventbus.On(bus, func(ctx context.Context, e events.HTTPStart) {
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.Int64("rendergraph.request_id", e.RequestID),
			)
			s.httpSpans.Store(e.RequestID, span)
		}),
		eventbus.On(bus, func(ctx context.Context, e events.HTTPFinish) {
			finish(&s.httpSpans, e.RequestID, nil,
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("rendergraph.violations", e.Violations))
		}),
		eventbus.On(bus, func(ctx context.Context, e events.CompileStart) {
			rid := requestID(ctx)
			_, span := s.tracer.Start(parent(ctx, rid, &s.httpSpans), "rendergraph.compile")
			span.SetAttributes(attribute.String("rendergraph.entry", e.Entry))
			s.compileSpans.Store(rid, span)
		}),
		eventbus.On(bus, func(ctx context.Context, e events.CompileFinish) {
			finish(&s.compileSpans, requestID(ctx), e.Err,
				attribute.Int("rendergraph.commands", e.Commands),
				attribute.Int("rendergraph.submissions", e.Submissions))
		}),
		eventbus.On(bus, func(ctx context.Context, e events.StageStart) {
			rid := requestID(ctx)
			_, span := s.tracer.Start(parent(ctx, rid, &s.compileSpans, &s.httpSpans), "rendergraph.stage."+e.Stage)
			s.stageSpans.Store(rid, span)
		}),
		eventbus.On(bus, func(ctx context.Context, e events.StageFinish) {
			finish(&s.stageSpans, requestID(ctx), e.Err)
		}),
	}
	return func() {
		for _, un := range unsubscribers {
			un()
		}
	}
}
