// Package otel exports OpenTelemetry traces for HTTP requests, GraphQL
// operations and breadcrumb resolutions by listening on the event bus.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	reqid "github.com/hanpama/crumbgraph/internal/reqid"

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

// TracerName names the tracer used for every span.
const TracerName = "crumbgraph"

// Setup exports traces over OTLP/gRPC to endpoint and subscribes the span
// builders to bus. If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
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

	unsubscribe := Register(bus, tp.Tracer(TracerName))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span builders using tracer to bus and returns a
// function removing them.
func Register(bus *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type crumbKey struct {
	rid   string
	entry string
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	gqlSpans   sync.Map // rid -> trace.Span
	crumbSpans sync.Map // crumbKey -> trace.Span
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, rid string) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("request.id", rid),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.gqlSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			if len(e.Errors) > 0 {
				span.SetStatus(codes.Error, e.Errors[0].Error())
			}
			span.End()
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.BreadcrumbStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid), "breadcrumbs.resolve")
			span.SetAttributes(
				attribute.String("content.entry.id", e.EntryID),
				attribute.String("content.locale", e.Locale),
				attribute.String("breadcrumbs.navigation", e.Navigation),
			)
			if _, loaded := s.crumbSpans.LoadOrStore(crumbKey{rid, e.EntryID}, span); loaded {
				// Same entry already in flight for this request; keep one span.
				span.End()
			}
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.NavigationMissing) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.gqlSpans.Load(rid); ok {
				v.(trace.Span).AddEvent("navigation.missing", trace.WithAttributes(
					attribute.String("breadcrumbs.navigation", e.Handle),
					attribute.String("content.locale", e.Locale),
				))
			}
		}),

		eventbus.SubscribeTo(bus, func(ctx context.Context, e events.BreadcrumbFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.crumbSpans.LoadAndDelete(crumbKey{rid, e.EntryID})
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.String("breadcrumbs.strategy", e.Strategy),
				attribute.Bool("breadcrumbs.fallback", e.Fallback),
				attribute.Int("breadcrumbs.count", e.Count),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
