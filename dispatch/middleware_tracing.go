package dispatch

import (
	"context"
	"encoding/json"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewTracingLayer emits a structured span per inbound request (method, id
// attributes) and logs failures at warn level (spec.md §4.9). It is
// strictly observational and never changes an outcome. otel is pulled in as
// the domain stack's tracing backend; grounded on the widespread use of
// go.opentelemetry.io/otel across the pack's rpc/lsp/mcp servers
// (SPEC_FULL.md §4).
func NewTracingLayer(logger zerolog.Logger) Layer {
	tracer := otel.Tracer("github.com/corvid-labs/lsprpc/dispatch")
	return func(inner LspService) LspService {
		return &tracingService{inner: inner, tracer: tracer, logger: logger}
	}
}

type tracingService struct {
	inner  LspService
	tracer trace.Tracer
	logger zerolog.Logger
}

func (s *tracingService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	ctx, span := s.tracer.Start(ctx, req.Method, trace.WithAttributes(
		attribute.String("rpc.method", req.Method),
		attribute.String("rpc.id", req.ID.String()),
	))
	defer span.End()

	result, respErr := s.inner.Call(ctx, req)
	if respErr != nil {
		span.SetStatus(codes.Error, respErr.Message)
		s.logger.Warn().
			Str("method", req.Method).
			Str("id", req.ID.String()).
			Int("code", respErr.Code).
			Msg("lsprpc: request failed")
	}
	return result, respErr
}

func (s *tracingService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	return s.inner.Notify(ctx, n)
}

func (s *tracingService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	return s.inner.Emit(ctx, ev)
}
