package dispatch

import (
	"context"
	"encoding/json"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"golang.org/x/sync/semaphore"
)

// NewConcurrencyLayer bounds the number of inbound requests in flight at
// once (spec.md §4.7; default capacity suggested by spec.md §3 is 4).
// Notifications and events bypass the semaphore entirely so they never
// block the dispatcher. Grounded on
// other_examples/8fad189d_appilon-jrpc2__server.go.go, which bounds
// concurrent RPC execution with the same semaphore.Weighted.
func NewConcurrencyLayer(capacity int64) Layer {
	if capacity <= 0 {
		capacity = 4
	}
	sem := semaphore.NewWeighted(capacity)
	return func(inner LspService) LspService {
		return &concurrencyService{inner: inner, sem: sem}
	}
}

type concurrencyService struct {
	inner LspService
	sem   *semaphore.Weighted
}

func (s *concurrencyService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, jsonrpc2.NewError(jsonrpc2.CodeRequestCancelled, "request cancelled while waiting for a concurrency permit")
	}
	defer s.sem.Release(1)
	return s.inner.Call(ctx, req)
}

func (s *concurrencyService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	return s.inner.Notify(ctx, n)
}

func (s *concurrencyService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	return s.inner.Emit(ctx, ev)
}
