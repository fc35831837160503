package dispatch

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/corvid-labs/lsprpc/protocol"
)

// LifecycleState is one of the four LSP lifecycle states (spec.md §3, §4.6).
type LifecycleState int32

const (
	StateUninitialized LifecycleState = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

func (s LifecycleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// LifecycleHandle observes the Lifecycle middleware's current state from
// outside the dispatch loop (e.g. from tests, or a health endpoint).
type LifecycleHandle struct {
	state *atomic.Int32
}

func (h *LifecycleHandle) Load() LifecycleState { return LifecycleState(h.state.Load()) }

// NewLifecycleLayer builds the Lifecycle middleware and a handle to observe
// its state, enforcing the state machine in spec.md §4.6 exactly:
//
//	| current \ input  | initialize req | initialized notif | shutdown req | exit notif | other req | other notif |
//	|-------------------|-----------------|--------------------|--------------|------------|-----------|-------------|
//	| Uninitialized     | forward→Initializing | protocol error | SERVER_NOT_INITIALIZED | Break(Ok) | SERVER_NOT_INITIALIZED | ignore |
//	| Initializing      | INVALID_REQUEST | →Ready; Continue   | SERVER_NOT_INITIALIZED | Break(Ok) | SERVER_NOT_INITIALIZED | ignore |
//	| Ready             | INVALID_REQUEST | protocol error     | forward→ShuttingDown   | Break(Ok) | forward   | forward     |
//	| ShuttingDown      | INVALID_REQUEST | protocol error     | INVALID_REQUEST        | Break(Ok) | INVALID_REQUEST | forward |
func NewLifecycleLayer() (Layer, *LifecycleHandle) {
	state := &atomic.Int32{}
	handle := &LifecycleHandle{state: state}
	layer := func(inner LspService) LspService {
		return &lifecycleService{inner: inner, state: state}
	}
	return layer, handle
}

type lifecycleService struct {
	inner LspService
	state *atomic.Int32
}

func (s *lifecycleService) current() LifecycleState { return LifecycleState(s.state.Load()) }

func (s *lifecycleService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	switch req.Method {
	case protocol.MethodInitialize:
		if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "server already initialized or shutting down")
		}
		return s.inner.Call(ctx, req)

	case protocol.MethodShutdown:
		switch s.current() {
		case StateUninitialized, StateInitializing:
			return nil, jsonrpc2.NewError(jsonrpc2.CodeServerNotInitialized, "server not initialized")
		case StateShuttingDown:
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "server is already shutting down")
		default: // Ready
			result, respErr := s.inner.Call(ctx, req)
			s.state.Store(int32(StateShuttingDown))
			return result, respErr
		}

	default:
		switch s.current() {
		case StateUninitialized, StateInitializing:
			return nil, jsonrpc2.NewError(jsonrpc2.CodeServerNotInitialized, "server not initialized")
		case StateShuttingDown:
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "server is shutting down")
		default: // Ready
			return s.inner.Call(ctx, req)
		}
	}
}

func (s *lifecycleService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	if n.Method == protocol.MethodExit {
		return Break(nil)
	}

	if n.Method == protocol.MethodInitialized {
		if s.state.CompareAndSwap(int32(StateInitializing), int32(StateReady)) {
			return Continue()
		}
		return Break(jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "unexpected initialized notification in state %s", s.current()))
	}

	switch s.current() {
	case StateUninitialized, StateInitializing:
		return Continue() // ignored until ready, per spec.md §4.6
	default:
		return s.inner.Notify(ctx, n)
	}
}

func (s *lifecycleService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	return s.inner.Emit(ctx, ev)
}
