package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
)

type requestHandler func(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError)
type notificationHandler func(ctx context.Context, params json.RawMessage) ControlSignal
type eventHandler func(ctx context.Context, ev AnyEvent) ControlSignal

// unhandledRequestHandler and unhandledNotificationHandler carry the
// unmatched method name through to the fallback, unlike the per-method
// handler types above (which already know their own method statically).
type unhandledRequestHandler func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError)
type unhandledNotificationHandler func(ctx context.Context, method string, params json.RawMessage) ControlSignal

// Router is the method-name and event-type multiplexer (spec.md §3, §4.5).
// It owns the user-supplied State and passes it to every handler. Access to
// State is not synchronized: the Frontend runs each request handler on its
// own goroutine, so request handlers may run concurrently with each other and
// with the notification and event handlers on the dispatch loop.
type Router[S any] struct {
	state *S

	mu            sync.RWMutex
	requests      map[string]requestHandler
	notifications map[string]notificationHandler
	events        map[reflect.Type]eventHandler

	unhandledRequest      unhandledRequestHandler
	unhandledNotification unhandledNotificationHandler
	unhandledEvent        eventHandler
}

// NewRouter constructs an empty Router around the given state, with the
// default fallback behaviors described in spec.md §4.5.
func NewRouter[S any](state *S) *Router[S] {
	rt := &Router[S]{
		state:         state,
		requests:      make(map[string]requestHandler),
		notifications: make(map[string]notificationHandler),
		events:        make(map[reflect.Type]eventHandler),
	}
	rt.unhandledRequest = func(ctx context.Context, method string, _ json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError) {
		return nil, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "method not found: %s", method)
	}
	rt.unhandledNotification = func(ctx context.Context, method string, _ json.RawMessage) ControlSignal {
		return Break(jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "unknown notification method: %s", method))
	}
	rt.unhandledEvent = func(ctx context.Context, _ AnyEvent) ControlSignal {
		return Continue()
	}
	return rt
}

// Request registers a handler for an inbound request method. The handler
// receives the Router's state and the method's deserialized params, and
// returns a result (serialized back to JSON) or an error (spec.md §4.5).
func Request[S, P, R any](rt *Router[S], method string, h func(ctx context.Context, state *S, params P) (R, error)) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.requests[method] = func(ctx context.Context, raw json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError) {
		var params P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, "invalid params for %s: %v", method, err)
			}
		}

		result, err := h(ctx, rt.state, params)
		if err != nil {
			var respErr *jsonrpc2.ResponseError
			if errors.As(err, &respErr) {
				return nil, respErr
			}
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInternalError, "%v", err)
		}

		out, merr := json.Marshal(result)
		if merr != nil {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeInternalError, "marshaling result for %s: %v", method, merr)
		}
		return out, nil
	}
	return rt
}

// Notification registers a handler for an inbound notification method
// (spec.md §4.5).
func Notification[S, P any](rt *Router[S], method string, h func(ctx context.Context, state *S, params P) ControlSignal) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.notifications[method] = func(ctx context.Context, raw json.RawMessage) ControlSignal {
		var params P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return Break(jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, "invalid params for %s: %v", method, err))
			}
		}
		return h(ctx, rt.state, params)
	}
	return rt
}

// Event registers a handler for internal events of type E (spec.md §4.5).
func Event[S, E any](rt *Router[S], h func(ctx context.Context, state *S, ev E) ControlSignal) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	typ := reflect.TypeOf((*E)(nil)).Elem()
	rt.events[typ] = func(ctx context.Context, ev AnyEvent) ControlSignal {
		typed, _ := ev.Value().(E)
		return h(ctx, rt.state, typed)
	}
	return rt
}

// UnhandledRequest overrides the default METHOD_NOT_FOUND fallback.
func (rt *Router[S]) UnhandledRequest(h func(ctx context.Context, state *S, method string, params json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError)) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.unhandledRequest = func(ctx context.Context, method string, raw json.RawMessage) (json.RawMessage, *jsonrpc2.ResponseError) {
		return h(ctx, rt.state, method, raw)
	}
	return rt
}

// UnhandledNotification overrides the fallback for unregistered
// notifications. Unregistered methods starting with `$/` never reach it:
// Notify answers them with Continue before consulting the fallback.
func (rt *Router[S]) UnhandledNotification(h func(ctx context.Context, state *S, method string) ControlSignal) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.unhandledNotification = func(ctx context.Context, method string, _ json.RawMessage) ControlSignal {
		return h(ctx, rt.state, method)
	}
	return rt
}

// UnhandledEvent overrides the default Continue fallback.
func (rt *Router[S]) UnhandledEvent(h func(ctx context.Context, state *S, ev AnyEvent) ControlSignal) *Router[S] {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.unhandledEvent = func(ctx context.Context, ev AnyEvent) ControlSignal {
		return h(ctx, rt.state, ev)
	}
	return rt
}

// CanHandle reports whether a request handler is registered for method.
// Grounded on original_source/src/can_handle.rs; the teacher's
// determineServerCapabilities (server/server.go) does this same
// inspect-the-handler-table trick by reaching into the map directly — this
// generalizes it into a Router method so capability advertisement (omni
// package) doesn't need access to Router internals.
func (rt *Router[S]) CanHandle(method string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.requests[method]
	return ok
}

// CanHandleNotification reports whether a notification handler is
// registered for method.
func (rt *Router[S]) CanHandleNotification(method string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.notifications[method]
	return ok
}

// Call implements Service (spec.md §4.5 dispatch rules).
func (rt *Router[S]) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	rt.mu.RLock()
	h, ok := rt.requests[req.Method]
	fallback := rt.unhandledRequest
	rt.mu.RUnlock()

	if !ok {
		return fallback(ctx, req.Method, req.Params)
	}
	return h(ctx, req.Params)
}

// Notify implements LspService (spec.md §4.5 dispatch rules, including the
// `$/` fallback default).
func (rt *Router[S]) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	rt.mu.RLock()
	h, ok := rt.notifications[n.Method]
	rt.mu.RUnlock()

	if ok {
		return h(ctx, n.Params)
	}

	if strings.HasPrefix(n.Method, "$/") {
		return Continue()
	}

	rt.mu.RLock()
	fallback := rt.unhandledNotification
	rt.mu.RUnlock()
	return fallback(ctx, n.Method, n.Params)
}

// Emit implements LspService (spec.md §4.5 dispatch rules).
func (rt *Router[S]) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	rt.mu.RLock()
	h, ok := rt.events[ev.Type()]
	fallback := rt.unhandledEvent
	rt.mu.RUnlock()

	if !ok {
		return fallback(ctx, ev)
	}
	return h(ctx, ev)
}
