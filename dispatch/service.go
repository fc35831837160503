// Package dispatch implements the duplex LSP message-dispatch runtime: the
// Service/Layer composition substrate, the Router multiplexer, the
// PeerSocket handle, the Frontend event loop, and the stackable middleware
// built on top of them (spec.md §4).
package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
)

// ErrConnectionClosed is the sentinel error observed by every in-flight
// PeerSocket.Request caller, and by every pending correlation-table slot,
// once the Frontend's dispatch loop has exited (spec.md §7, SPEC_FULL.md §5.3).
var ErrConnectionClosed = errors.New("lsprpc: connection closed")

// ControlSignal is the two-valued outcome a notification or event handler
// returns: Continue keeps the dispatch loop running, Break(err) terminates
// it and becomes Frontend.Run's result (nil err means a graceful exit).
type ControlSignal struct {
	brk bool
	err error
}

// Continue keeps the dispatch loop running.
func Continue() ControlSignal { return ControlSignal{} }

// Break terminates the dispatch loop with the given outcome (nil is success).
func Break(err error) ControlSignal { return ControlSignal{brk: true, err: err} }

func (c ControlSignal) ShouldBreak() bool { return c.brk }
func (c ControlSignal) Err() error        { return c.err }

// Service is the minimal request/response contract every middleware layer
// and the Router satisfy (spec.md §4.4).
type Service interface {
	Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError)
}

// LspService extends Service with notification and event delivery, per
// spec.md §4.4. Notifications and events never produce a wire response;
// they report back only whether the dispatch loop should keep running.
type LspService interface {
	Service
	Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal
	Emit(ctx context.Context, ev AnyEvent) ControlSignal
}

// Layer wraps an inner LspService in another, the composition substrate for
// middleware (spec.md §4.4). A Layer is nothing more than a function from
// one service to another.
type Layer func(inner LspService) LspService

// Compose builds the final service by applying layers outside-in: layers[0]
// is outermost and sees traffic first, inner (typically a *Router) is
// innermost (spec.md §4.4, §9 "middleware as function composition").
//
//	Compose(inner, L1, L2, L3) == L1(L2(L3(inner)))
func Compose(inner LspService, layers ...Layer) LspService {
	svc := inner
	for i := len(layers) - 1; i >= 0; i-- {
		svc = layers[i](svc)
	}
	return svc
}
