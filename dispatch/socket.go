package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
)

// correlationTable maps outgoing request ids to the channel their matching
// response is delivered on (spec.md §3 "Outgoing Request Table"). The id
// counter is owned here too, allocated under the same lock (spec.md §3
// "Request-ID Counter").
type correlationTable struct {
	mu      sync.Mutex
	nextID  int64
	pending map[string]chan *jsonrpc2.AnyResponse
	closed  bool
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{pending: make(map[string]chan *jsonrpc2.AnyResponse)}
}

// allocate returns a fresh request id and registers a delivery slot for it.
// Returns ok=false if the table has already been drained by shutdown.
func (t *correlationTable) allocate() (jsonrpc2.RequestID, chan *jsonrpc2.AnyResponse, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return jsonrpc2.RequestID{}, nil, false
	}
	t.nextID++
	id := jsonrpc2.NewIntID(t.nextID)
	ch := make(chan *jsonrpc2.AnyResponse, 1)
	t.pending[id.String()] = ch
	return id, ch, true
}

// complete delivers a response to its matching slot, if any. Unknown or
// duplicate ids are reported via ok=false so the caller can log and drop
// them (spec.md §4.11).
func (t *correlationTable) complete(resp *jsonrpc2.AnyResponse) (ok bool) {
	t.mu.Lock()
	ch, found := t.pending[resp.ID.String()]
	if found {
		delete(t.pending, resp.ID.String())
	}
	t.mu.Unlock()
	if !found {
		return false
	}
	ch <- resp
	return true
}

// cancel removes a slot without delivering a response (used when a caller's
// ctx is done before a response arrives, or on explicit cancellation).
func (t *correlationTable) cancel(id jsonrpc2.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id.String())
}

// drain closes the table and delivers ErrConnectionClosed-shaped responses
// (nil, signalling closed) to every still-pending slot (spec.md §4.11
// orderly shutdown step 2).
func (t *correlationTable) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

// PeerSocket is the cloneable handle user code and middleware use to send
// requests/notifications into the frontend and to inject internal events
// (spec.md §3 "PeerSocket", §4.3). ClientSocket and ServerSocket are the
// same underlying type; they differ only in the typed façade the omni
// package layers on top (spec.md §4.11).
type PeerSocket struct {
	table  *correlationTable
	outbox chan any
	events chan AnyEvent
	closed *atomic.Bool
}

type ClientSocket = PeerSocket
type ServerSocket = PeerSocket

func newPeerSocket(table *correlationTable, outbox chan any, events chan AnyEvent, closed *atomic.Bool) *PeerSocket {
	return &PeerSocket{table: table, outbox: outbox, events: events, closed: closed}
}

// Clone returns a handle sharing the same underlying frontend (spec.md §4.3:
// "cheap; shared ownership"). PeerSocket is safe for concurrent use as-is,
// so Clone simply returns a new value referencing the same channels.
func (s *PeerSocket) Clone() *PeerSocket {
	return &PeerSocket{table: s.table, outbox: s.outbox, events: s.events, closed: s.closed}
}

func (s *PeerSocket) send(ctx context.Context, msg any) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case s.outbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify hands an outbound notification to the writer (spec.md §4.3).
func (s *PeerSocket) Notify(ctx context.Context, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("lsprpc: marshaling params for %s: %w", method, err)
	}
	return s.send(ctx, &jsonrpc2.AnyNotification{Method: method, Params: raw})
}

// Emit injects an internal event into the dispatch queue (spec.md §4.3).
func (s *PeerSocket) Emit(ctx context.Context, ev AnyEvent) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request allocates a fresh id, submits an outbound request, and awaits the
// matching response (spec.md §4.3). R is the method's typed result shape.
func Request[R any](ctx context.Context, s *PeerSocket, method string, params any) (R, error) {
	var zero R

	raw, err := json.Marshal(params)
	if err != nil {
		return zero, fmt.Errorf("lsprpc: marshaling params for %s: %w", method, err)
	}

	id, ch, ok := s.table.allocate()
	if !ok {
		return zero, ErrConnectionClosed
	}

	req := &jsonrpc2.AnyRequest{ID: id, Method: method, Params: raw}
	if err := s.send(ctx, req); err != nil {
		s.table.cancel(id)
		return zero, err
	}

	select {
	case resp, open := <-ch:
		if !open || resp == nil {
			return zero, ErrConnectionClosed
		}
		if resp.Err != nil {
			return zero, resp.Err
		}
		if len(resp.Result) == 0 {
			return zero, nil
		}
		var result R
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return zero, fmt.Errorf("lsprpc: decoding result for %s: %w", method, err)
		}
		return result, nil
	case <-ctx.Done():
		s.table.cancel(id)
		return zero, ctx.Err()
	}
}
