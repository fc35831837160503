package dispatch

import "reflect"

// AnyEvent is a type-erased internal event (spec.md §3). Events never cross
// the wire; they are injected via PeerSocket.Emit and routed by the Router
// on the runtime identity of E (spec.md §9 "event typing").
type AnyEvent struct {
	typ reflect.Type
	val any
}

// NewEvent wraps a value of type E as an AnyEvent, tagged by E's type.
func NewEvent[E any](e E) AnyEvent {
	return AnyEvent{typ: reflect.TypeOf((*E)(nil)).Elem(), val: e}
}

// Type returns the runtime type tag the Router dispatches on.
func (e AnyEvent) Type() reflect.Type { return e.typ }

// Value returns the underlying event value, type-erased as any.
func (e AnyEvent) Value() any { return e.val }
