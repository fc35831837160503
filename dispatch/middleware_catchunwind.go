package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"context"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
)

// ErrInternalPanic wraps a recovered panic surfaced to a notification or
// event handler's caller as Break(err) (spec.md §4.8, §7).
var ErrInternalPanic = errors.New("lsprpc: handler panicked")

// NewCatchUnwindLayer wraps every handler call in a panic catcher. A caught
// panic in a request handler becomes an INTERNAL_ERROR ResponseError; the
// service remains usable for subsequent calls. A panic in a notification or
// event handler becomes Break(ErrInternalPanic) (spec.md §4.8).
func NewCatchUnwindLayer() Layer {
	return func(inner LspService) LspService {
		return &catchUnwindService{inner: inner}
	}
}

type catchUnwindService struct{ inner LspService }

func (s *catchUnwindService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (result json.RawMessage, respErr *jsonrpc2.ResponseError) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			respErr = jsonrpc2.NewError(jsonrpc2.CodeInternalError, "panic: %v", r)
		}
	}()
	return s.inner.Call(ctx, req)
}

func (s *catchUnwindService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) (sig ControlSignal) {
	defer func() {
		if r := recover(); r != nil {
			sig = Break(fmt.Errorf("%w: %v", ErrInternalPanic, r))
		}
	}()
	return s.inner.Notify(ctx, n)
}

func (s *catchUnwindService) Emit(ctx context.Context, ev AnyEvent) (sig ControlSignal) {
	defer func() {
		if r := recover(); r != nil {
			sig = Break(fmt.Errorf("%w: %v", ErrInternalPanic, r))
		}
	}()
	return s.inner.Emit(ctx, ev)
}
