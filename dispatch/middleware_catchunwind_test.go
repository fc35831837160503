package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickyService struct{ shouldPanic bool }

func (s *panickyService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	if s.shouldPanic {
		panic("boom")
	}
	return json.RawMessage(`"ok"`), nil
}

func (s *panickyService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	if s.shouldPanic {
		panic("boom")
	}
	return Continue()
}

func (s *panickyService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	if s.shouldPanic {
		panic("boom")
	}
	return Continue()
}

// Property 5 (spec §8): panic isolation.
func TestCatchUnwindConvertsPanicToInternalError(t *testing.T) {
	inner := &panickyService{shouldPanic: true}
	svc := NewCatchUnwindLayer()(inner)

	raw, respErr := svc.Call(context.Background(), &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(1), Method: "x"})
	require.Nil(t, raw)
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInternalError, respErr.Code)
	assert.Contains(t, respErr.Message, "boom")
}

func TestCatchUnwindServiceRemainsUsableAfterPanic(t *testing.T) {
	inner := &panickyService{shouldPanic: true}
	svc := NewCatchUnwindLayer()(inner)

	_, respErr := svc.Call(context.Background(), &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(1), Method: "x"})
	require.NotNil(t, respErr)

	inner.shouldPanic = false
	raw, respErr := svc.Call(context.Background(), &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(2), Method: "x"})
	require.Nil(t, respErr)
	assert.Equal(t, `"ok"`, string(raw))
}

func TestCatchUnwindNotificationPanicBreaksWithWrappedError(t *testing.T) {
	inner := &panickyService{shouldPanic: true}
	svc := NewCatchUnwindLayer()(inner)

	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: "x"})
	require.True(t, sig.ShouldBreak())
	assert.ErrorIs(t, sig.Err(), ErrInternalPanic)
}
