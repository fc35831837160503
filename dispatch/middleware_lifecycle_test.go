package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/corvid-labs/lsprpc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwardingService struct {
	calls    int
	notifies int
}

func (s *forwardingService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	s.calls++
	return json.RawMessage(`{}`), nil
}

func (s *forwardingService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	s.notifies++
	return Continue()
}

func (s *forwardingService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	return Continue()
}

func newLifecycleHarness() (LspService, *LifecycleHandle, *forwardingService) {
	layer, handle := NewLifecycleLayer()
	inner := &forwardingService{}
	return layer(inner), handle, inner
}

func initializeReq() *jsonrpc2.AnyRequest {
	return &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(1), Method: protocol.MethodInitialize}
}

func shutdownReq() *jsonrpc2.AnyRequest {
	return &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(2), Method: protocol.MethodShutdown}
}

func otherReq() *jsonrpc2.AnyRequest {
	return &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(3), Method: protocol.MethodTextDocumentHover}
}

// Property 3 (spec §8): tests driving cells of the §4.6 lifecycle matrix.
// Exit is checked once for all states; not every other cell has its own test.

func TestLifecycleUninitializedInitializeForwardsAndAdvances(t *testing.T) {
	svc, handle, inner := newLifecycleHarness()
	_, respErr := svc.Call(context.Background(), initializeReq())
	require.Nil(t, respErr)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, StateInitializing, handle.Load())
}

func TestLifecycleUninitializedInitializedNotifIsProtocolError(t *testing.T) {
	svc, handle, _ := newLifecycleHarness()
	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	assert.True(t, sig.ShouldBreak())
	assert.Equal(t, StateUninitialized, handle.Load())
}

func TestLifecycleUninitializedShutdownIsServerNotInitialized(t *testing.T) {
	svc, _, _ := newLifecycleHarness()
	_, respErr := svc.Call(context.Background(), shutdownReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeServerNotInitialized, respErr.Code)
}

func TestLifecycleExitAlwaysBreaksOk(t *testing.T) {
	svc, _, _ := newLifecycleHarness()
	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodExit})
	require.True(t, sig.ShouldBreak())
	assert.NoError(t, sig.Err())
}

func TestLifecycleUninitializedOtherRequestIsServerNotInitialized(t *testing.T) {
	svc, _, inner := newLifecycleHarness()
	_, respErr := svc.Call(context.Background(), otherReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeServerNotInitialized, respErr.Code)
	assert.Equal(t, 0, inner.calls)
}

func TestLifecycleUninitializedOtherNotificationIgnored(t *testing.T) {
	svc, handle, inner := newLifecycleHarness()
	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: "textDocument/didOpen"})
	assert.False(t, sig.ShouldBreak())
	assert.Equal(t, 0, inner.notifies)
	assert.Equal(t, StateUninitialized, handle.Load())
}

func TestLifecycleInitializingSecondInitializeIsInvalidRequest(t *testing.T) {
	svc, _, _ := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_, respErr := svc.Call(context.Background(), initializeReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInvalidRequest, respErr.Code)
}

func TestLifecycleInitializingInitializedAdvancesToReady(t *testing.T) {
	svc, handle, _ := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	assert.False(t, sig.ShouldBreak())
	assert.Equal(t, StateReady, handle.Load())
}

func TestLifecycleReadyInitializeIsInvalidRequest(t *testing.T) {
	svc, _, _ := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	_, respErr := svc.Call(context.Background(), initializeReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInvalidRequest, respErr.Code)
}

func TestLifecycleReadyShutdownForwardsAndAdvances(t *testing.T) {
	svc, handle, inner := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	_, respErr := svc.Call(context.Background(), shutdownReq())
	require.Nil(t, respErr)
	assert.Equal(t, 2, inner.calls) // initialize + shutdown
	assert.Equal(t, StateShuttingDown, handle.Load())
}

func TestLifecycleReadyOtherRequestForwards(t *testing.T) {
	svc, _, inner := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	_, respErr := svc.Call(context.Background(), otherReq())
	require.Nil(t, respErr)
	assert.Equal(t, 2, inner.calls)
}

func TestLifecycleReadyOtherNotificationForwards(t *testing.T) {
	svc, _, inner := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: "textDocument/didOpen"})
	assert.False(t, sig.ShouldBreak())
	assert.Equal(t, 1, inner.notifies)
}

func TestLifecycleShuttingDownRejectsFurtherRequests(t *testing.T) {
	svc, handle, _ := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	_, _ = svc.Call(context.Background(), shutdownReq())
	require.Equal(t, StateShuttingDown, handle.Load())

	_, respErr := svc.Call(context.Background(), shutdownReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInvalidRequest, respErr.Code)

	_, respErr = svc.Call(context.Background(), otherReq())
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInvalidRequest, respErr.Code)
}

func TestLifecycleShuttingDownStillForwardsNotifications(t *testing.T) {
	svc, _, inner := newLifecycleHarness()
	_, _ = svc.Call(context.Background(), initializeReq())
	_ = svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: protocol.MethodInitialized})
	_, _ = svc.Call(context.Background(), shutdownReq())

	sig := svc.Notify(context.Background(), &jsonrpc2.AnyNotification{Method: "textDocument/didSave"})
	assert.False(t, sig.ShouldBreak())
	assert.Equal(t, 1, inner.notifies) // didSave only; "initialized" is handled internally, never forwarded
}
