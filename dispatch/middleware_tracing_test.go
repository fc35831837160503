package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoService struct{}

func (echoService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	if req.Method == "fail" {
		return nil, jsonrpc2.NewError(jsonrpc2.CodeInvalidParams, "nope")
	}
	return json.RawMessage(`"ok"`), nil
}
func (echoService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal { return Continue() }
func (echoService) Emit(ctx context.Context, ev AnyEvent) ControlSignal                   { return Continue() }

func TestTracingLayerIsTransparentOnSuccess(t *testing.T) {
	svc := NewTracingLayer(zerolog.Nop())(echoService{})
	raw, respErr := svc.Call(context.Background(), &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(1), Method: "ok"})
	require.Nil(t, respErr)
	assert.Equal(t, `"ok"`, string(raw))
}

func TestTracingLayerPassesThroughFailures(t *testing.T) {
	svc := NewTracingLayer(zerolog.Nop())(echoService{})
	_, respErr := svc.Call(context.Background(), &jsonrpc2.AnyRequest{ID: jsonrpc2.NewIntID(1), Method: "fail"})
	require.NotNil(t, respErr)
	assert.Equal(t, jsonrpc2.CodeInvalidParams, respErr.Code)
}
