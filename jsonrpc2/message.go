// Package jsonrpc2 implements the wire-level message model and
// Content-Length framing used by the Language Server Protocol: JSON-RPC 2.0
// messages delimited by an ASCII header block and a JSON body.
package jsonrpc2

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const Version = "2.0"

// RequestID is a JSON-RPC request identifier: either a string or an integer.
// The zero value is not a valid id; use NewIntID/NewStringID to construct one.
type RequestID struct {
	str    string
	num    int64
	isStr  bool
	isNull bool
}

func NewIntID(n int64) RequestID    { return RequestID{num: n} }
func NewStringID(s string) RequestID { return RequestID{str: s, isStr: true} }

// IsNull reports whether this is the JSON `null` id (never a valid outgoing
// request id, but observable when decoding a malformed peer message).
func (id RequestID) IsNull() bool { return id.isNull }

func (id RequestID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = RequestID{isNull: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RequestID{str: s, isStr: true}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("jsonrpc2: id must be a string, a number, or null: %w", err)
	}
	*id = RequestID{num: n}
	return nil
}

// Standard JSON-RPC / LSP error codes (spec.md §3).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestFailed        = -32803
	CodeRequestCancelled     = -32800
)

// ResponseError is a JSON-RPC error object. It implements error so it can be
// returned directly from request handlers and threaded through the Service
// substrate.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc2: %d %s", e.Code, e.Message)
}

func NewError(code int, format string, args ...any) *ResponseError {
	return &ResponseError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AnyRequest is an inbound or outbound JSON-RPC request (spec.md §3).
type AnyRequest struct {
	ID     RequestID
	Method string
	Params json.RawMessage
}

// AnyNotification is an inbound or outbound JSON-RPC notification.
type AnyNotification struct {
	Method string
	Params json.RawMessage
}

// AnyResponse is an inbound or outbound JSON-RPC response. Exactly one of
// Result or Err is populated.
type AnyResponse struct {
	ID     RequestID
	Result json.RawMessage
	Err    *ResponseError
}

func (r *AnyResponse) IsError() bool { return r.Err != nil }

// wireMessage is the on-the-wire envelope shared by all three message kinds;
// classification (spec.md §4.2) is done by inspecting which of id/method are
// present.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// Decode classifies and parses a single JSON message body into one of
// *AnyRequest, *AnyNotification, or *AnyResponse (spec.md §4.2).
func Decode(body []byte) (any, error) {
	var w wireMessage
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, NewError(CodeParseError, "malformed json-rpc message: %v", err)
	}

	switch {
	case w.Method != "" && w.ID != nil && !w.ID.IsNull():
		return &AnyRequest{ID: *w.ID, Method: w.Method, Params: w.Params}, nil
	case w.Method != "" && (w.ID == nil || w.ID.IsNull()):
		return &AnyNotification{Method: w.Method, Params: w.Params}, nil
	case w.ID != nil && !w.ID.IsNull():
		return &AnyResponse{ID: *w.ID, Result: w.Result, Err: w.Error}, nil
	default:
		return nil, NewError(CodeInvalidRequest, "message has neither method nor id")
	}
}

// Encode serializes one of *AnyRequest, *AnyNotification, or *AnyResponse
// back into its wire envelope.
func Encode(msg any) ([]byte, error) {
	var w wireMessage
	w.JSONRPC = Version

	switch m := msg.(type) {
	case *AnyRequest:
		w.ID = &m.ID
		w.Method = m.Method
		w.Params = m.Params
	case *AnyNotification:
		w.Method = m.Method
		w.Params = m.Params
	case *AnyResponse:
		w.ID = &m.ID
		if m.Err != nil {
			w.Error = m.Err
		} else if m.Result != nil {
			w.Result = m.Result
		} else {
			w.Result = json.RawMessage("null")
		}
	default:
		return nil, fmt.Errorf("jsonrpc2: cannot encode %T", msg)
	}

	return json.Marshal(w)
}
