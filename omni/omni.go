// Package omni builds Routers from typed LSP implementations instead of
// hand-registering one dispatch.Request/Notification call per method
// (spec.md §4.12 "Omni-Trait Façade").
//
// Go cannot express an interface with default method bodies the way the
// source's trait-with-defaults does, so the façade is built on Go's
// optional-interface idiom instead (the same shape as io.ReaderFrom or
// http.Flusher): each LSP method gets its own single-method interface, a
// user's implementer type satisfies whichever subset it cares about, and
// BuildServer/BuildClient type-asserts against every interface in one
// canonical table and registers a forwarding shim for each hit. Methods the
// implementer does not satisfy simply keep the Router's existing defaults
// (METHOD_NOT_FOUND for requests, the `$/`-aware fallback for
// notifications) — which already encodes the defaulting spec.md describes,
// so there is nothing extra to wire in for the unimplemented case.
//
// Grounded on server/handler.go's typedHandler: the teacher inspects a
// user-supplied function's signature and wires it into the dispatch table.
// This package replaces that per-call reflection with a canonical,
// compile-time-checked table (spec.md §9: "generate registration ... from
// one canonical list").
package omni

import (
	"context"

	"github.com/corvid-labs/lsprpc/dispatch"
	"github.com/corvid-labs/lsprpc/protocol"
)

// Initializer must be implemented; spec.md §4.12 gives `initialize` no
// default.
type Initializer[S any] interface {
	Initialize(ctx context.Context, state *S, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
}

// ShutdownHandler defaults to a nil-error Ok(()) response when unimplemented
// (spec.md §4.12). BuildServer registers this default unconditionally so
// `shutdown` always succeeds even for implementers that don't care. `exit`
// gets the same unconditional treatment (Break(nil), no interface to
// implement at all) since spec.md §4.12 gives it no implementer hook either.
type ShutdownHandler[S any] interface {
	Shutdown(ctx context.Context, state *S) error
}

// Hoverer handles textDocument/hover.
type Hoverer[S any] interface {
	Hover(ctx context.Context, state *S, params *protocol.HoverParams) (*protocol.Hover, error)
}

// Completer handles textDocument/completion.
type Completer[S any] interface {
	Completion(ctx context.Context, state *S, params *protocol.CompletionParams) (*protocol.CompletionList, error)
}

// CodeActioner handles textDocument/codeAction.
type CodeActioner[S any] interface {
	CodeAction(ctx context.Context, state *S, params *protocol.CodeActionParams) ([]protocol.CodeAction, error)
}

// DidOpenHandler handles textDocument/didOpen.
type DidOpenHandler[S any] interface {
	DidOpenTextDocument(ctx context.Context, state *S, params *protocol.DidOpenTextDocumentParams) dispatch.ControlSignal
}

// DidChangeHandler handles textDocument/didChange.
type DidChangeHandler[S any] interface {
	DidChangeTextDocument(ctx context.Context, state *S, params *protocol.DidChangeTextDocumentParams) dispatch.ControlSignal
}

// DidSaveHandler handles textDocument/didSave.
type DidSaveHandler[S any] interface {
	DidSaveTextDocument(ctx context.Context, state *S, params *protocol.DidSaveTextDocumentParams) dispatch.ControlSignal
}

// DidCloseHandler handles textDocument/didClose.
type DidCloseHandler[S any] interface {
	DidCloseTextDocument(ctx context.Context, state *S, params *protocol.DidCloseTextDocumentParams) dispatch.ControlSignal
}

// ShowMessageHandler handles window/showMessage on the client side.
type ShowMessageHandler[S any] interface {
	ShowMessage(ctx context.Context, state *S, params *protocol.ShowMessageParams) dispatch.ControlSignal
}

// PublishDiagnosticsHandler handles textDocument/publishDiagnostics on the
// client side.
type PublishDiagnosticsHandler[S any] interface {
	PublishDiagnostics(ctx context.Context, state *S, params *protocol.PublishDiagnosticsParams) dispatch.ControlSignal
}

// BuildServer constructs a Router around state, registering one forwarding
// shim per LSP server-side method the given impl satisfies (spec.md §4.12).
// impl is typically `*MyServer`, implementing whichever of the interfaces
// above it needs; the rest fall back to the Router's built-in defaults.
func BuildServer[S any](state *S, impl any) *dispatch.Router[S] {
	rt := dispatch.NewRouter(state)

	if h, ok := impl.(Initializer[S]); ok {
		dispatch.Request(rt, protocol.MethodInitialize, h.Initialize)
	}

	// shutdown defaults to Ok(()) per spec.md §4.12 even when impl doesn't
	// implement ShutdownHandler.
	if h, ok := impl.(ShutdownHandler[S]); ok {
		dispatch.Request(rt, protocol.MethodShutdown, func(ctx context.Context, s *S, _ protocol.ShutdownParams) (*struct{}, error) {
			return nil, h.Shutdown(ctx, s)
		})
	} else {
		dispatch.Request(rt, protocol.MethodShutdown, func(ctx context.Context, s *S, _ protocol.ShutdownParams) (*struct{}, error) {
			return nil, nil
		})
	}

	if h, ok := impl.(Hoverer[S]); ok {
		dispatch.Request(rt, protocol.MethodTextDocumentHover, h.Hover)
	}
	if h, ok := impl.(Completer[S]); ok {
		dispatch.Request(rt, protocol.MethodTextDocumentCompletion, h.Completion)
	}
	if h, ok := impl.(CodeActioner[S]); ok {
		dispatch.Request(rt, protocol.MethodTextDocumentCodeAction, h.CodeAction)
	}

	if h, ok := impl.(DidOpenHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodTextDocumentDidOpen, h.DidOpenTextDocument)
	}
	if h, ok := impl.(DidChangeHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodTextDocumentDidChange, h.DidChangeTextDocument)
	}
	if h, ok := impl.(DidSaveHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodTextDocumentDidSave, h.DidSaveTextDocument)
	}
	if h, ok := impl.(DidCloseHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodTextDocumentDidClose, h.DidCloseTextDocument)
	}

	// exit always breaks the dispatch loop successfully, per spec.md §4.12 —
	// registered unconditionally so this holds even when the Router isn't
	// stacked behind dispatch.NewLifecycleLayer.
	dispatch.Notification(rt, protocol.MethodExit, func(ctx context.Context, s *S, _ struct{}) dispatch.ControlSignal {
		return dispatch.Break(nil)
	})

	return rt
}

// BuildClient constructs a Router around state for the client side of the
// connection: the handful of requests/notifications a language server sends
// back (spec.md §4.12, LanguageClient side).
func BuildClient[S any](state *S, impl any) *dispatch.Router[S] {
	rt := dispatch.NewRouter(state)

	if h, ok := impl.(ShowMessageHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodWindowShowMessage, h.ShowMessage)
	}
	if h, ok := impl.(PublishDiagnosticsHandler[S]); ok {
		dispatch.Notification(rt, protocol.MethodTextDocumentPublishDiagnostics, h.PublishDiagnostics)
	}

	return rt
}
