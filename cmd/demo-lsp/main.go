// Command demo-lsp is a minimal language server built on
// github.com/corvid-labs/lsprpc/dispatch: it wires the standard middleware
// stack around an omni-built Router and speaks LSP over stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/corvid-labs/lsprpc/dispatch"
	"github.com/corvid-labs/lsprpc/omni"
	"github.com/corvid-labs/lsprpc/protocol"
	"github.com/rs/zerolog"
)

type documentState struct {
	contents map[protocol.DocumentURI]string
}

type demoServer struct{}

func (demoServer) Initialize(ctx context.Context, state *documentState, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			HoverProvider: &protocol.HoverOptions{},
		},
	}, nil
}

func (demoServer) DidOpenTextDocument(ctx context.Context, state *documentState, params *protocol.DidOpenTextDocumentParams) dispatch.ControlSignal {
	state.contents[params.TextDocument.URI] = params.TextDocument.Text
	return dispatch.Continue()
}

func (demoServer) DidChangeTextDocument(ctx context.Context, state *documentState, params *protocol.DidChangeTextDocumentParams) dispatch.ControlSignal {
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			state.contents[protocol.DocumentURI(params.TextDocument.URI)] = change.Text
		}
	}
	return dispatch.Continue()
}

func (demoServer) DidCloseTextDocument(ctx context.Context, state *documentState, params *protocol.DidCloseTextDocumentParams) dispatch.ControlSignal {
	delete(state.contents, params.TextDocument.URI)
	return dispatch.Continue()
}

func (demoServer) Hover(ctx context.Context, state *documentState, params *protocol.HoverParams) (*protocol.Hover, error) {
	text := state.contents[params.TextDocument.URI]
	content := protocol.MarkupContent{
		Kind: protocol.Markdown,
		Value: fmt.Sprintf("## Hover Info\n\nDocument: `%s` (%d bytes)\nPosition: Line %d, Char %d",
			params.TextDocument.URI, len(text), params.Position.Line, params.Position.Character),
	}
	hoverRange := protocol.Range{
		Start: params.Position,
		End:   protocol.Position{Line: params.Position.Line, Character: params.Position.Character + 5},
	}
	return &protocol.Hover{Contents: content, Range: &hoverRange}, nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	state := &documentState{contents: make(map[protocol.DocumentURI]string)}

	lifecycleLayer, lifecycle := dispatch.NewLifecycleLayer()

	fe, socket := dispatch.NewServer(4, func(peer *dispatch.ServerSocket) dispatch.LspService {
		rt := omni.BuildServer[documentState](state, demoServer{})
		dispatch.WithPeerExitShutdown(rt)
		return dispatch.Compose(rt,
			dispatch.NewClientProcessMonitorLayer(peer),
			dispatch.NewCatchUnwindLayer(),
			dispatch.NewTracingLayer(logger),
			dispatch.NewConcurrencyLayer(4),
			lifecycleLayer,
		)
	}, dispatch.WithLogger(logger))
	_ = socket

	logger.Info().Msg("starting demo-lsp")
	if err := fe.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Str("final_state", lifecycle.Load().String()).Msg("server stopped")
}
