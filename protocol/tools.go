package protocol

import (
	"context"
	"log"
)

// peerNotifier is the minimal surface tools.go needs from a dispatch peer
// socket. dispatch.PeerSocket satisfies it; it is spelled out as a local
// interface so protocol carries no import dependency on dispatch (protocol
// sits below dispatch in the module layout).
type peerNotifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// ShowNotification sends a window/showMessage notification. Errors are
// logged rather than returned: callers are typically deep inside a request
// handler with nowhere better to put them.
func ShowNotification(ctx context.Context, peer peerNotifier, msgType MessageType, message string) {
	if peer == nil {
		log.Printf("Warning: Attempted to show notification with nil peer: %s", message)
		return
	}
	params := ShowMessageParams{
		Type:    msgType,
		Message: message,
	}
	if err := peer.Notify(ctx, MethodWindowShowMessage, params); err != nil {
		log.Printf("Error sending showMessage notification: %v", err)
	}
}

// SendDiagnostics publishes the full current set of diagnostics for a
// document. LSP expects the complete set on every call, not a delta.
func SendDiagnostics(ctx context.Context, peer peerNotifier, uri DocumentURI, diagnostics []Diagnostic) {
	if peer == nil {
		log.Printf("Warning: Attempted to send diagnostics with nil peer for URI: %s", uri)
		return
	}

	params := PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}

	if err := peer.Notify(ctx, MethodTextDocumentPublishDiagnostics, params); err != nil {
		log.Printf("Error sending diagnostics notification for %s: %v", uri, err)
	}
}
