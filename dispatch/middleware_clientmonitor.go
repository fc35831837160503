package dispatch

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/corvid-labs/lsprpc/protocol"
)

// pollInterval is how often the monitored peer process is polled for
// liveness (spec.md §4.10: "every ~1s").
const pollInterval = time.Second

// PeerExited is the internal event emitted once the process watched by
// ClientProcessMonitor has terminated (spec.md §4.10). WithPeerExitShutdown
// registers the Router's default handling of it.
type PeerExited struct{ PID int }

// NewClientProcessMonitorLayer subscribes to the `initialize` request's
// processId parameter and spawns a background watcher. When the peer
// process terminates it emits a PeerExited event through socket. If
// processId is absent or zero, monitoring is disabled (spec.md §4.10).
//
// No process-liveness library appears anywhere in the retrieval pack (no
// go-ps, gopsutil, or similar), so this is built on stdlib os/syscall —
// justified per SPEC_FULL.md §4.
func NewClientProcessMonitorLayer(socket *PeerSocket) Layer {
	return func(inner LspService) LspService {
		return &clientProcessMonitorService{inner: inner, socket: socket}
	}
}

type clientProcessMonitorService struct {
	inner   LspService
	socket  *PeerSocket
	started atomic.Bool
}

func (s *clientProcessMonitorService) Call(ctx context.Context, req *jsonrpc2.AnyRequest) (json.RawMessage, *jsonrpc2.ResponseError) {
	if req.Method == protocol.MethodInitialize && s.started.CompareAndSwap(false, true) {
		var params struct {
			ProcessID *int `json:"processId"`
		}
		_ = json.Unmarshal(req.Params, &params)
		if params.ProcessID != nil && *params.ProcessID != 0 {
			go s.watch(*params.ProcessID)
		}
	}
	return s.inner.Call(ctx, req)
}

func (s *clientProcessMonitorService) watch(pid int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !processAlive(pid) {
			_ = s.socket.Emit(context.Background(), NewEvent(PeerExited{PID: pid}))
			return
		}
	}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (s *clientProcessMonitorService) Notify(ctx context.Context, n *jsonrpc2.AnyNotification) ControlSignal {
	return s.inner.Notify(ctx, n)
}

func (s *clientProcessMonitorService) Emit(ctx context.Context, ev AnyEvent) ControlSignal {
	return s.inner.Emit(ctx, ev)
}

// WithPeerExitShutdown registers the Router's default handling of
// PeerExited: turn it into Break(nil), effecting graceful shutdown
// (spec.md §4.10). Call it once while building a Router that will sit
// behind a ClientProcessMonitorLayer.
func WithPeerExitShutdown[S any](rt *Router[S]) *Router[S] {
	return Event(rt, func(ctx context.Context, _ *S, _ PeerExited) ControlSignal {
		return Break(nil)
	})
}
