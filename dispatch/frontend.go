package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-labs/lsprpc/jsonrpc2"
	"github.com/rs/zerolog"
)

// shutdownDrainDeadline bounds how long Run waits for in-flight request
// handlers to finish before it stops waiting and proceeds with shutdown
// (spec.md §4.11 orderly shutdown step 1).
const shutdownDrainDeadline = 2 * time.Second

// Frontend is the duplex dispatch runtime: it drives a reader task, a
// writer task, the outgoing correlation table, and the single-consumer
// dispatch loop that feeds the composed LspService (spec.md §4.11).
type Frontend struct {
	svc     LspService
	table   *correlationTable
	outbox  chan any
	events  chan AnyEvent
	inbound chan any
	closed  *atomic.Bool
	logger  zerolog.Logger
}

func newFrontend(concurrencyHint int, build func(*PeerSocket) LspService, opts ...Option) (*Frontend, *PeerSocket) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	bufSize := concurrencyHint * 4
	if bufSize < 16 {
		bufSize = 16
	}

	table := newCorrelationTable()
	outbox := make(chan any, bufSize)
	events := make(chan AnyEvent, bufSize)
	closed := &atomic.Bool{}

	socket := newPeerSocket(table, outbox, events, closed)
	svc := build(socket)

	fe := &Frontend{
		svc:     svc,
		table:   table,
		outbox:  outbox,
		events:  events,
		inbound: make(chan any, bufSize),
		closed:  closed,
		logger:  o.logger,
	}
	return fe, socket
}

// NewClient builds a Frontend driving the client side of a connection
// (spec.md §6 library surface). concurrencyHint sizes internal queues and
// is typically also passed to ConcurrencyLayer inside build.
func NewClient(concurrencyHint int, build func(*ClientSocket) LspService, opts ...Option) (*Frontend, *ClientSocket) {
	return newFrontend(concurrencyHint, build, opts...)
}

// NewServer builds a Frontend driving the server side of a connection. It
// differs from NewClient only in which typed façade (omni.BuildServer vs
// omni.BuildClient) callers are expected to route through build.
func NewServer(concurrencyHint int, build func(*ServerSocket) LspService, opts ...Option) (*Frontend, *ServerSocket) {
	return newFrontend(concurrencyHint, build, opts...)
}

// Run drives the dispatch loop until a handler returns Break, the reader
// observes a clean stream close, or a fatal codec error occurs (spec.md
// §4.11). It returns the aggregated result.
func (fe *Frontend) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	readerErrCh := make(chan error, 1)
	writerDone := make(chan struct{})
	stopWriter := make(chan struct{})

	go fe.runWriter(w, stopWriter, writerDone)

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	go fe.runReader(readerCtx, r, readerErrCh)

	var pending sync.WaitGroup
	runErr := fe.dispatchLoop(ctx, readerErrCh, &pending)

	// Orderly shutdown (spec.md §4.11):
	fe.closed.Store(true)
	cancelReader()

	drained := make(chan struct{})
	go func() {
		pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownDrainDeadline):
		fe.logger.Warn().Msg("lsprpc: timed out waiting for in-flight request handlers during shutdown")
	}

	fe.table.drain()
	close(stopWriter)
	<-writerDone

	return runErr
}

func (fe *Frontend) runReader(ctx context.Context, r io.Reader, errCh chan<- error) {
	jr := jsonrpc2.NewReader(r)
	for {
		msg, err := jr.Read()
		if err != nil {
			if errors.Is(err, jsonrpc2.ErrCleanClose) {
				errCh <- nil
			} else {
				errCh <- err
			}
			return
		}

		if resp, ok := msg.(*jsonrpc2.AnyResponse); ok {
			if !fe.table.complete(resp) {
				fe.logger.Warn().Str("id", resp.ID.String()).Msg("lsprpc: dropping response for unknown or duplicate id")
			}
			continue
		}

		select {
		case fe.inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (fe *Frontend) runWriter(w io.Writer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	jw := jsonrpc2.NewWriter(w)
	for {
		select {
		case msg := <-fe.outbox:
			if err := jw.Write(msg); err != nil {
				fe.logger.Warn().Err(err).Msg("lsprpc: write failed")
			}
		case <-stop:
			for {
				select {
				case msg := <-fe.outbox:
					if err := jw.Write(msg); err != nil {
						fe.logger.Warn().Err(err).Msg("lsprpc: write failed")
					}
				default:
					return
				}
			}
		}
	}
}

func (fe *Frontend) dispatchLoop(ctx context.Context, readerErrCh <-chan error, pending *sync.WaitGroup) error {
	for {
		select {
		case msg := <-fe.inbound:
			switch m := msg.(type) {
			case *jsonrpc2.AnyRequest:
				pending.Add(1)
				go fe.handleRequest(ctx, m, pending)
			case *jsonrpc2.AnyNotification:
				sig := fe.svc.Notify(ctx, m)
				if sig.ShouldBreak() {
					return sig.Err()
				}
			}
		case ev := <-fe.events:
			sig := fe.svc.Emit(ctx, ev)
			if sig.ShouldBreak() {
				return sig.Err()
			}
		case err := <-readerErrCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleRequest runs a single request to completion on its own goroutine so
// a slow handler never stalls the dispatch loop (spec.md §4.11, §5).
func (fe *Frontend) handleRequest(ctx context.Context, req *jsonrpc2.AnyRequest, pending *sync.WaitGroup) {
	defer pending.Done()
	result, respErr := fe.svc.Call(ctx, req)
	resp := &jsonrpc2.AnyResponse{ID: req.ID, Result: result, Err: respErr}
	select {
	case fe.outbox <- resp:
	case <-time.After(shutdownDrainDeadline):
	}
}
