package dispatch

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessAliveReportsCurrentProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
}

func TestProcessAliveReportsImplausiblePIDAsDead(t *testing.T) {
	// An implausibly large pid should not correspond to a running process.
	assert.False(t, processAlive(999999999))
}

func TestWithPeerExitShutdownRegistersBreakOk(t *testing.T) {
	state := &serverState{}
	rt := NewRouter(state)
	WithPeerExitShutdown(rt)

	sig := rt.Emit(context.Background(), NewEvent(PeerExited{PID: 123}))
	assert.True(t, sig.ShouldBreak())
	assert.NoError(t, sig.Err())
}
