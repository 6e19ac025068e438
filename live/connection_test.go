package live

import (
	"sync"
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWire stands in for the UDP client: it records every outgoing message
// and immediately answers with the scripted reply (default "ok"). Addresses
// in silent get no reply at all, which is how timeouts are provoked.
type fakeWire struct {
	conn *Conn

	mu      sync.Mutex
	sent    []*osc.Message
	replies map[string][]any
	silent  map[string]bool
}

func newFakeWire() *fakeWire {
	return &fakeWire{
		replies: make(map[string][]any),
		silent:  make(map[string]bool),
	}
}

func (f *fakeWire) Send(packet osc.Packet) error {
	msg, ok := packet.(*osc.Message)
	if !ok {
		return nil
	}

	f.mu.Lock()
	f.sent = append(f.sent, msg)
	quiet := f.silent[msg.Address]
	args, scripted := f.replies[msg.Address]
	f.mu.Unlock()

	if quiet {
		return nil
	}
	if !scripted {
		args = []any{"ok"}
	}
	reply := osc.NewMessage(msg.Address)
	for _, arg := range args {
		reply.Append(arg)
	}
	f.conn.handleReply(reply)
	return nil
}

func (f *fakeWire) sentAddrs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	addrs := make([]string, len(f.sent))
	for i, msg := range f.sent {
		addrs[i] = msg.Address
	}
	return addrs
}

func (f *fakeWire) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeWire) lastMessage(addr string) *osc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Address == addr {
			return f.sent[i]
		}
	}
	return nil
}

func (f *fakeWire) setSilent(addr string, quiet bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent[addr] = quiet
}

func (f *fakeWire) setReply(addr string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[addr] = args
}

func (f *fakeWire) clearReply(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.replies, addr)
}

// newTestConn returns a connected Conn wired to the fake. Receive port zero
// keeps the reply server out of the picture; replies come straight from the
// fake through handleReply.
func newTestConn(t *testing.T, wire *fakeWire) *Conn {
	t.Helper()
	conn := NewConn("127.0.0.1", DefaultSendPort, 0)
	conn.dial = func(host string, port int) sender { return wire }
	wire.conn = conn
	require.NoError(t, conn.Connect())
	t.Cleanup(conn.Disconnect)
	return conn
}

func TestConnect_States(t *testing.T) {
	conn := NewConn("127.0.0.1", DefaultSendPort, 0)
	assert.Equal(t, StateUnconnected, conn.State())
	assert.False(t, conn.IsAlive())

	wire := newFakeWire()
	conn.dial = func(host string, port int) sender { return wire }
	wire.conn = conn

	require.NoError(t, conn.Connect())
	assert.Equal(t, StateConnected, conn.State())
	assert.True(t, conn.IsAlive())
	assert.NotEmpty(t, conn.SessionID())

	// Double connect is rejected
	assert.Error(t, conn.Connect())

	conn.Disconnect()
	assert.Equal(t, StateUnconnected, conn.State())
}

func TestSend_RequiresConnection(t *testing.T) {
	conn := NewConn("127.0.0.1", DefaultSendPort, 0)
	err := conn.Send(cmdFireClip, 0, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPing_RoundTrip(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)

	require.NoError(t, conn.Ping())
	assert.Equal(t, []string{cmdPing}, wire.sentAddrs())
	assert.Equal(t, StateConnected, conn.State())
}

func TestMissedProbe_DegradesThenRecovers(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)

	wire.setSilent(cmdPing, true)
	err := conn.Ping()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateDegraded, conn.State())

	// A degraded session stays usable and recovers on the next good probe
	wire.setSilent(cmdPing, false)
	require.NoError(t, conn.Ping())
	assert.Equal(t, StateConnected, conn.State())
}

func TestRequest_SwallowsMissingAck(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)

	wire.setSilent(cmdSetLooping, true)
	err := conn.Request(cmdSetLooping, 0, 0, 1)

	assert.NoError(t, err)
	assert.Equal(t, StateConnected, conn.State())
}

func TestSendAndWait_ReturnsReplyArguments(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)
	wire.setReply(cmdPing, "ok", int32(3))

	reply, err := conn.SendAndWait(cmdPing, probeTimeout)
	require.NoError(t, err)
	assert.Equal(t, []any{"ok", int32(3)}, reply)
}

func TestSend_ConvertsArgumentTypes(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)

	require.NoError(t, conn.Send(cmdCreateClip, 2, 0, 8.0))

	msg := wire.lastMessage(cmdCreateClip)
	require.NotNil(t, msg)
	require.Len(t, msg.Arguments, 3)
	assert.Equal(t, int32(2), msg.Arguments[0])
	assert.Equal(t, int32(0), msg.Arguments[1])
	assert.Equal(t, float32(8.0), msg.Arguments[2])
}

func TestReconnect_ProbesExistingSession(t *testing.T) {
	wire := newFakeWire()
	conn := newTestConn(t, wire)

	wire.setSilent(cmdPing, true)
	_ = conn.Ping()
	require.Equal(t, StateDegraded, conn.State())

	wire.setSilent(cmdPing, false)
	require.NoError(t, conn.Reconnect())
	assert.Equal(t, StateConnected, conn.State())
}
