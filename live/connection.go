// Package live mirrors the track registry into a running DAW session over
// the AbletonOSC UDP control protocol: clip creation, batch note upload
// and transport, with an automatic-first / manual-fallback policy.
package live

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hypebeast/go-osc/osc"
)

const (
	// DefaultSendPort is the conventional AbletonOSC listen port.
	DefaultSendPort = 11000
	// DefaultReceivePort is the conventional AbletonOSC reply port.
	DefaultReceivePort = 11001

	commandTimeout = 2 * time.Second
	probeTimeout   = 1 * time.Second
	probeInterval  = 5 * time.Second
)

var (
	// ErrNotConnected is returned for transport operations without a live session.
	ErrNotConnected = errors.New("not connected to live session")
	// ErrTimeout is returned when a command gets no response in time.
	ErrTimeout = errors.New("live command timed out")
	// ErrProtocolUnsupported marks a command the remote surface rejected.
	// It is never surfaced as a user-facing failure: the sync controller
	// converts it into manual-fallback mode.
	ErrProtocolUnsupported = errors.New("command not supported by remote surface")
)

// State is the connection lifecycle state.
type State string

const (
	// StateUnconnected - no session; live sync is disabled.
	StateUnconnected State = "unconnected"
	// StateConnected - session established and responding to probes.
	StateConnected State = "connected"
	// StateDegraded - a probe or command timed out; the registry is intact
	// and a later probe or explicit reconnect can restore the session.
	StateDegraded State = "degraded"
)

// sender abstracts the outgoing OSC client so tests can fake the wire.
type sender interface {
	Send(packet osc.Packet) error
}

// Conn owns the transport session to the DAW control endpoint: lifecycle
// (connect, health probe, reconnect) and command dispatch. At most one
// Conn is live per process, and only one request is in flight at a time -
// the health probe and command dispatch serialize through reqMu.
type Conn struct {
	host     string
	sendPort int
	recvPort int

	mu        sync.Mutex // guards state, client, server, waiters
	reqMu     sync.Mutex // serializes in-flight requests
	state     State
	sessionID string
	client    sender
	server    *osc.Server
	waiters   map[string]chan []any
	probeStop chan struct{}

	// dial is a test seam; defaults to an osc.Client.
	dial func(host string, port int) sender
}

// NewConn creates an unconnected session handle.
func NewConn(host string, sendPort, recvPort int) *Conn {
	return &Conn{
		host:     host,
		sendPort: sendPort,
		recvPort: recvPort,
		state:    StateUnconnected,
		waiters:  make(map[string]chan []any),
		dial: func(host string, port int) sender {
			return osc.NewClient(host, port)
		},
	}
}

// Connect establishes the session: UDP client towards the DAW, a reply
// server for responses, and the periodic health probe. The reply server
// failing to bind is a warning, not an error - basic control still works
// without responses, exactly like the original OSC bridges.
func (c *Conn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUnconnected {
		return fmt.Errorf("connect: session already %s", c.state)
	}

	c.client = c.dial(c.host, c.sendPort)
	c.sessionID = uuid.NewString()
	c.startReceiverLocked()
	c.state = StateConnected

	c.probeStop = make(chan struct{})
	go c.probeLoop(c.probeStop)

	log.Printf("🔌 LIVE SESSION %s: sending to %s:%d, replies on :%d",
		c.sessionID, c.host, c.sendPort, c.recvPort)
	return nil
}

// startReceiverLocked starts the OSC reply server. Callers hold c.mu.
func (c *Conn) startReceiverLocked() {
	if c.recvPort <= 0 {
		return
	}

	dispatcher := osc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler("*", c.handleReply); err != nil {
		log.Printf("⚠️  Could not register OSC reply handler: %v", err)
		return
	}

	server := &osc.Server{
		Addr:       fmt.Sprintf("%s:%d", c.host, c.recvPort),
		Dispatcher: dispatcher,
	}
	c.server = server
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Printf("⚠️  OSC reply server stopped: %v", err)
			log.Printf("   Responses from the DAW will not be received; commands still send.")
		}
	}()
}

// handleReply routes an incoming OSC message to the waiter for its address.
func (c *Conn) handleReply(msg *osc.Message) {
	c.mu.Lock()
	ch, ok := c.waiters[msg.Address]
	if ok {
		delete(c.waiters, msg.Address)
	}
	c.mu.Unlock()

	if ok {
		ch <- msg.Arguments
	}
}

// Disconnect tears the session down from any state.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probeStop != nil {
		close(c.probeStop)
		c.probeStop = nil
	}
	if c.server != nil {
		if err := c.server.CloseConnection(); err != nil {
			log.Printf("⚠️  Closing OSC reply server: %v", err)
		}
		c.server = nil
	}
	c.client = nil
	c.state = StateUnconnected
	log.Printf("🔌 LIVE SESSION %s closed", c.sessionID)
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAlive reports whether the session is connected and healthy.
func (c *Conn) IsAlive() bool {
	return c.State() == StateConnected
}

// SessionID identifies the current session in status output.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Send dispatches a fire-and-forget command.
func (c *Conn) Send(addr string, args ...any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	return c.send(addr, args...)
}

func (c *Conn) send(addr string, args ...any) error {
	c.mu.Lock()
	client := c.client
	state := c.state
	c.mu.Unlock()

	if client == nil || state == StateUnconnected {
		return ErrNotConnected
	}

	msg := osc.NewMessage(addr)
	for _, arg := range args {
		msg.Append(oscArg(arg))
	}
	if err := client.Send(msg); err != nil {
		return fmt.Errorf("osc send %s: %w", addr, err)
	}
	return nil
}

// SendAndWait dispatches a command and waits for its response with a
// bounded timeout. A timeout marks the session degraded and returns
// ErrTimeout; the caller decides whether that is fatal for its operation.
func (c *Conn) SendAndWait(addr string, timeout time.Duration, args ...any) ([]any, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	if _, exists := c.waiters[addr]; exists {
		// Single in-flight request per address; the previous waiter is
		// stale by construction (reqMu serializes requests).
		delete(c.waiters, addr)
	}
	ch := make(chan []any, 1)
	c.waiters[addr] = ch
	c.mu.Unlock()

	if err := c.send(addr, args...); err != nil {
		c.mu.Lock()
		delete(c.waiters, addr)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case reply := <-ch:
		c.markHealthy()
		return reply, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.waiters, addr)
		if c.state == StateConnected {
			c.state = StateDegraded
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, addr, timeout)
	}
}

// Request dispatches a command that does not require a response: it waits
// briefly but swallows a missing reply, the way the original bridge treats
// clip commands that some plugin versions never acknowledge.
func (c *Conn) Request(addr string, args ...any) error {
	_, err := c.SendAndWait(addr, commandTimeout, args...)
	if errors.Is(err, ErrTimeout) {
		// No acknowledgement is normal for setter commands; keep the
		// session healthy instead of degrading on the missing reply.
		c.markHealthy()
		return nil
	}
	return err
}

// Ping issues the lightweight status probe with a strict timeout.
func (c *Conn) Ping() error {
	_, err := c.SendAndWait(cmdPing, probeTimeout)
	return err
}

// Reconnect attempts to restore a degraded session. A successful probe
// moves the state back to connected.
func (c *Conn) Reconnect() error {
	c.mu.Lock()
	if c.state == StateUnconnected {
		c.mu.Unlock()
		if err := c.Connect(); err != nil {
			return err
		}
	} else {
		c.mu.Unlock()
	}

	if err := c.Ping(); err != nil {
		return fmt.Errorf("reconnect probe failed: %w", err)
	}
	return nil
}

func (c *Conn) markHealthy() {
	c.mu.Lock()
	if c.state == StateDegraded {
		log.Printf("💓 Live session recovered")
	}
	if c.state != StateUnconnected {
		c.state = StateConnected
	}
	c.mu.Unlock()
}

// probeLoop runs the periodic health probe on its own timer. A single
// missed probe moves the session to degraded, not a hard failure.
func (c *Conn) probeLoop(stop chan struct{}) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				log.Printf("💔 Live health probe missed: %v", err)
			}
		}
	}
}

// oscArg converts Go values to the OSC argument types the remote expects.
func oscArg(v any) any {
	switch val := v.(type) {
	case int:
		return int32(val)
	case float64:
		return float32(val)
	default:
		return v
	}
}
