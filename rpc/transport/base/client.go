package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrTransportClosed is returned for requests that are pending when the transport is closed
var ErrTransportClosed = errors.New("transport is closed")

const maxReconnectBackoff = 5 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection.
// A lost connection is re-established in the background by its reader goroutine.
type clientConnection struct {
	endpoint string
	parent   *clientTransport

	mu   sync.Mutex // Protects conn and serializes writes
	conn net.Conn   // nil while reconnecting

	pending *xsync.MapOf[uint64, chan responseResult]
	stopCh  chan struct{} // Close signal for the reader goroutine
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()
	t.config = config

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			c := &clientConnection{
				endpoint: endpoint,
				parent:   t,
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
				stopCh:   make(chan struct{}),
			}

			if err := c.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, c)
			go c.readResponses()
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, shardId uint64, req []byte) (resp []byte, err error) {
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	// We always try at least once
	maxAttempts := max(1, t.config.Transport.RetryCount)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		// Only requests that could not be written are retried. Once written, the
		// server may execute the request, and commands like push are not idempotent.
		respCh, err := conn.write(shardId, requestID, req)
		if err == nil {
			return conn.await(ctx, requestID, respCh)
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxAttempts, err)

		if i+1 < maxAttempts {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxAttempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// optimize for single connection
	if len(t.connections) == 1 {
		return t.connections[0]
	}
	index := atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	return t.connections[index]
}

// closeConnections closes all active connections and fails their pending requests
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		// Signal reader goroutine to stop
		close(c.stopCh)

		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		c.failPending(ErrTransportClosed)
	}
}

// write registers the request and writes its frame
func (c *clientConnection) write(shardId, requestID uint64, req []byte) (chan responseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("connection to %s is closed", c.endpoint)
	}

	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)

	if timeout := c.parent.config.TimeoutSecond; timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Duration(timeout) * time.Second))
	}

	if err := writeFrame(c.conn, shardId, requestID, req); err != nil {
		c.pending.Delete(requestID)
		// the frame may be partially written, the stream is unusable
		_ = c.conn.Close()
		return nil, err
	}

	return respCh, nil
}

// await waits for the response of a written request or until ctx is done
func (c *clientConnection) await(ctx context.Context, requestID uint64, respCh chan responseResult) ([]byte, error) {
	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		// a late response is dropped by the reader
		c.pending.Delete(requestID)
		return nil, ctx.Err()
	}
}

// failPending fails all requests waiting for a response on this connection
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, _ chan responseResult) bool {
		if respCh, ok := c.pending.LoadAndDelete(requestID); ok {
			respCh <- responseResult{err: err}
		}
		return true
	})
}

// stopped reports whether the connection was closed by the transport
func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			if !c.reconnectLoop() {
				return
			}
			continue
		}

		_, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if c.stopped() {
				return
			}
			Logger.Warningf("Connection to %s lost: %v", c.endpoint, err)

			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()

			// The requests may or may not have been executed, there is no way to tell
			c.failPending(fmt.Errorf("connection to %s lost: %w", c.endpoint, err))
			continue
		}

		if respCh, ok := c.pending.LoadAndDelete(requestID); ok {
			respCh <- responseResult{data: data}
		} else {
			Logger.Debugf("Dropping response for unknown request ID %d", requestID)
		}
	}
}

// reconnectLoop re-establishes the connection with exponential backoff.
// It returns false if the connection was closed by the transport.
func (c *clientConnection) reconnectLoop() bool {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-c.stopCh:
			return false
		case <-time.After(backoff):
		}

		if err := c.reconnect(); err != nil {
			Logger.Debugf("Reconnect to %s failed: %v", c.endpoint, err)
			backoff = min(2*backoff, maxReconnectBackoff)
			continue
		}

		// Close may have run while connecting
		if c.stopped() {
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return false
		}

		Logger.Infof("Reconnected to %s", c.endpoint)
		return true
	}
}

// reconnect establishes or restores the connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
