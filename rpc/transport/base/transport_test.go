package base

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/transport"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test connectors (unix sockets)
// --------------------------------------------------------------------------

type testServerConnector struct{}

func (c *testServerConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("unix", config.Transport.Endpoint)
}
func (c *testServerConnector) GetName() string { return "test" }
func (c *testServerConnector) UpgradeConnection(net.Conn, common.ServerConfig) error {
	return nil
}

type testClientConnector struct{}

func (c *testClientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}
func (c *testClientConnector) GetName() string { return "test" }
func (c *testClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// startServer starts a server transport with handler and returns a connected client transport
func startServer(t *testing.T, handler transport.ServerHandleFunc) (transport.IRPCServerTransport, transport.IRPCClientTransport) {
	t.Helper()
	endpoint := filepath.Join(t.TempDir(), "test.sock")

	server := NewBaseServerTransport(&testServerConnector{}, 64)
	server.RegisterHandler(handler)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: endpoint}})
	}()

	client := NewBaseClientTransport(&testClientConnector{})
	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}, RetryCount: 1},
	}
	require.Eventually(t, func() bool { return client.Connect(config) == nil }, 2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		_ = client.Close()
		require.NoError(t, server.Close())
		require.NoError(t, <-listenErr)
	})
	return server, client
}

// echo returns the request prefixed with the shard id
func echo(_ context.Context, shardId uint64, req []byte) []byte {
	return append([]byte{byte(shardId)}, req...)
}

func TestFrameRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	payload := bytes.Repeat([]byte("x"), 100)
	go func() {
		_ = writeFrame(a, 7, 42, payload)
		_ = writeFrame(a, 8, 43, nil)
	}()

	// buffer smaller than the payload
	shardID, requestID, data, err := readFrame(b, make([]byte, 32))
	require.NoError(t, err)
	require.Equal(t, uint64(7), shardID)
	require.Equal(t, uint64(42), requestID)
	require.Equal(t, payload, data)

	shardID, requestID, data, err = readFrame(b, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(8), shardID)
	require.Equal(t, uint64(43), requestID)
	require.Empty(t, data)
}

func TestSendReceive(t *testing.T) {
	_, client := startServer(t, echo)

	resp, err := client.Send(context.Background(), 3, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, append([]byte{3}, "hello"...), resp)

	// payload larger than the pooled buffer
	large := bytes.Repeat([]byte("y"), 4096)
	resp, err = client.Send(context.Background(), 1, large)
	require.NoError(t, err)
	require.Equal(t, append([]byte{1}, large...), resp)
}

func TestSlowRequestDoesNotBlockConnection(t *testing.T) {
	release := make(chan struct{})
	_, client := startServer(t, func(ctx context.Context, shardId uint64, req []byte) []byte {
		if string(req) == "slow" {
			<-release
		}
		return req
	})

	slow := make(chan []byte, 1)
	go func() {
		resp, _ := client.Send(context.Background(), 1, []byte("slow"))
		slow <- resp
	}()

	// the fast request overtakes the slow one on the same connection
	resp, err := client.Send(context.Background(), 1, []byte("fast"))
	require.NoError(t, err)
	require.Equal(t, "fast", string(resp))

	close(release)
	require.Equal(t, "slow", string(<-slow))
}

func TestSendContextCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	_, client := startServer(t, func(ctx context.Context, shardId uint64, req []byte) []byte {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return req
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Send(ctx, 1, []byte("never answered in time"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlerCancelledOnDisconnect(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	_, client := startServer(t, func(ctx context.Context, shardId uint64, req []byte) []byte {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil
	})

	go func() { _, _ = client.Send(context.Background(), 1, []byte("block")) }()
	<-started

	require.NoError(t, client.Close())
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler context was not cancelled after the client disconnected")
	}
}

func TestPendingRequestsFailOnClose(t *testing.T) {
	started := make(chan struct{})
	_, client := startServer(t, func(ctx context.Context, shardId uint64, req []byte) []byte {
		close(started)
		<-ctx.Done()
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), 1, []byte("block"))
		errCh <- err
	}()
	<-started

	require.NoError(t, client.Close())
	require.ErrorIs(t, <-errCh, ErrTransportClosed)
}

func TestServerCloseCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	server, client := startServer(t, func(ctx context.Context, shardId uint64, req []byte) []byte {
		close(started)
		<-ctx.Done()
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), 1, []byte("block"))
		errCh <- err
	}()
	<-started

	require.NoError(t, server.Close())
	select {
	case err := <-errCh:
		// either the last response made it or the connection was lost
		_ = err
	case <-time.After(2 * time.Second):
		t.Fatal("request did not return after the server was closed")
	}
}
