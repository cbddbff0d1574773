package client

import (
	"context"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dList/lib/store"
	storetesting "github.com/ValentinKolb/dList/lib/store/testing"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/serializer"
	"github.com/ValentinKolb/dList/rpc/server"
	"github.com/ValentinKolb/dList/rpc/transport/unix"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testShard = 100

// startServer serves one local list store shard on a unix socket and returns a client config for it
func startServer(t *testing.T, s serializer.IRPCSerializer) common.ClientConfig {
	t.Helper()
	endpoint := filepath.Join(t.TempDir(), "dlist.sock")

	srv := server.NewRPCServer(common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: testShard, Type: common.ShardTypeLocalIListStore}},
		TimeoutSecond: 5,
		LogLevel:      "warning",
		Transport:     common.ServerTransportConfig{Endpoint: endpoint},
	}, unix.NewUnixDefaultServerTransport(), s)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{endpoint},
			RetryCount:             2,
			ConnectionsPerEndpoint: 2,
		},
	}

	// wait until the socket accepts connections
	require.Eventually(t, func() bool {
		c, err := NewRPCListStore(testShard, config, unix.NewUnixClientTransport(), s)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-serveErr)
	})
	return config
}

func newClient(t *testing.T, config common.ClientConfig, s serializer.IRPCSerializer) store.IListStore {
	c, err := NewRPCListStore(testShard, config, unix.NewUnixClientTransport(), s)
	require.NoError(t, err)
	return c
}

func TestRPCListStore(t *testing.T) {
	serializers := map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"json":   serializer.NewJSONSerializer(),
		"gob":    serializer.NewGOBSerializer(),
	}
	for name, s := range serializers {
		config := startServer(t, s)
		storetesting.RunListStoreTests(t, "RPC/"+name, func() store.IListStore {
			return newClient(t, config, s)
		})
	}
}

func TestRPCUnknownShard(t *testing.T) {
	s := serializer.NewBinarySerializer()
	config := startServer(t, s)

	c, err := NewRPCListStore(testShard+1, config, unix.NewUnixClientTransport(), s)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.PushTail("jobs", []byte("a"))
	require.Error(t, err)
}

func TestRPCErrorCodes(t *testing.T) {
	s := serializer.NewBinarySerializer()
	c := newClient(t, startServer(t, s), s)
	defer c.Close()
	require.NoError(t, c.Reset())

	err := c.IndexSet("missing", 0, []byte("x"))
	require.True(t, store.IsIndexOutOfRange(err), "unexpected error %v", err)

	_, err = c.InsertRelative("jobs", []byte("a"), []byte("b"), store.Position(7))
	require.True(t, store.IsInvalidOperation(err), "unexpected error %v", err)
}

func TestRPCBlockingCancelAcrossClients(t *testing.T) {
	s := serializer.NewBinarySerializer()
	config := startServer(t, s)

	consumer := newClient(t, config, s)
	defer consumer.Close()
	producer := newClient(t, config, s)
	defer producer.Close()
	require.NoError(t, producer.Reset())

	// a short client deadline ends the call, the server keeps no waiter behind
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, ok, err := consumer.BlockingPopHead(ctx, []string{"jobs"}, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ok)

	_, err = producer.PushTail("jobs", []byte("a"))
	require.NoError(t, err)
	n, err := producer.Length("jobs")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// a served call returns its element
	key, v, ok, err := consumer.BlockingPopHead(context.Background(), []string{"jobs"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "jobs", key)
	require.Equal(t, "a", string(v))
}

// lossyTransport fails every cancel and serves blocking calls after the second failed cancel
type lossyTransport struct {
	s       serializer.IRPCSerializer
	cancels atomic.Int32
	served  chan struct{}
}

func (t *lossyTransport) Connect(common.ClientConfig) error { return nil }
func (t *lossyTransport) Close() error                      { return nil }

func (t *lossyTransport) Send(ctx context.Context, _ uint64, req []byte) ([]byte, error) {
	msg := common.Message{}
	if err := t.s.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	if msg.MsgType == common.MsgTCancel {
		if t.cancels.Add(1) == 2 {
			close(t.served)
		}
		return nil, errors.New("connection reset")
	}
	select {
	case <-t.served:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return t.s.Serialize(*common.NewKeyValueResponse(msg.MsgType, "jobs", []byte("a"), true, nil))
}

func TestRPCBlockingServedAfterFailedCancel(t *testing.T) {
	s := serializer.NewBinarySerializer()
	tr := &lossyTransport{s: s, served: make(chan struct{})}
	c := &rpcListStore{
		rpcClientAdapter: rpcClientAdapter{shardId: testShard, transport: tr, serializer: s},
		callPrefix:       "test-",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// the call is served although the caller gave up, the element must not get lost
	key, v, ok, err := c.BlockingPopHead(ctx, []string{"jobs"}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "jobs", key)
	require.Equal(t, "a", string(v))
	require.GreaterOrEqual(t, tr.cancels.Load(), int32(2))
}

func TestRequestContextHugeTimeout(t *testing.T) {
	a := rpcClientAdapter{config: common.ClientConfig{TimeoutSecond: 5}}
	ctx, cancel := a.requestContext(context.Background(), time.Duration(math.MaxInt64), false)
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	require.False(t, hasDeadline)
	require.NoError(t, ctx.Err())
}

func TestRPCBlockingMoveTimeout(t *testing.T) {
	s := serializer.NewBinarySerializer()
	c := newClient(t, startServer(t, s), s)
	defer c.Close()
	require.NoError(t, c.Reset())

	start := time.Now()
	v, ok, err := c.BlockingMoveTailToHead(context.Background(), "src", "dst", 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTimeoutMillis(t *testing.T) {
	require.Equal(t, int64(0), timeoutMillis(0))
	require.Equal(t, int64(1), timeoutMillis(time.Microsecond))
	require.Equal(t, int64(1500), timeoutMillis(1500*time.Millisecond))
	require.Equal(t, int64(-1000), timeoutMillis(-time.Second))
	require.Equal(t, int64(math.MaxInt64/int64(time.Millisecond))+1, timeoutMillis(time.Duration(math.MaxInt64)))
}
