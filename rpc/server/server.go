package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/db/engines/maple"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/lib/store/lstore"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/serializer"
	"github.com/ValentinKolb/dList/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   store.IListStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// RPCServer serves the list stores of all configured shards over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	mu            sync.Mutex
	metricsServer *http.Server
}

// handler returns the function that decodes a request, dispatches it to its shard and encodes the response
func (s *RPCServer) handler() transport.ServerHandleFunc {
	return func(ctx context.Context, shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		start := time.Now()

		if shard, ok := s.shards.Load(shardId); !ok {
			// Case shard does not exist -> error
			respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			respMsg = shard.Adapter.Handle(ctx, &msg, shard.Store)
			observeRequest(msg.MsgType, start)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	}
}

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if len(s.config.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}

	// Function to create a new key space instance
	ksFactory := func() db.KeySpace { return maple.NewMapleKeySpace(nil) }

	for _, shardConfig := range s.config.Shards {
		if shardConfig.Type != common.ShardTypeLocalIListStore {
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
		if _, loaded := s.shards.Load(shardConfig.ShardID); loaded {
			return fmt.Errorf("duplicate shard id %d", shardConfig.ShardID)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   lstore.NewLocalStore(ksFactory),
			Adapter: NewIListStoreServerAdapter(),
		})
		Logger.Infof("created local list store for shard %d", shardConfig.ShardID)
	}

	if s.config.MetricsEndpoint != "" {
		s.startMetricsServer()
	}

	Logger.Infof("dList setup completed successfully")

	s.transport.RegisterHandler(s.handler())

	return nil
}

// startMetricsServer exposes all metrics in the prometheus text format on /metrics
func (s *RPCServer) startMetricsServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
	s.mu.Lock()
	s.metricsServer = srv
	s.mu.Unlock()

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server failed: %v", err)
		}
	}()
}

// Serve starts the RPC server
// This function will also initialize the shards and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport, ends all blocked commands and closes the stores of all shards
func (s *RPCServer) Close() error {
	err := s.transport.Close()

	s.shards.Range(func(id uint64, shard serverShard) bool {
		if cerr := shard.Store.Close(); cerr != nil {
			Logger.Errorf("failed to close shard %d: %v", id, cerr)
		}
		return true
	})

	s.mu.Lock()
	if s.metricsServer != nil {
		_ = s.metricsServer.Close()
	}
	s.mu.Unlock()

	return err
}
