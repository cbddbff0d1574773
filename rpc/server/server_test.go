package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/serializer"
	"github.com/ValentinKolb/dList/rpc/transport/unix"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, shards ...common.ServerShard) common.ServerConfig {
	return common.ServerConfig{
		Shards:    shards,
		LogLevel:  "error",
		Transport: common.ServerTransportConfig{Endpoint: filepath.Join(t.TempDir(), "dlist.sock")},
	}
}

func TestServeInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config common.ServerConfig
	}{
		{"no shards", testConfig(t)},
		{"invalid type", testConfig(t, common.ServerShard{ShardID: 1, Type: "hashmap"})},
		{"duplicate id", testConfig(t,
			common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIListStore},
			common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIListStore},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRPCServer(tt.config, unix.NewUnixDefaultServerTransport(), serializer.NewBinarySerializer())
			t.Cleanup(func() { _ = s.Close() })
			require.Error(t, s.Serve())
		})
	}

	config := testConfig(t, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIListStore})
	config.LogLevel = "verbose"
	s := NewRPCServer(config, unix.NewUnixDefaultServerTransport(), serializer.NewBinarySerializer())
	require.Error(t, s.Serve())
}

func TestRequestDispatch(t *testing.T) {
	s := NewRPCServer(
		testConfig(t, common.ServerShard{ShardID: 7, Type: common.ShardTypeLocalIListStore}),
		unix.NewUnixDefaultServerTransport(),
		serializer.NewBinarySerializer(),
	)
	require.NoError(t, s.init())
	defer s.Close()

	codec := serializer.NewBinarySerializer()
	send := func(shardId uint64, req *common.Message) *common.Message {
		data, err := codec.Serialize(*req)
		require.NoError(t, err)
		var resp common.Message
		require.NoError(t, codec.Deserialize(s.handler()(context.Background(), shardId, data), &resp))
		return &resp
	}

	resp := send(7, common.NewPushRequest(common.MsgTRPush, "jobs", []byte("a")))
	require.NoError(t, resp.Error())
	require.Equal(t, int64(1), resp.Length)

	// unknown shard
	resp = send(8, common.NewKeyRequest(common.MsgTLLen, "jobs"))
	require.Error(t, resp.Error())

	// garbage request
	shardResp := s.handler()(context.Background(), 7, []byte{0xff})
	var msg common.Message
	require.NoError(t, codec.Deserialize(shardResp, &msg))
	require.Equal(t, common.MsgTError, msg.MsgType)
}
