package serve

import (
	"testing"

	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestParseShards(t *testing.T) {
	shards, err := parseShards("100=lstore, 200 = lstore")
	require.NoError(t, err)
	require.Equal(t, []common.ServerShard{
		{ShardID: 100, Type: common.ShardTypeLocalIListStore},
		{ShardID: 200, Type: common.ShardTypeLocalIListStore},
	}, shards)

	for _, invalid := range []string{"", "100", "abc=lstore", "100=hashmap", "100=lstore,100=lstore"} {
		_, err := parseShards(invalid)
		require.Error(t, err, invalid)
	}
}
