package maple

import (
	"github.com/ValentinKolb/dList/lib/db"
	dbtesting "github.com/ValentinKolb/dList/lib/db/testing"
	"testing"
)

func Test(t *testing.T) {
	dbtesting.RunKeySpaceTests(t, "MapleKeySpace", func() db.KeySpace {
		return NewMapleKeySpace(nil)
	})

	dbtesting.RunKeySpaceTests(t, "MapleKeySpace(1 shard)", func() db.KeySpace {
		return NewMapleKeySpace(&Options{NumShards: 1})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKeySpaceBenchmarks(b, "MapleKeySpace", func() db.KeySpace {
		return NewMapleKeySpace(nil)
	})
}
