package list

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

var (
	lpushCmd = &cobra.Command{
		Use:   "lpush [key] [value...]",
		Short: "Inserts the values at the head of the list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return push(rpcStore.PushHead, args[0], args[1:])
		},
	}
	rpushCmd = &cobra.Command{
		Use:   "rpush [key] [value...]",
		Short: "Inserts the values at the tail of the list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return push(rpcStore.PushTail, args[0], args[1:])
		},
	}
	lpushxCmd = &cobra.Command{
		Use:   "lpushx [key] [value...]",
		Short: "Inserts the values at the head of the list, only if the list exists",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return push(rpcStore.PushHeadIfExists, args[0], args[1:])
		},
	}
	rpushxCmd = &cobra.Command{
		Use:   "rpushx [key] [value...]",
		Short: "Inserts the values at the tail of the list, only if the list exists",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return push(rpcStore.PushTailIfExists, args[0], args[1:])
		},
	}
	lpopCmd = &cobra.Command{
		Use:   "lpop [key]",
		Short: "Removes and returns the first element of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := rpcStore.PopHead(args[0])
			if err != nil {
				return err
			}
			printValue(v, ok)
			return nil
		},
	}
	rpopCmd = &cobra.Command{
		Use:   "rpop [key]",
		Short: "Removes and returns the last element of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := rpcStore.PopTail(args[0])
			if err != nil {
				return err
			}
			printValue(v, ok)
			return nil
		},
	}
	llenCmd = &cobra.Command{
		Use:   "llen [key]",
		Short: "Returns the length of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcStore.Length(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("(integer) %d\n", n)
			return nil
		},
	}
	lrangeCmd = &cobra.Command{
		Use:   "lrange [key] [start] [stop]",
		Short: "Returns the elements between start and stop (inclusive, negative indices count from the tail)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseInt("start", args[1])
			if err != nil {
				return err
			}
			stop, err := parseInt("stop", args[2])
			if err != nil {
				return err
			}
			values, err := rpcStore.Range(args[0], start, stop)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Println("(empty list)")
			}
			for i, v := range values {
				fmt.Printf("%d) %q\n", i+1, v)
			}
			return nil
		},
	}
	lindexCmd = &cobra.Command{
		Use:   "lindex [key] [index]",
		Short: "Returns the element at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseInt("index", args[1])
			if err != nil {
				return err
			}
			v, ok, err := rpcStore.IndexGet(args[0], index)
			if err != nil {
				return err
			}
			printValue(v, ok)
			return nil
		},
	}
	lsetCmd = &cobra.Command{
		Use:   "lset [key] [index] [value]",
		Short: "Replaces the element at index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseInt("index", args[1])
			if err != nil {
				return err
			}
			if err := rpcStore.IndexSet(args[0], index, []byte(args[2])); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	linsertCmd = &cobra.Command{
		Use:   "linsert [key] [before|after] [pivot] [value]",
		Short: "Inserts the value before or after the first element equal to pivot",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := store.ParsePosition(args[1])
			if err != nil {
				return err
			}
			inserted, err := rpcStore.InsertRelative(args[0], []byte(args[2]), []byte(args[3]), pos)
			if err != nil {
				return err
			}
			fmt.Printf("inserted=%t\n", inserted)
			return nil
		},
	}
	lremCmd = &cobra.Command{
		Use:   "lrem [key] [count] [value]",
		Short: "Removes elements equal to value (count > 0 from the head, count < 0 from the tail, 0 all)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseInt("count", args[1])
			if err != nil {
				return err
			}
			n, err := rpcStore.RemoveMatching(args[0], []byte(args[2]), count)
			if err != nil {
				return err
			}
			fmt.Printf("(integer) %d\n", n)
			return nil
		},
	}
	rpoplpushCmd = &cobra.Command{
		Use:   "rpoplpush [source] [destination]",
		Short: "Moves the last element of source to the head of destination",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := rpcStore.MoveTailToHead(args[0], args[1])
			if err != nil {
				return err
			}
			printValue(v, ok)
			return nil
		},
	}
	blpopCmd = &cobra.Command{
		Use:   "blpop [key...] [timeout]",
		Short: "Removes and returns the first element of the first non-empty list, blocking until one is available (timeout in seconds, 0 = forever)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return blockingPop(rpcStore.BlockingPopHead, args)
		},
	}
	brpopCmd = &cobra.Command{
		Use:   "brpop [key...] [timeout]",
		Short: "Removes and returns the last element of the first non-empty list, blocking until one is available (timeout in seconds, 0 = forever)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return blockingPop(rpcStore.BlockingPopTail, args)
		},
	}
	brpoplpushCmd = &cobra.Command{
		Use:   "brpoplpush [source] [destination] [timeout]",
		Short: "Moves the last element of source to the head of destination, blocking until source is non-empty",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := parseTimeout(args[2])
			if err != nil {
				return err
			}
			ctx, stop := interruptContext()
			defer stop()
			v, ok, err := rpcStore.BlockingMoveTailToHead(ctx, args[0], args[1], timeout)
			if err != nil {
				return err
			}
			printValue(v, ok)
			return nil
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Removes all lists of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Reset(); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the lists of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			fmt.Printf("type=%s, keys=%d, elements=%d, size=%dB\n", info.DbType, info.Keys, info.Elements, info.SizeBytes)
			if info.Metadata != nil {
				fmt.Printf("metadata=%v\n", info.Metadata)
			}
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func push(fn func(string, []byte) (int, error), key string, values []string) error {
	var n int
	var err error
	for _, v := range values {
		if n, err = fn(key, []byte(v)); err != nil {
			return err
		}
	}
	fmt.Printf("(integer) %d\n", n)
	return nil
}

func blockingPop(fn func(context.Context, []string, time.Duration) (string, []byte, bool, error), args []string) error {
	timeout, err := parseTimeout(args[len(args)-1])
	if err != nil {
		return err
	}
	ctx, stop := interruptContext()
	defer stop()

	key, v, ok, err := fn(ctx, args[:len(args)-1], timeout)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(nil)")
		return nil
	}
	fmt.Printf("key=%s, value=%q\n", key, v)
	return nil
}

// interruptContext returns a context that is cancelled by Ctrl-C, so a blocked command can be aborted
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printValue(v []byte, ok bool) {
	if !ok {
		fmt.Println("(nil)")
		return
	}
	fmt.Printf("%q\n", v)
}

func parseInt(name, s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return i, nil
}

// parseTimeout parses a timeout in (fractional) seconds
func parseTimeout(s string) (time.Duration, error) {
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("timeout must be a number of seconds: %w", err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}
