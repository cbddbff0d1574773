package list

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dList/cmd/util"
	"github.com/ValentinKolb/dList/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dList servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfValue            = []byte("test")
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfTest is a single benchmark of the perf command
type perfTest struct {
	name string
	run  func(b *testing.B, timer gometrics.Timer)
}

// perfResult is the outcome of a perfTest
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. rpush,lpop)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the rpush-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dList servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]perfResult)
	var order []string

	for _, test := range perfTests() {
		order = append(order, test.name)
		if slices.Contains(perfSkip, test.name) {
			results[test.name] = perfResult{}
			printResult(test.name, perfResult{})
			continue
		}

		// testing.Benchmark runs the function with growing b.N, only the latencies of the last run are kept
		var timer gometrics.Timer
		bench := testing.Benchmark(func(b *testing.B) {
			timer = gometrics.NewTimer()
			test.run(b, timer)
		})
		result := perfResult{bench: bench, latency: timer.Snapshot()}
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// perfTests returns all benchmarks in the order they are run
func perfTests() []perfTest {
	return []perfTest{
		{name: "rpush", run: func(b *testing.B, timer gometrics.Timer) {
			getKey, cleanup := getKeys("rpush", perfValue)
			b.Cleanup(cleanup)
			parallel(b, func(counter int) error {
				_, err := timed(timer, func() (int, error) { return rpcStore.PushTail(getKey(counter), perfValue) })
				return err
			})
		}},
		{name: "rpush-large", run: func(b *testing.B, timer gometrics.Timer) {
			largeValue := make([]byte, perfLargeValueSizeKB*1024)
			getKey, cleanup := getKeys("rpush-large", largeValue)
			b.Cleanup(cleanup)
			parallel(b, func(counter int) error {
				_, err := timed(timer, func() (int, error) { return rpcStore.PushTail(getKey(counter), largeValue) })
				return err
			})
		}},
		{name: "lpop", run: func(b *testing.B, timer gometrics.Timer) {
			getKey, cleanup := getKeys("lpop", perfValue)
			b.Cleanup(cleanup)
			fill(getKey, b.N)
			parallel(b, func(counter int) error {
				_, err := timed(timer, func() (bool, error) {
					_, ok, err := rpcStore.PopHead(getKey(counter))
					return ok, err
				})
				return err
			})
		}},
		{name: "lrange", run: func(b *testing.B, timer gometrics.Timer) {
			getKey, cleanup := getKeys("lrange", perfValue)
			b.Cleanup(cleanup)
			fill(getKey, 10*perfKeySpread)
			parallel(b, func(counter int) error {
				_, err := timed(timer, func() ([][]byte, error) { return rpcStore.Range(getKey(counter), 0, -1) })
				return err
			})
		}},
		{name: "rpoplpush", run: func(b *testing.B, timer gometrics.Timer) {
			getKey, cleanup := getKeys("rpoplpush", perfValue)
			b.Cleanup(cleanup)
			fill(getKey, perfKeySpread)
			parallel(b, func(counter int) error {
				_, err := timed(timer, func() (bool, error) {
					_, ok, err := rpcStore.MoveTailToHead(getKey(counter), getKey(counter+1))
					return ok, err
				})
				return err
			})
		}},
		{name: "blpop", run: func(b *testing.B, timer gometrics.Timer) {
			// push followed by a blocking pop of the same key
			getKey, cleanup := getKeys("blpop", perfValue)
			b.Cleanup(cleanup)
			parallel(b, func(counter int) error {
				key := getKey(counter)
				if _, err := rpcStore.PushTail(key, perfValue); err != nil {
					return err
				}
				_, err := timed(timer, func() (bool, error) {
					_, _, ok, err := rpcStore.BlockingPopHead(context.Background(), []string{key}, time.Second)
					return ok, err
				})
				return err
			})
		}},
		{name: "mixed", run: func(b *testing.B, timer gometrics.Timer) {
			getKey, cleanup := getKeys("mixed", perfValue)
			b.Cleanup(cleanup)
			parallel(b, func(counter int) error {
				key := getKey(counter)
				_, err := timed(timer, func() (any, error) {
					switch counter % 4 {
					case 0:
						return rpcStore.PushHead(key, perfValue)
					case 1:
						return rpcStore.Length(key)
					case 2:
						return rpcStore.Range(key, 0, 10)
					default:
						_, _, err := rpcStore.PopTail(key)
						return nil, err
					}
				})
				return err
			})
		}},
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parallel runs op with perfNumThreads goroutines per CPU and logs failed operations
func parallel(b *testing.B, op func(counter int) error) {
	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := op(counter); err != nil {
				log.Printf("(%s) - operation failed: %v\n", b.Name(), err)
			}
			counter++
		}
	})
}

// timed records the latency of fn in timer
func timed[T any](timer gometrics.Timer, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	timer.UpdateSince(start)
	return v, err
}

// fill pushes n elements spread over all test keys
func fill(getKey func(int) string, n int) {
	for i := 0; i < n; i++ {
		if _, err := rpcStore.PushTail(getKey(i), perfValue); err != nil {
			log.Printf("error filling key: %v\n", err)
			return
		}
	}
}

// getKeys creates the test keys of a benchmark, it returns a function to get a key
// by index (with wraparound) and a function that removes all elements equal to value
func getKeys(prefix string, value []byte) (func(int) string, func()) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// a list is deleted once its last element is removed
	cleanup := func() {
		for _, key := range keys {
			if _, err := rpcStore.RemoveMatching(key, value, 0); err != nil {
				log.Printf("(%s) - error cleaning up key: %v\n", prefix, err)
			}
		}
	}

	return getKey, cleanup
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	p := result.latency.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, time.Duration(p[0]), time.Duration(p[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		result := results[test]

		var nsPerOp, opsPerSec, p50, p99 float64
		skipped := "true"
		if result.bench.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			p := result.latency.Percentiles([]float64{0.5, 0.99})
			p50, p99 = p[0], p[1]
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", p50),
			fmt.Sprintf("%.0f", p99),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
