// framkv-bench drives a randomized put/get/delete workload against the
// storage engine and reports throughput, garbage-collection activity and the
// wear distribution across blocks. Values are derived from xxhash digests of
// the key and write sequence, so every read can be verified byte-for-byte.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/FramKV/framkv/pkg/common/log"
	"github.com/FramKV/framkv/pkg/config"
	"github.com/FramKV/framkv/pkg/device"
	"github.com/FramKV/framkv/pkg/store"
)

const benchDataType = uint8(15)

type benchStats struct {
	puts      uint64
	gets      uint64
	deletes   uint64
	misses    uint64
	verifyErr uint64
	storeFull uint64
}

func main() {
	ops := flag.Int("ops", 10000, "number of operations to run")
	keyCount := flag.Int("keys", 8, "size of the key working set")
	valueSize := flag.Int("value-size", 16, "value size in bytes")
	seed := flag.Int64("seed", 1, "workload random seed")
	memoryBits := flag.Uint("bits", 32*1024, "device capacity in bits")
	blockSize := flag.Uint("block", 256, "block size in bytes")
	imagePath := flag.String("image", "", "optional image file (default: in-RAM device)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := log.NewStandardLogger()
	if !*verbose {
		logger.SetLevel(log.LevelError)
	}

	cfg := config.NewDefaultConfig()
	cfg.MemoryType = config.MemoryFRAM
	cfg.TotalMemoryBits = uint32(*memoryBits)
	cfg.BlockSizeBytes = uint16(*blockSize)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		os.Exit(1)
	}

	var dev device.Device
	var err error
	if *imagePath != "" {
		dev, err = device.OpenFileDevice(*imagePath, cfg.TotalMemoryBytes())
	} else {
		dev, err = device.NewMemDevice(cfg.TotalMemoryBytes())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open device: %s\n", err)
		os.Exit(1)
	}

	s, err := store.NewStore(cfg, dev, store.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %s\n", err)
		os.Exit(1)
	}
	if err := s.Begin(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to begin: %s\n", err)
		os.Exit(1)
	}
	defer s.End()

	fmt.Printf("framkv-bench: %d ops, %d keys, %d-byte values, %d blocks of %d bytes\n",
		*ops, *keyCount, *valueSize, s.TotalBlocks(), cfg.BlockSizeBytes)

	bench := run(s, *ops, *keyCount, *valueSize, *seed)
	report(s, bench)

	if bench.verifyErr > 0 {
		os.Exit(1)
	}
}

// benchValue derives a deterministic value for (key, sequence). The first
// eight bytes carry the xxhash digest the verifier recomputes.
func benchValue(key string, seq uint64, size int) []byte {
	if size < 8 {
		size = 8
	}
	value := make([]byte, size)
	digest := xxhash.Sum64String(fmt.Sprintf("%s#%d", key, seq))
	binary.LittleEndian.PutUint64(value[:8], digest)
	for i := 8; i < size; i++ {
		value[i] = byte(digest >> (uint(i) % 56))
	}
	return value
}

func run(s *store.Store, ops, keyCount, valueSize int, seed int64) *benchStats {
	rng := rand.New(rand.NewSource(seed))
	bench := &benchStats{}

	// Track the last written sequence per key so reads verify exactly
	lastSeq := make(map[string]uint64)
	seq := uint64(0)

	started := time.Now()
	for op := 0; op < ops; op++ {
		key := fmt.Sprintf("bench-%04d", rng.Intn(keyCount))

		switch r := rng.Intn(10); {
		case r < 6: // put
			seq++
			value := benchValue(key, seq, valueSize)
			err := s.WriteEntry([]byte(key), benchDataType, value)
			if errors.Is(err, store.ErrStoreFull) {
				bench.storeFull++
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "put %s failed: %s\n", key, err)
				bench.verifyErr++
				continue
			}
			lastSeq[key] = seq
			bench.puts++

		case r < 8: // get + verify
			value, _, err := s.Get([]byte(key))
			if errors.Is(err, store.ErrKeyNotFound) {
				if _, exists := lastSeq[key]; exists {
					fmt.Fprintf(os.Stderr, "lost key %s\n", key)
					bench.verifyErr++
				}
				bench.misses++
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "get %s failed: %s\n", key, err)
				bench.verifyErr++
				continue
			}
			want := benchValue(key, lastSeq[key], valueSize)
			if len(value) != len(want) || binary.LittleEndian.Uint64(value[:8]) != binary.LittleEndian.Uint64(want[:8]) {
				fmt.Fprintf(os.Stderr, "stale read on %s\n", key)
				bench.verifyErr++
				continue
			}
			bench.gets++

		default: // delete
			err := s.Delete([]byte(key))
			if err == nil {
				delete(lastSeq, key)
				bench.deletes++
			} else if errors.Is(err, store.ErrKeyNotFound) {
				bench.misses++
			} else {
				fmt.Fprintf(os.Stderr, "delete %s failed: %s\n", key, err)
				bench.verifyErr++
			}
		}
	}
	elapsed := time.Since(started)

	total := bench.puts + bench.gets + bench.deletes
	fmt.Printf("\n%d effective ops in %s (%.0f ops/sec)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	return bench
}

func report(s *store.Store, bench *benchStats) {
	fmt.Printf("puts: %d  gets: %d  deletes: %d  misses: %d  store-full: %d  verify-errors: %d\n",
		bench.puts, bench.gets, bench.deletes, bench.misses, bench.storeFull, bench.verifyErr)

	collector := s.Collector()
	fmt.Printf("gc passes: %d\n", collector.GCCount())

	profile := collector.WearProfile()
	if len(profile) == 0 {
		return
	}

	indexes := make([]int, 0, len(profile))
	for idx := range profile {
		indexes = append(indexes, int(idx))
	}
	sort.Ints(indexes)

	min, max := uint64(1)<<63, uint64(0)
	fmt.Println("wear profile (erases per block):")
	for _, idx := range indexes {
		n := profile[uint16(idx)]
		fmt.Printf("  block %2d: %d\n", idx, n)
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	if min > 0 {
		fmt.Printf("wear spread max/min: %.2f\n", float64(max)/float64(min))
	}
}
