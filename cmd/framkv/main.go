package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/FramKV/framkv/pkg/common/log"
	"github.com/FramKV/framkv/pkg/config"
	"github.com/FramKV/framkv/pkg/device"
	"github.com/FramKV/framkv/pkg/image"
	"github.com/FramKV/framkv/pkg/prefs"
	"github.com/FramKV/framkv/pkg/server"
	"github.com/FramKV/framkv/pkg/store"
	"github.com/FramKV/framkv/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".stats"),
	readline.PcItem(".blocks"),
	readline.PcItem(".snapshot"),
	readline.PcItem(".restore"),
	readline.PcItem(".clear"),
	readline.PcItem(".exit"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("DELETE"),
	readline.PcItem("HAS"),
)

const helpText = `
FramKV (framkv) - wear-leveled key-value storage for I2C FRAM/EEPROM.

Usage:
  framkv [options]

Options:
  -image string           - Back the store with an image file (default "framkv.img")
  -i2c string             - Use a real part on the named I2C bus instead of an image
  -config string          - Load device/layout configuration from a JSON file
  -memory string          - Memory type: eeprom or fram (default "eeprom")
  -bits uint              - Device capacity in bits (default 32768)
  -block uint             - Block size in bytes (default 256)
  -server                 - Run in server mode, exposing an HTTP API
  -address string         - Address to listen on in server mode (default "localhost:8085")
  -telemetry              - Enable OpenTelemetry export (see FRAMKV_TELEMETRY_* env)

Commands (interactive mode only):
  .help                   - Show this help message
  .stats                  - Show engine statistics
  .blocks                 - Show the per-block state map
  .snapshot PATH [CODEC]  - Dump the device to a compressed snapshot (none/snappy/zstd)
  .restore PATH           - Load a snapshot back onto the device
  .clear                  - Erase every stored key
  .exit                   - Exit the program

  PUT key value [type]    - Store a value (types: string, bytes, bool, int32, int64, float64)
  GET key                 - Retrieve a value by key
  DELETE key              - Delete a key
  HAS key                 - Check whether a key exists
`

func main() {
	imagePath := flag.String("image", "framkv.img", "image file backing the device")
	i2cBus := flag.String("i2c", "", "I2C bus name for a real part")
	configPath := flag.String("config", "", "JSON configuration file")
	memoryType := flag.String("memory", "eeprom", "memory type: eeprom or fram")
	bits := flag.Uint("bits", 32*1024, "device capacity in bits")
	blockSize := flag.Uint("block", 256, "block size in bytes")
	serverMode := flag.Bool("server", false, "run in server mode")
	address := flag.String("address", "localhost:8085", "server listen address")
	enableTelemetry := flag.Bool("telemetry", false, "enable OpenTelemetry export")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := log.NewStandardLogger()
	if *verbose {
		logger.SetLevel(log.LevelDebug)
	}

	cfg, err := buildConfig(*configPath, *memoryType, *bits, *blockSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in configuration: %s\n", err)
		os.Exit(1)
	}

	dev, err := openDevice(*i2cBus, *imagePath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening device: %s\n", err)
		os.Exit(1)
	}

	tel, err := buildTelemetry(*enableTelemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up telemetry: %s\n", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	p, err := prefs.Open(cfg, dev,
		store.WithLogger(logger),
		store.WithTelemetry(tel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %s\n", err)
		os.Exit(1)
	}
	defer p.Close()

	if *serverMode {
		runServer(p.Store(), *address, logger)
		return
	}

	runInteractive(p, dev)
}

func buildConfig(configPath, memoryType string, bits, blockSize uint) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFromFile(configPath)
	}

	cfg := config.NewDefaultConfig()
	mt, err := config.ParseMemoryType(memoryType)
	if err != nil {
		return nil, err
	}
	cfg.MemoryType = mt
	cfg.TotalMemoryBits = uint32(bits)
	cfg.BlockSizeBytes = uint16(blockSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDevice(i2cBus, imagePath string, cfg *config.Config) (device.Device, error) {
	if i2cBus != "" {
		return device.OpenI2CDevice(i2cBus, cfg)
	}
	return device.OpenFileDevice(imagePath, cfg.TotalMemoryBytes())
}

func buildTelemetry(enabled bool) (telemetry.Telemetry, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.LoadFromEnv()
	if enabled {
		tcfg.Enabled = true
	}
	return telemetry.New(tcfg)
}

func runServer(s *store.Store, address string, logger log.Logger) {
	srv := server.NewServer(address, s, logger)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed: %s", err)
		}
	}()

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %s\n", err)
		os.Exit(1)
	}
}

func runInteractive(p *prefs.Prefs, dev device.Device) {
	fmt.Println("FramKV (framkv) version 1.0.0")
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".framkv_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "framkv> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			if handleDotCommand(strings.ToLower(cmd), parts, p, dev) {
				return
			}
			continue
		}

		switch cmd {
		case "PUT":
			handlePut(p, parts)
		case "GET":
			handleGet(p, parts)
		case "DELETE":
			handleDelete(p, parts)
		case "HAS":
			handleHas(p, parts)
		default:
			fmt.Printf("Unknown command: %s (try .help)\n", parts[0])
		}
	}
}

// handleDotCommand returns true when the REPL should exit.
func handleDotCommand(cmd string, parts []string, p *prefs.Prefs, dev device.Device) bool {
	switch cmd {
	case ".help":
		fmt.Print(helpText)

	case ".exit":
		fmt.Println("Goodbye!")
		return true

	case ".stats":
		printStats(p.Store().Stats())

	case ".blocks":
		printBlocks(p.Store())

	case ".clear":
		if err := p.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing store: %s\n", err)
		} else {
			fmt.Println("Store cleared")
		}

	case ".snapshot":
		if len(parts) < 2 {
			fmt.Println("Error: Missing path argument")
			return false
		}
		codec := image.CodecZstd
		if len(parts) >= 3 {
			parsed, err := image.ParseCodec(parts[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return false
			}
			codec = parsed
		}
		if err := image.WriteSnapshot(parts[1], dev, codec); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing snapshot: %s\n", err)
		} else {
			fmt.Printf("Snapshot written to %s (%s)\n", parts[1], codec)
		}

	case ".restore":
		if len(parts) < 2 {
			fmt.Println("Error: Missing path argument")
			return false
		}
		if err := image.RestoreSnapshot(parts[1], dev); err != nil {
			fmt.Fprintf(os.Stderr, "Error restoring snapshot: %s\n", err)
			return false
		}
		// Re-run recovery so the engine picks up the restored contents
		if err := p.Store().Begin(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reopening store: %s\n", err)
			return false
		}
		fmt.Printf("Snapshot %s restored\n", parts[1])

	default:
		fmt.Printf("Unknown command: %s (try .help)\n", cmd)
	}
	return false
}

func handlePut(p *prefs.Prefs, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: PUT key value [type]")
		return
	}
	key, value := parts[1], parts[2]

	valueType := "string"
	if len(parts) >= 4 {
		valueType = strings.ToLower(parts[3])
	}

	var err error
	switch valueType {
	case "string":
		err = p.PutString(key, value)
	case "bytes":
		err = p.PutBytes(key, []byte(value))
	case "bool":
		var b bool
		if b, err = strconv.ParseBool(value); err == nil {
			err = p.PutBool(key, b)
		}
	case "int32":
		var n int64
		if n, err = strconv.ParseInt(value, 10, 32); err == nil {
			err = p.PutInt32(key, int32(n))
		}
	case "int64":
		var n int64
		if n, err = strconv.ParseInt(value, 10, 64); err == nil {
			err = p.PutInt64(key, n)
		}
	case "float64":
		var f float64
		if f, err = strconv.ParseFloat(value, 64); err == nil {
			err = p.PutFloat64(key, f)
		}
	default:
		fmt.Printf("Unknown type %q\n", valueType)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	fmt.Println("OK")
}

func handleGet(p *prefs.Prefs, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: GET key")
		return
	}

	value, dataType, err := p.Store().Get([]byte(parts[1]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	fmt.Printf("%s (%s)\n", renderValue(value, dataType), prefs.TypeName(dataType))
}

func handleDelete(p *prefs.Prefs, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: DELETE key")
		return
	}

	removed, err := p.Remove(parts[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	if !removed {
		fmt.Println("Key not found")
		return
	}
	fmt.Println("OK")
}

func handleHas(p *prefs.Prefs, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: HAS key")
		return
	}

	exists, err := p.Has(parts[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	fmt.Println(exists)
}

// renderValue decodes a stored value for display by its type tag.
func renderValue(value []byte, dataType uint8) string {
	switch dataType {
	case prefs.TypeBool:
		if len(value) == 1 {
			return strconv.FormatBool(value[0] != 0)
		}
	case prefs.TypeChar:
		if len(value) == 1 {
			return strconv.FormatInt(int64(int8(value[0])), 10)
		}
	case prefs.TypeUChar:
		if len(value) == 1 {
			return strconv.FormatUint(uint64(value[0]), 10)
		}
	case prefs.TypeShort:
		if len(value) == 2 {
			return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(value))), 10)
		}
	case prefs.TypeUShort:
		if len(value) == 2 {
			return strconv.FormatUint(uint64(binary.LittleEndian.Uint16(value)), 10)
		}
	case prefs.TypeInt, prefs.TypeLong:
		if len(value) == 4 {
			return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(value))), 10)
		}
	case prefs.TypeUInt, prefs.TypeULong:
		if len(value) == 4 {
			return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(value)), 10)
		}
	case prefs.TypeLong64:
		if len(value) == 8 {
			return strconv.FormatInt(int64(binary.LittleEndian.Uint64(value)), 10)
		}
	case prefs.TypeULong64:
		if len(value) == 8 {
			return strconv.FormatUint(binary.LittleEndian.Uint64(value), 10)
		}
	case prefs.TypeFloat:
		if len(value) == 4 {
			return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(value))), 'g', -1, 32)
		}
	case prefs.TypeDouble:
		if len(value) == 8 {
			return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(value)), 'g', -1, 64)
		}
	case prefs.TypeString:
		if len(value) > 0 && value[len(value)-1] == 0 {
			value = value[:len(value)-1]
		}
		return string(value)
	}
	return fmt.Sprintf("% 02x", value)
}

func printStats(stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-28s %v\n", k, stats[k])
	}
}

func printBlocks(s *store.Store) {
	infos, err := s.BlockInfos()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	fmt.Printf("%-6s %-8s %-8s %-6s %-6s %-6s\n", "BLOCK", "STATUS", "OFFSET", "LIVE", "DEAD", "FREE")
	for _, info := range infos {
		marker := " "
		if info.Active {
			marker = "*"
		}
		fmt.Printf("%-6s %-8s %-8d %-6d %-6d %-6d\n",
			fmt.Sprintf("%s%d", marker, info.Index),
			info.Status, info.CurrentOffset, info.LiveEntries, info.DeadEntries, info.FreeBytes)
	}
}
