// Command rvjit runs a flat RV64 binary under the JIT. The image is
// loaded at the start of guest RAM and executed until the guest calls
// exit, hits a fault, or the run is cancelled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/rvjit"
)

// fileConfig is the optional YAML config, overridden by flags.
type fileConfig struct {
	MemoryMB      uint64 `yaml:"memory_mb"`
	CodeBufferMB  int    `yaml:"code_buffer_mb"`
	MaxBlocks     int    `yaml:"max_blocks"`
	MaxBlockInsns int    `yaml:"max_block_insns"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Linux riscv64 syscall numbers the runner services.
const (
	sysRead  = 63
	sysWrite = 64
	sysExit  = 93
)

type runner struct {
	exitCode int
}

// handleSyscall services the guest's ECALL. The RISC-V convention puts
// the syscall number in a7 (x17) and arguments in a0-a2 (x10-x12);
// results go back in a0.
func (r *runner) handleSyscall(st *rvjit.State, mem *rvjit.Memory) error {
	nr := st.ReadReg(17)
	a0 := st.ReadReg(10)
	a1 := st.ReadReg(11)
	a2 := st.ReadReg(12)

	switch nr {
	case sysWrite:
		buf := make([]byte, a2)
		if err := mem.ReadBytes(a1, buf); err != nil {
			st.WriteReg(10, ^uint64(0))
			return nil
		}
		n, err := os.Stdout.Write(buf)
		if err != nil {
			st.WriteReg(10, ^uint64(0))
			return nil
		}
		st.WriteReg(10, uint64(n))

	case sysRead:
		buf := make([]byte, a2)
		n, err := os.Stdin.Read(buf)
		if err != nil && n == 0 {
			st.WriteReg(10, ^uint64(0))
			return nil
		}
		if err := mem.WriteBytes(a1, buf[:n]); err != nil {
			st.WriteReg(10, ^uint64(0))
			return nil
		}
		st.WriteReg(10, uint64(n))

	case sysExit:
		r.exitCode = int(a0)
		return rvjit.ErrHalt

	default:
		slog.Warn("unhandled syscall", "nr", nr, "pc", fmt.Sprintf("%#x", st.PC))
		st.WriteReg(10, ^uint64(0))
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rvjit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	memoryMB := flag.Uint64("memory", 0, "Guest RAM in MB (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showStats := flag.Bool("stats", false, "Print JIT counters on exit")
	rawTTY := flag.Bool("raw", false, "Put the terminal in raw mode while the guest runs")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image.bin>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run a flat RV64 binary, loaded at %#x.\n\n", rvjit.RAMBase)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("image file required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *memoryMB != 0 {
		cfg.MemoryMB = *memoryMB
	}

	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	r := &runner{}
	eng, err := rvjit.New(rvjit.Config{
		MemorySize:     cfg.MemoryMB << 20,
		CodeBufferSize: cfg.CodeBufferMB << 20,
		MaxBlocks:      cfg.MaxBlocks,
		MaxBlockInsns:  cfg.MaxBlockInsns,
		SyscallHandler: r.handleSyscall,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.LoadImage(image, rvjit.RAMBase); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *rawTTY && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	reason, err := eng.Run(ctx)

	if *showStats {
		s := eng.Stats()
		slog.Info("jit counters",
			"blocks", s.Blocks,
			"compiled", s.BlocksCompiled,
			"runs", s.BlockRuns,
			"hits", s.CacheHits,
			"misses", s.CacheMisses,
			"fallbacks", s.Fallbacks,
			"fixups_applied", s.FixupsApplied,
			"fixups_pending", s.FixupsPending,
			"tlb_refills", s.TLBRefills)
	}

	switch {
	case errors.Is(err, rvjit.ErrHalt):
		if r.exitCode != 0 {
			os.Exit(r.exitCode)
		}
		return nil
	case err != nil:
		return err
	}

	return fmt.Errorf("guest stopped: %v", reason)
}
