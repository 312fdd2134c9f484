// Command coreledgerd runs a full ledger node: chain storage, p2p
// gossip, RPC, and optionally the miner.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreledger/coreledger/config"
	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/internal/node"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "coreledgerd:", err)
		os.Exit(1)
	}
}

func run() error {
	// Peek at -network and -datadir first so the right config file is
	// loaded before the real flag pass overrides it.
	peekCfg := config.Default(config.Mainnet)
	peek := flag.NewFlagSet("peek", flag.ContinueOnError)
	peek.SetOutput(nopWriter{})
	peek.Usage = func() {}
	config.RegisterFlags(peek, peekCfg)
	_ = peek.Parse(os.Args[1:])

	cfg := config.Default(peekCfg.Network)
	cfg.DataDir = peekCfg.DataDir
	if err := config.LoadFile(cfg.ConfigFile(), cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("coreledgerd", flag.ExitOnError)
	config.RegisterFlags(fs, cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logFile := cfg.Log.File
	if logFile != "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		n.Stop()
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	klog.Node.Info().Str("signal", s.String()).Msg("Shutting down")

	n.Stop()
	return nil
}

// nopWriter silences the peek flag pass.
type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
