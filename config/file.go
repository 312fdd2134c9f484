package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile applies settings from a simple key=value config file onto
// cfg. Lines starting with '#' or ';' are comments; unknown keys are an
// error so typos do not silently do nothing. A missing file is not an
// error — defaults apply.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("%s:%d: expected key=value", path, lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := applySetting(cfg, key, value); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}

// applySetting maps one key=value pair onto cfg.
func applySetting(cfg *Config, key, value string) error {
	switch key {
	case "network":
		switch NetworkType(value) {
		case Mainnet, Testnet:
			cfg.Network = NetworkType(value)
		default:
			return fmt.Errorf("unknown network %q", value)
		}
	case "datadir":
		cfg.DataDir = value

	case "p2p.enabled":
		return parseBool(value, &cfg.P2P.Enabled)
	case "p2p.listen":
		cfg.P2P.ListenAddr = value
	case "p2p.port":
		return parseInt(value, &cfg.P2P.Port)
	case "p2p.seeds":
		cfg.P2P.Seeds = splitList(value)
	case "p2p.maxpeers":
		return parseInt(value, &cfg.P2P.MaxPeers)
	case "p2p.nodiscover":
		return parseBool(value, &cfg.P2P.NoDiscover)
	case "p2p.dhtserver":
		return parseBool(value, &cfg.P2P.DHTServer)

	case "rpc.enabled":
		return parseBool(value, &cfg.RPC.Enabled)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		return parseInt(value, &cfg.RPC.Port)
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = splitList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = splitList(value)

	case "wallet.enabled":
		return parseBool(value, &cfg.Wallet.Enabled)

	case "mining.enabled":
		return parseBool(value, &cfg.Mining.Enabled)
	case "mining.rewardaddress":
		cfg.Mining.RewardAddress = value
	case "mining.testdifficulty":
		return parseInt(value, &cfg.Mining.TestDifficulty)

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		return parseBool(value, &cfg.Log.JSON)

	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func parseBool(value string, target *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected true/false, got %q", value)
	}
	*target = b
	return nil
}

func parseInt(value string, target *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("expected integer, got %q", value)
	}
	*target = n
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
