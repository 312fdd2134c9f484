package config

import (
	"fmt"
	"net"
)

// Validate checks cfg for contradictions before the node starts.
func (c *Config) Validate() error {
	if c.Network != Mainnet && c.Network != Testnet {
		return fmt.Errorf("unknown network %q", c.Network)
	}

	if c.P2P.Enabled {
		if c.P2P.Port < 1 || c.P2P.Port > 65535 {
			return fmt.Errorf("p2p port %d out of range", c.P2P.Port)
		}
		if net.ParseIP(c.P2P.ListenAddr) == nil {
			return fmt.Errorf("p2p listen address %q is not an IP", c.P2P.ListenAddr)
		}
		if c.P2P.MaxPeers < 0 {
			return fmt.Errorf("max peers must be >= 0")
		}
	}

	if c.RPC.Enabled {
		if c.RPC.Port < 0 || c.RPC.Port > 65535 {
			return fmt.Errorf("rpc port %d out of range", c.RPC.Port)
		}
		if net.ParseIP(c.RPC.Addr) == nil {
			return fmt.Errorf("rpc address %q is not an IP", c.RPC.Addr)
		}
	}

	if c.Mining.Enabled && c.Mining.RewardAddress == "" {
		return fmt.Errorf("mining requires -reward-address")
	}

	if c.Mining.TestDifficulty != 0 {
		if c.Network != Testnet {
			return fmt.Errorf("difficulty override is testnet-only")
		}
		if c.Mining.TestDifficulty < 1 || c.Mining.TestDifficulty > 64 {
			return fmt.Errorf("test difficulty %d out of range", c.Mining.TestDifficulty)
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}
