package config

import (
	"flag"
	"strings"
)

// stringList is a repeatable/comma-separated flag value.
type stringList struct {
	values *[]string
}

func (s stringList) String() string {
	if s.values == nil {
		return ""
	}
	return strings.Join(*s.values, ",")
}

func (s stringList) Set(value string) error {
	*s.values = append(*s.values, splitList(value)...)
	return nil
}

// RegisterFlags binds command-line flags onto cfg. Flag defaults are
// cfg's current values, so the precedence is defaults < config file <
// flags when the file is loaded before flag.Parse.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Func("network", "network to join (mainnet or testnet)", func(value string) error {
		return applySetting(cfg, "network", value)
	})

	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory")

	fs.BoolVar(&cfg.P2P.Enabled, "p2p", cfg.P2P.Enabled, "enable peer-to-peer networking")
	fs.StringVar(&cfg.P2P.ListenAddr, "p2p-listen", cfg.P2P.ListenAddr, "p2p listen address")
	fs.IntVar(&cfg.P2P.Port, "p2p-port", cfg.P2P.Port, "p2p listen port")
	fs.Var(stringList{&cfg.P2P.Seeds}, "seed", "seed peer multiaddr (repeatable or comma-separated)")
	fs.IntVar(&cfg.P2P.MaxPeers, "max-peers", cfg.P2P.MaxPeers, "maximum peer connections")
	fs.BoolVar(&cfg.P2P.NoDiscover, "no-discover", cfg.P2P.NoDiscover, "disable mDNS/DHT peer discovery")
	fs.BoolVar(&cfg.P2P.DHTServer, "dht-server", cfg.P2P.DHTServer, "run the DHT in server mode")

	fs.BoolVar(&cfg.RPC.Enabled, "rpc", cfg.RPC.Enabled, "enable the RPC server")
	fs.StringVar(&cfg.RPC.Addr, "rpc-addr", cfg.RPC.Addr, "RPC listen address")
	fs.IntVar(&cfg.RPC.Port, "rpc-port", cfg.RPC.Port, "RPC listen port")
	fs.Var(stringList{&cfg.RPC.AllowedIPs}, "rpc-allow", "allowed RPC caller IP or CIDR (repeatable)")
	fs.Var(stringList{&cfg.RPC.CORSOrigins}, "rpc-cors", "allowed CORS origin (repeatable, * for all)")

	fs.BoolVar(&cfg.Wallet.Enabled, "wallet", cfg.Wallet.Enabled, "enable the wallet surface")

	fs.BoolVar(&cfg.Mining.Enabled, "mine", cfg.Mining.Enabled, "mine continuously")
	fs.StringVar(&cfg.Mining.RewardAddress, "reward-address", cfg.Mining.RewardAddress, "address credited by mined coinbases")
	fs.IntVar(&cfg.Mining.TestDifficulty, "test-difficulty", cfg.Mining.TestDifficulty, "difficulty override (testnet only)")

	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "log file path (JSON, in addition to console)")
	fs.BoolVar(&cfg.Log.JSON, "log-json", cfg.Log.JSON, "emit JSON logs on the console")
}
