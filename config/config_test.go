package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	main := Default(Mainnet)
	test := Default(Testnet)

	if main.Network != Mainnet || test.Network != Testnet {
		t.Fatal("Default should set the network")
	}
	if main.P2P.Port == test.P2P.Port {
		t.Error("mainnet and testnet should use different p2p ports")
	}
	if err := main.Validate(); err != nil {
		t.Errorf("mainnet defaults should validate: %v", err)
	}
	if err := test.Validate(); err != nil {
		t.Errorf("testnet defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.conf")
	content := `# node settings
network = testnet
p2p.port = 4100
p2p.seeds = /ip4/10.0.0.1/tcp/4100/p2p/x, /ip4/10.0.0.2/tcp/4100/p2p/y
mining.enabled = true
mining.rewardaddress = deadbeef
log.level = debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg := Default(Mainnet)
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Network != Testnet {
		t.Error("network not applied")
	}
	if cfg.P2P.Port != 4100 {
		t.Errorf("p2p.port = %d, want 4100", cfg.P2P.Port)
	}
	if len(cfg.P2P.Seeds) != 2 {
		t.Errorf("seeds = %v, want 2 entries", cfg.P2P.Seeds)
	}
	if !cfg.Mining.Enabled || cfg.Mining.RewardAddress != "deadbeef" {
		t.Error("mining settings not applied")
	}
	if cfg.Log.Level != "debug" {
		t.Error("log level not applied")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := Default(Mainnet)
	if err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"), cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.conf")
	if err := os.WriteFile(path, []byte("no.such.key = 1\n"), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	if err := LoadFile(path, Default(Mainnet)); err == nil {
		t.Fatal("unknown key should be an error")
	}
}

func TestRegisterFlags(t *testing.T) {
	cfg := Default(Mainnet)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, cfg)

	err := fs.Parse([]string{
		"-network", "testnet",
		"-p2p-port", "4200",
		"-seed", "/ip4/10.0.0.1/tcp/4200/p2p/a",
		"-seed", "/ip4/10.0.0.2/tcp/4200/p2p/b,/ip4/10.0.0.3/tcp/4200/p2p/c",
		"-mine",
		"-reward-address", "cafe",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Network != Testnet {
		t.Error("network flag not applied")
	}
	if cfg.P2P.Port != 4200 {
		t.Errorf("p2p port = %d, want 4200", cfg.P2P.Port)
	}
	if len(cfg.P2P.Seeds) != 3 {
		t.Errorf("seeds = %v, want 3", cfg.P2P.Seeds)
	}
	if !cfg.Mining.Enabled || cfg.Mining.RewardAddress != "cafe" {
		t.Error("mining flags not applied")
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad p2p port", func(c *Config) { c.P2P.Port = 0 }},
		{"bad rpc addr", func(c *Config) { c.RPC.Addr = "nonsense" }},
		{"mining without address", func(c *Config) { c.Mining.Enabled = true }},
		{"difficulty override on mainnet", func(c *Config) { c.Mining.TestDifficulty = 1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		cfg := Default(Mainnet)
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate should fail", tt.name)
		}
	}
}

func TestValidate_TestnetDifficultyOverride(t *testing.T) {
	cfg := Default(Testnet)
	cfg.Mining.TestDifficulty = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("testnet difficulty override should validate: %v", err)
	}
}
