package node

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreledger/coreledger/config"
	"github.com/coreledger/coreledger/pkg/types"
)

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// resolveRewardAddress decides where coinbase rewards go. Mining
// requires an explicit, well-formed address; a non-mining node may
// leave it empty.
func resolveRewardAddress(cfg *config.Config) (types.Address, error) {
	addr := types.Address(strings.TrimSpace(cfg.Mining.RewardAddress))
	if addr == "" {
		if cfg.Mining.Enabled {
			return "", fmt.Errorf("mining enabled but no reward address configured")
		}
		return "", nil
	}
	if err := validateAddress(addr); err != nil {
		return "", fmt.Errorf("reward address: %w", err)
	}
	return addr, nil
}

// validateAddress checks that addr is a hex-encoded SPKI P-256 public
// key. The sentinel system address is not a spendable destination and
// is rejected.
func validateAddress(addr types.Address) error {
	if addr.IsSystem() {
		return fmt.Errorf("the system address cannot receive rewards")
	}
	der, err := hex.DecodeString(string(addr))
	if err != nil {
		return fmt.Errorf("not hex: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return fmt.Errorf("not an SPKI public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return fmt.Errorf("not a P-256 key")
	}
	return nil
}
