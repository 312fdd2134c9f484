package wallet

import (
	"testing"

	"github.com/tyler-smith/go-bip32"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	return seed
}

func TestNewMasterKey(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	if !master.IsPrivate() {
		t.Error("master key should be private")
	}
	if master.Depth() != 0 {
		t.Errorf("master depth = %d, want 0", master.Depth())
	}
}

func TestNewMasterKey_BadSeedLength(t *testing.T) {
	if _, err := NewMasterKey([]byte("short")); err == nil {
		t.Fatal("short seed should be rejected")
	}
}

func TestDeriveAccount_Deterministic(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}

	a, err := master.DeriveAccount(0, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DeriveAccount: %v", err)
	}
	b, err := master.DeriveAccount(0, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DeriveAccount: %v", err)
	}

	addrA, err := a.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	addrB, err := b.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addrA != addrB {
		t.Error("same path must derive the same address")
	}
}

func TestDeriveAccount_DistinctPaths(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}

	a, _ := master.DeriveAccount(0, ChangeExternal, 0)
	b, _ := master.DeriveAccount(0, ChangeExternal, 1)
	c, _ := master.DeriveAccount(1, ChangeExternal, 0)

	addrA, _ := a.Address()
	addrB, _ := b.Address()
	addrC, _ := c.Address()
	if addrA == addrB || addrA == addrC || addrB == addrC {
		t.Error("distinct paths must derive distinct addresses")
	}
}

func TestSigner_SignsVerifiably(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	child, err := master.DeriveAccount(0, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DeriveAccount: %v", err)
	}
	signer, err := child.Signer()
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}

	content := []byte("derived key signing test")
	sig, err := signer.Sign(content)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	addr, err := child.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if string(addr) != signer.PublicKeyHex() {
		t.Error("address should be the signer's SPKI hex")
	}
	if !verify(signer.PublicKeyHex(), content, sig) {
		t.Error("signature should verify against the derived address")
	}
}

func TestHardenedDerivation(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	hardened, err := master.DeriveChild(bip32.FirstHardenedChild)
	if err != nil {
		t.Fatalf("hardened DeriveChild: %v", err)
	}
	if hardened.Depth() != 1 {
		t.Errorf("depth = %d, want 1", hardened.Depth())
	}
}
