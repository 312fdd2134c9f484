package wallet

import (
	"testing"

	"github.com/coreledger/coreledger/pkg/crypto"
)

// verify is a test shorthand over the crypto package's verifier.
func verify(publicKeyHex string, content, sig []byte) bool {
	return crypto.VerifySignature(publicKeyHex, content, sig)
}

func TestKeystore_CreateUnlock(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}

	mnemonic, addr, err := ks.Create("main", []byte("hunter2"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ValidateMnemonic(mnemonic) {
		t.Error("Create should return a valid mnemonic")
	}
	if addr == "" {
		t.Error("Create should return the first address")
	}
	if !ks.Exists("main") {
		t.Error("wallet file should exist after Create")
	}

	w, err := ks.Unlock("main", []byte("hunter2"))
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, err := w.DefaultAddress()
	if err != nil {
		t.Fatalf("DefaultAddress: %v", err)
	}
	if got != addr {
		t.Errorf("unlocked address = %.16s..., want %.16s...", got, addr)
	}
}

func TestKeystore_UnlockWrongPassword(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	if _, _, err := ks.Create("main", []byte("correct")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ks.Unlock("main", []byte("wrong")); err == nil {
		t.Fatal("wrong password should fail to unlock")
	}
}

func TestKeystore_RestoreRecoversAddress(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	ksA, err := NewKeystore(dirA)
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	mnemonic, addrA, err := ksA.Create("main", []byte("pw"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ksB, err := NewKeystore(dirB)
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	addrB, err := ksB.Restore("restored", mnemonic, []byte("other-pw"))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if addrA != addrB {
		t.Error("restoring the mnemonic must recover the same address")
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	if _, _, err := ks.Create("main", []byte("pw")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := ks.Create("main", []byte("pw")); err == nil {
		t.Fatal("duplicate wallet name should be rejected")
	}
}

func TestKeystore_NewAddress(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	_, first, err := ks.Create("main", []byte("pw"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	second, err := ks.NewAddress("main", []byte("pw"))
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if second == first {
		t.Error("NewAddress should derive a fresh address")
	}

	accounts, err := ks.Accounts("main")
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(accounts))
	}
	if accounts[1].Index != 1 {
		t.Errorf("second account index = %d, want 1", accounts[1].Index)
	}
}

func TestWallet_SignerForAddress(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	_, addr, err := ks.Create("main", []byte("pw"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w, err := ks.Unlock("main", []byte("pw"))
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	signer, err := w.SignerForAddress(addr)
	if err != nil {
		t.Fatalf("SignerForAddress: %v", err)
	}
	if signer.Address() != addr {
		t.Error("signer's address should match the account address")
	}

	if _, err := w.SignerForAddress("unknown-address"); err == nil {
		t.Error("unknown address should fail")
	}
}

func TestKeystore_List(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	for _, name := range []string{"alpha", "beta"} {
		if _, _, err := ks.Create(name, []byte("pw")); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List = %v, want 2 wallets", names)
	}
}
