package tx

import (
	"testing"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/types"
)

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func TestNew_SignedRoundTrip(t *testing.T) {
	key := mustKey(t)
	transaction, err := New(key, "bob", 10, 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !transaction.ValidateSignature() {
		t.Error("freshly signed transaction should validate")
	}
	if transaction.From != key.Address() {
		t.Errorf("From = %s, want %s", transaction.From, key.Address())
	}
}

func TestNew_RejectsNonPositiveAmount(t *testing.T) {
	key := mustKey(t)
	if _, err := New(key, "bob", 0, 1700000000); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := New(key, "bob", -5, 1700000000); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestValidateSignature_TamperedAmount(t *testing.T) {
	key := mustKey(t)
	transaction, err := New(key, "bob", 10, 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tampered := *transaction
	tampered.Amount = 999
	if tampered.ValidateSignature() {
		t.Error("tampered amount should fail signature validation")
	}
}

func TestValidateSignature_TamperedID(t *testing.T) {
	key := mustKey(t)
	transaction, err := New(key, "bob", 10, 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tampered := *transaction
	tampered.ID = types.Hash("0000000000000000000000000000000000000000000000000000000000000000")
	if tampered.ValidateSignature() {
		t.Error("tampered id should fail validation")
	}
}

func TestNewCoinbase_ValidatesWithoutSignature(t *testing.T) {
	coinbase := NewCoinbase("minerAddr", 50, 1700000000)
	if !coinbase.IsCoinbase() {
		t.Error("expected IsCoinbase() true")
	}
	if !coinbase.ValidateSignature() {
		t.Error("coinbase should validate without a signature")
	}
	if coinbase.Signature != nil {
		t.Error("coinbase signature should be nil")
	}
}

func TestComputeID_Deterministic(t *testing.T) {
	key := mustKey(t)
	a, err := New(key, "bob", 10, 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.computeID() != a.ID {
		t.Error("computeID should match stored ID right after construction")
	}
}
