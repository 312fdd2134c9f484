// Package wallet manages the node's key material: BIP-39 mnemonics,
// BIP-32 derivation, and password-encrypted storage on disk.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/types"
)

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	EncryptedSeed []byte         `json:"encrypted_seed"`
	Accounts      []AccountEntry `json:"accounts"`
	NextIndex     uint32         `json:"next_index"` // next external address index
}

// AccountEntry records a derived account's metadata. The address is
// stored so the wallet can be listed without decrypting the seed.
type AccountEntry struct {
	Account uint32        `json:"account"`
	Change  uint32        `json:"change"`
	Index   uint32        `json:"index"`
	Name    string        `json:"name"`
	Address types.Address `json:"address"`
}

// Keystore manages encrypted wallet files in one directory.
type Keystore struct {
	path string
}

// NewKeystore opens (creating if needed) a keystore directory.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Exists reports whether a wallet by this name is present.
func (ks *Keystore) Exists(name string) bool {
	_, err := os.Stat(ks.walletPath(name))
	return err == nil
}

// Create generates a fresh mnemonic, derives the first receiving
// address, and writes the encrypted wallet file. The mnemonic is
// returned exactly once — it is never stored in the clear.
func (ks *Keystore) Create(name string, password []byte) (mnemonic string, addr types.Address, err error) {
	mnemonic, err = GenerateMnemonic()
	if err != nil {
		return "", "", err
	}
	addr, err = ks.Restore(name, mnemonic, password)
	if err != nil {
		return "", "", err
	}
	return mnemonic, addr, nil
}

// Restore builds a wallet file from an existing mnemonic. Returns the
// first receiving address.
func (ks *Keystore) Restore(name, mnemonic string, password []byte) (types.Address, error) {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("wallet %q already exists", name)
	}

	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return "", err
	}

	master, err := NewMasterKey(seed)
	if err != nil {
		return "", err
	}
	first, err := master.DeriveAccount(0, ChangeExternal, 0)
	if err != nil {
		return "", fmt.Errorf("derive first account: %w", err)
	}
	addr, err := first.Address()
	if err != nil {
		return "", err
	}

	encrypted, err := Encrypt(seed, password, DefaultParams())
	if err != nil {
		return "", fmt.Errorf("encrypt seed: %w", err)
	}

	kf := keystoreFile{
		Version:       1,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: encrypted,
		Accounts: []AccountEntry{
			{Account: 0, Change: ChangeExternal, Index: 0, Name: "default", Address: addr},
		},
		NextIndex: 1,
	}
	if err := ks.writeFile(path, &kf); err != nil {
		return "", err
	}
	return addr, nil
}

// Unlock decrypts a wallet and returns it ready for signing. A wrong
// password surfaces as a decryption failure.
func (ks *Keystore) Unlock(name string, password []byte) (*Wallet, error) {
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}

	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("unlock wallet: %w", err)
	}

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return &Wallet{name: name, master: master, accounts: kf.Accounts}, nil
}

// Accounts lists a wallet's derived accounts without decrypting it.
func (ks *Keystore) Accounts(name string) ([]AccountEntry, error) {
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}
	return kf.Accounts, nil
}

// NewAddress derives the next external receiving address, records it,
// and returns it.
func (ks *Keystore) NewAddress(name string, password []byte) (types.Address, error) {
	path := ks.walletPath(name)
	kf, err := ks.readFile(path)
	if err != nil {
		return "", err
	}

	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return "", fmt.Errorf("unlock wallet: %w", err)
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		return "", err
	}

	index := kf.NextIndex
	child, err := master.DeriveAccount(0, ChangeExternal, index)
	if err != nil {
		return "", fmt.Errorf("derive address %d: %w", index, err)
	}
	addr, err := child.Address()
	if err != nil {
		return "", err
	}

	kf.Accounts = append(kf.Accounts, AccountEntry{
		Account: 0,
		Change:  ChangeExternal,
		Index:   index,
		Name:    fmt.Sprintf("address-%d", index),
		Address: addr,
	})
	kf.NextIndex = index + 1
	if err := ks.writeFile(path, kf); err != nil {
		return "", err
	}
	return addr, nil
}

// List returns the names of all wallets in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := strings.CutSuffix(e.Name(), ".wallet"); ok && n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return os.Rename(tmp, path)
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	return &kf, nil
}

// Wallet is an unlocked wallet: the decrypted master key plus account
// metadata. It lives in memory only.
type Wallet struct {
	name     string
	master   *HDKey
	accounts []AccountEntry
}

// Name returns the wallet's keystore name.
func (w *Wallet) Name() string {
	return w.name
}

// Accounts returns the wallet's derived accounts.
func (w *Wallet) Accounts() []AccountEntry {
	return w.accounts
}

// SignerFor derives the signing key for one of the wallet's accounts.
func (w *Wallet) SignerFor(acct AccountEntry) (*crypto.PrivateKey, error) {
	child, err := w.master.DeriveAccount(acct.Account, acct.Change, acct.Index)
	if err != nil {
		return nil, err
	}
	return child.Signer()
}

// SignerForAddress finds the account owning addr and derives its key.
func (w *Wallet) SignerForAddress(addr types.Address) (*crypto.PrivateKey, error) {
	for _, acct := range w.accounts {
		if acct.Address == addr {
			return w.SignerFor(acct)
		}
	}
	return nil, fmt.Errorf("address %.16s... not in wallet", addr)
}

// DefaultSigner derives the wallet's first receiving key.
func (w *Wallet) DefaultSigner() (*crypto.PrivateKey, error) {
	if len(w.accounts) == 0 {
		return nil, fmt.Errorf("wallet has no accounts")
	}
	return w.SignerFor(w.accounts[0])
}

// DefaultAddress returns the wallet's first receiving address.
func (w *Wallet) DefaultAddress() (types.Address, error) {
	if len(w.accounts) == 0 {
		return "", fmt.Errorf("wallet has no accounts")
	}
	return w.accounts[0].Address, nil
}
