package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnv overrides the key file of the encrypted store
const PassphraseEnv = "REDDITETL_PASSPHRASE"

const (
	vaultVersion = 1
	saltSize     = 32
	keySize      = 32
	iterations   = 100000
)

// vaultAAD binds the ciphertext to this file format
var vaultAAD = []byte("redditetl/credentials/v1")

// vaultFile is the on-disk layout. Byte slices are base64 encoded by
// encoding/json.
type vaultFile struct {
	Version    int       `json:"version"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	Modified   time.Time `json:"modified"`
}

// EncryptedFileStore keeps every credential set in one AES-GCM sealed file.
// The key is derived with PBKDF2 from REDDITETL_PASSPHRASE or, when unset,
// from a random key file created next to the vault.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.RWMutex
}

// NewEncryptedFileStore opens the vault at path; the file itself is created
// on the first Store
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := resolvePassphrase(path + ".key")
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func resolvePassphrase(keyFile string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	if key, err := os.ReadFile(keyFile); err == nil && len(key) > 0 {
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyFile, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to save key file: %w", err)
	}
	return key, nil
}

func (e *EncryptedFileStore) Store(creds *Credentials) error {
	if creds == nil || creds.Name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(entries map[string]Credentials) error {
		entries[creds.Name] = *creds
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(name string) (*Credentials, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	entries, err := e.read()
	if err != nil {
		return nil, err
	}
	creds, ok := entries[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &creds, nil
}

// List returns the stored credentials ordered by name
func (e *EncryptedFileStore) List() ([]*Credentials, error) {
	entries, err := e.read()
	if err != nil {
		return nil, err
	}

	out := make([]*Credentials, 0, len(entries))
	for name := range entries {
		c := entries[name]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes one credential set; the vault file goes with the last one
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(entries map[string]Credentials) error {
		if _, ok := entries[name]; !ok {
			return ErrCredentialsNotFound
		}
		delete(entries, name)
		return nil
	})
}

func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

func (e *EncryptedFileStore) read() (map[string]Credentials, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entries, _, err := e.open()
	return entries, err
}

// update applies fn to the decrypted entries and seals the result again
func (e *EncryptedFileStore) update(fn func(map[string]Credentials) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, salt, err := e.open()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return e.seal(entries, salt)
}

// open decrypts the vault. A missing file is an empty vault with no salt.
func (e *EncryptedFileStore) open() (map[string]Credentials, []byte, error) {
	entries := make(map[string]Credentials)

	content, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", e.path, err)
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", e.path, err)
	}
	if vf.Version > vaultVersion {
		return nil, nil, fmt.Errorf("credential file version %d is newer than supported version %d", vf.Version, vaultVersion)
	}

	aead, err := e.aead(vf.Salt)
	if err != nil {
		return nil, nil, err
	}
	if len(vf.Nonce) != aead.NonceSize() {
		return nil, nil, fmt.Errorf("failed to decrypt credentials: bad nonce")
	}
	plaintext, err := aead.Open(nil, vf.Nonce, vf.Ciphertext, vaultAAD)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return entries, vf.Salt, nil
}

// seal encrypts entries with a fresh nonce and atomically replaces the vault
func (e *EncryptedFileStore) seal(entries map[string]Credentials, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	aead, err := e.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, vaultAAD),
		Modified:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
