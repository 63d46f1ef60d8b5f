package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// EnvPassphrase overrides the generated passphrase of the encrypted store
const EnvPassphrase = "CONFLICTMAP_PASSPHRASE"

const (
	vaultVersion = 2
	saltSize     = 32
	keySize      = 32
	iterations   = 100000
)

// vault is the on-disk form of the encrypted store. Sealed holds the
// nonce-prefixed AES-GCM ciphertext of the JSON credential map.
type vault struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps every credential in one AES-GCM sealed file
// whose key is derived from a passphrase with PBKDF2
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// NewEncryptedFileStore creates a store backed by path. The passphrase comes
// from EnvPassphrase or a generated file next to the config directory.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves the credential of its service
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Service == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(creds map[string]Credential) error {
		creds[cred.Service] = *cred
		return nil
	})
}

// Retrieve gets the credential of a service
func (e *EncryptedFileStore) Retrieve(service string) (*Credential, error) {
	if service == "" {
		return nil, ErrInvalidCredentials
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, err := e.open()
	if err != nil {
		return nil, err
	}
	cred, ok := creds[service]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns every stored credential ordered by service
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, err := e.open()
	if err != nil {
		return nil, err
	}
	out := make([]*Credential, 0, len(creds))
	for _, c := range creds {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

// Delete removes the credential of a service. The file goes away with its
// last credential.
func (e *EncryptedFileStore) Delete(service string) error {
	if service == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(creds map[string]Credential) error {
		if _, ok := creds[service]; !ok {
			return ErrCredentialsNotFound
		}
		delete(creds, service)
		return nil
	})
}

// Exists reports whether service has a readable credential
func (e *EncryptedFileStore) Exists(service string) bool {
	cred, err := e.Retrieve(service)
	return err == nil && cred != nil
}

// update runs fn over the decrypted map under the write lock and seals the result
func (e *EncryptedFileStore) update(fn func(map[string]Credential) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, err := e.open()
	if err != nil {
		return err
	}
	if err := fn(creds); err != nil {
		return err
	}
	if len(creds) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return e.seal(creds)
}

// open reads and decrypts the file. A missing file is an empty map.
func (e *EncryptedFileStore) open() (map[string]Credential, error) {
	creds := make(map[string]Credential)

	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return creds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d", v.Version)
	}

	plain, err := decrypt(v.Sealed, e.key(v.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

// seal encrypts creds under a fresh salt and replaces the file
func (e *EncryptedFileStore) seal(creds map[string]Credential) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	sealed, err := encrypt(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	content, err := json.MarshalIndent(vault{
		Version:  vaultVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns EnvPassphrase when set, otherwise the contents of
// .passphrase in the config directory, creating it on first use
func loadPassphrase() (string, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(configDir, ".passphrase")
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := fmt.Sprintf("%x", b)
	if err := os.WriteFile(path, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, sealed[:n], sealed[n:], nil)
}
