package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialManager(t *testing.T) {
	// Use mock manager for reliable testing
	manager, mockStore := NewMockManager()

	cred := &Credential{
		Service: ServiceMapbox,
		Token:   "pk.test_token_1234567890",
	}

	err := manager.Store(cred)
	if err != nil {
		t.Errorf("Failed to store credential: %v", err)
	}
	assert.False(t, cred.LastModified.IsZero())

	retrieved, err := manager.Retrieve(ServiceMapbox)
	if err != nil {
		t.Fatalf("Failed to retrieve credential: %v", err)
	}
	if retrieved.Token != cred.Token {
		t.Errorf("Token mismatch: got %s, want %s", retrieved.Token, cred.Token)
	}
	assert.Equal(t, cred.Token, manager.AccessToken())

	creds, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Errorf("Expected 1 credential in list, got %d", len(creds))
	}

	sanitized := Sanitize(cred)
	if sanitized.Token == cred.Token {
		t.Error("Token should be masked")
	}
	assert.Equal(t, "pk.t...7890", sanitized.Token)

	err = manager.Delete(ServiceMapbox)
	if err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}

	_, err = manager.Retrieve(ServiceMapbox)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Empty(t, manager.AccessToken())

	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 credentials after deletion, got %d", mockStore.Count())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cred    *Credential
		wantErr bool
	}{
		{"nil", nil, true},
		{"unknown service", &Credential{Service: "openweather", Token: "x"}, true},
		{"missing token", &Credential{Service: ServiceMapbox}, true},
		{"acled without email", &Credential{Service: ServiceACLED, Token: "key"}, true},
		{"acled", &Credential{Service: ServiceACLED, Token: "key", Email: "me@example.org"}, false},
		{"mapbox", &Credential{Service: ServiceMapbox, Token: "pk.abc"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerACLED(t *testing.T) {
	manager, _ := NewMockManager()

	key, email := manager.ACLED()
	assert.Empty(t, key)
	assert.Empty(t, email)

	require.NoError(t, manager.Store(&Credential{Service: ServiceACLED, Token: "acled-key", Email: "me@example.org"}))
	key, email = manager.ACLED()
	assert.Equal(t, "acled-key", key)
	assert.Equal(t, "me@example.org", email)
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keyring locked")
	fallback := NewMockStore()
	manager := NewManagerWithStores(broken, fallback)

	require.NoError(t, manager.Store(&Credential{Service: ServiceMapbox, Token: "pk.fallback"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, fallback.Count())

	fallback.StoreError = errors.New("disk full")
	err := manager.Store(&Credential{Service: ServiceMapbox, Token: "pk.other"})
	assert.ErrorContains(t, err, "disk full")
}

func TestManagerListKeepsNewest(t *testing.T) {
	older, newer := NewMockStore(), NewMockStore()
	now := time.Now()
	require.NoError(t, older.Store(&Credential{Service: ServiceMapbox, Token: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Credential{Service: ServiceMapbox, Token: "new", LastModified: now}))
	require.NoError(t, older.Store(&Credential{Service: ServiceACLED, Token: "k", Email: "e", LastModified: now}))

	creds, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, ServiceACLED, creds[0].Service)
	assert.Equal(t, "new", creds[1].Token)
}

func TestManagerDeleteMissing(t *testing.T) {
	manager, _ := NewMockManager()
	err := manager.Delete(ServiceMapbox)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")
	t.Setenv(EnvPassphrase, "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	cred := &Credential{
		Service: ServiceACLED,
		Token:   "encrypted_acled_key",
		Email:   "analyst@example.org",
	}

	err = store.Store(cred)
	if err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve(ServiceACLED)
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Token != cred.Token || retrieved.Email != cred.Email {
		t.Errorf("Credential mismatch after encryption/decryption: %+v", retrieved)
	}

	// File should not contain plaintext secrets
	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(fileContent, []byte("encrypted_acled_key")) {
		t.Error("File contains plaintext key")
	}
	if bytes.Contains(fileContent, []byte("analyst@example.org")) {
		t.Error("File contains plaintext email")
	}

	// A second store with the same passphrase reads the same file
	reopened, err := NewEncryptedFileStore(tempFile)
	require.NoError(t, err)
	assert.True(t, reopened.Exists(ServiceACLED))

	// Deleting the last credential removes the file
	require.NoError(t, store.Delete(ServiceACLED))
	assert.NoFileExists(t, tempFile)
	assert.ErrorIs(t, store.Delete(ServiceACLED), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "creds.enc")

	t.Setenv(EnvPassphrase, "first")
	store, err := NewEncryptedFileStore(tempFile)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Service: ServiceMapbox, Token: "pk.secret"}))

	t.Setenv(EnvPassphrase, "second")
	other, err := NewEncryptedFileStore(tempFile)
	require.NoError(t, err)
	_, err = other.Retrieve(ServiceMapbox)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvMapboxToken, "pk.env_token")
	t.Setenv(EnvACLEDKey, "env_key")
	t.Setenv(EnvACLEDEmail, "")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve(ServiceMapbox)
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.Token != "pk.env_token" {
		t.Errorf("Token mismatch: got %s, want pk.env_token", cred.Token)
	}

	// acled needs both variables
	_, err = store.Retrieve(ServiceACLED)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(ServiceACLED))

	t.Setenv(EnvACLEDEmail, "env@example.org")
	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	err = store.Store(&Credential{})
	if err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
	assert.Equal(t, ErrStoreUnavailable, store.Delete(ServiceMapbox))
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test_passphrase_real_manager")
	t.Setenv(EnvMapboxToken, "")

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	manager := NewManagerWithStores(encryptedStore, NewEnvironmentStore())

	err = manager.Store(&Credential{Service: ServiceMapbox, Token: "pk.real_token_value"})
	if err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}

	creds, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Errorf("Expected 1 credential in list, got %d", len(creds))
	}
	assert.Equal(t, "pk.real_token_value", manager.AccessToken())

	require.NoError(t, manager.DeleteAll())
	assert.Empty(t, manager.AccessToken())
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	creds, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(creds) != 0 {
		t.Errorf("Expected 0 credentials, got %d", len(creds))
	}

	err = store.Store(&Credential{Service: ServiceMapbox, Token: "pk.mock"})
	if err != nil {
		t.Errorf("Failed to store credential: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 credential, got %d", store.Count())
	}
	if !store.Exists(ServiceMapbox) {
		t.Error("Credential should exist")
	}

	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf, ServiceMapbox)
	assert.Contains(t, buf.String(), "MAPBOX ACCESS TOKEN")
	assert.Contains(t, buf.String(), EnvMapboxToken)

	buf.Reset()
	ShowTokenGuide(&buf, "nope")
	assert.Contains(t, buf.String(), "Unknown service")
}
