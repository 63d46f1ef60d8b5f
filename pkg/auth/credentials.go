package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Services with stored secrets
const (
	// ServiceMapbox holds the tile provider access token
	ServiceMapbox = "mapbox"
	// ServiceACLED holds the ACLED API key and registered email
	ServiceACLED = "acled"
)

// Services lists every known service in display order
var Services = []string{ServiceMapbox, ServiceACLED}

// Credential is the secret stored for one service
type Credential struct {
	Service      string    `json:"service"`
	Token        string    `json:"token"`
	Email        string    `json:"email,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// IsKnownService reports whether service is one of Services
func IsKnownService(service string) bool {
	for _, s := range Services {
		if s == service {
			return true
		}
	}
	return false
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential of its service
	Store(cred *Credential) error

	// Retrieve gets the credential of a service
	Retrieve(service string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential of a service
	Delete(service string) error

	// Exists checks if a credential exists for a service
	Exists(service string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager over the keyring, an encrypted
// file and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Validate checks that cred is complete for its service
func Validate(cred *Credential) error {
	if cred == nil {
		return ErrInvalidCredentials
	}
	if !IsKnownService(cred.Service) {
		return fmt.Errorf("unknown service %q: want one of %s", cred.Service, strings.Join(Services, ", "))
	}
	if cred.Token == "" {
		return errors.New("token is required")
	}
	if cred.Service == ServiceACLED && cred.Email == "" {
		return errors.New("acled credentials need the registered email")
	}
	return nil
}

// Store saves credentials using the first available store
func (m *Manager) Store(cred *Credential) error {
	if err := Validate(cred); err != nil {
		return err
	}

	cred.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(service string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(service); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for service: %s", ErrCredentialsNotFound, service)
}

// AccessToken returns the stored tile token, or "" when there is none
func (m *Manager) AccessToken() string {
	cred, err := m.Retrieve(ServiceMapbox)
	if err != nil {
		return ""
	}
	return cred.Token
}

// ACLED returns the stored ACLED key and email, empty when there are none
func (m *Manager) ACLED() (key, email string) {
	cred, err := m.Retrieve(ServiceACLED)
	if err != nil {
		return "", ""
	}
	return cred.Token, cred.Email
}

// List returns the newest credential of every service across all stores
func (m *Manager) List() ([]*Credential, error) {
	byService := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			// Use the most recently modified version
			if existing, ok := byService[cred.Service]; !ok || cred.LastModified.After(existing.LastModified) {
				byService[cred.Service] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byService))
	for _, cred := range byService {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Service < result[j].Service
	})
	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(service string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(service); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for service: %s", ErrCredentialsNotFound, service)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	creds, err := m.List()
	if err != nil {
		return err
	}

	for _, cred := range creds {
		_ = m.Delete(cred.Service) // Ignore individual errors
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "conflictmap")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "conflictmap")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "conflictmap")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "conflictmap")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the credential with its secret masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Service:      cred.Service,
		Token:        maskString(cred.Token),
		Email:        cred.Email,
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
