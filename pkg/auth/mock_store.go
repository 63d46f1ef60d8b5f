package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	creds map[string]*Credential
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

// Store saves a copy of cred
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cred == nil || cred.Service == "" {
		return ErrInvalidCredentials
	}

	c := *cred
	m.creds[cred.Service] = &c
	return nil
}

// Retrieve returns a copy of the stored credential
func (m *MockStore) Retrieve(service string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if service == "" {
		return nil, ErrInvalidCredentials
	}

	cred, exists := m.creds[service]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	c := *cred
	return &c, nil
}

// List returns copies of all stored credentials
func (m *MockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	creds := make([]*Credential, 0, len(m.creds))
	for _, cred := range m.creds {
		c := *cred
		creds = append(creds, &c)
	}

	return creds, nil
}

// Delete removes the credential of service
func (m *MockStore) Delete(service string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if service == "" {
		return ErrInvalidCredentials
	}

	if _, exists := m.creds[service]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.creds, service)
	return nil
}

// Exists checks if a credential is stored for service
func (m *MockStore) Exists(service string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.creds[service]
	return exists
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.creds)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
