package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvMapboxToken = "CONFLICTMAP_MAPBOX_TOKEN"
	EnvACLEDKey    = "CONFLICTMAP_ACLED_KEY"
	EnvACLEDEmail  = "CONFLICTMAP_ACLED_EMAIL"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(service string) (*Credential, error) {
	var cred *Credential
	switch service {
	case ServiceMapbox:
		if token := os.Getenv(EnvMapboxToken); token != "" {
			cred = &Credential{Service: service, Token: token}
		}
	case ServiceACLED:
		key, email := os.Getenv(EnvACLEDKey), os.Getenv(EnvACLEDEmail)
		if key != "" && email != "" {
			cred = &Credential{Service: service, Token: key, Email: email}
		}
	default:
		return nil, ErrInvalidCredentials
	}

	if cred == nil {
		return nil, ErrCredentialsNotFound
	}
	cred.LastModified = time.Now()
	return cred, nil
}

// List returns the services whose variables are set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	creds := []*Credential{}
	for _, service := range Services {
		if cred, err := e.Retrieve(service); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(service string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(service string) bool {
	_, err := e.Retrieve(service)
	return err == nil
}
