package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	ClientIDEnv     = "REDDITETL_CLIENT_ID"
	ClientSecretEnv = "REDDITETL_CLIENT_SECRET"
	UserAgentEnv    = "REDDITETL_USER_AGENT"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and holds at most one set of credentials.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The name is only
// used to label the result.
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	clientID := os.Getenv(ClientIDEnv)
	clientSecret := os.Getenv(ClientSecretEnv)

	if clientID == "" || clientSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = "environment"
	}

	return &Credentials{
		Name:         name,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		UserAgent:    os.Getenv(UserAgentEnv),
		LastModified: time.Now(),
	}, nil
}

// List returns a single entry if the environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(ClientIDEnv) != "" && os.Getenv(ClientSecretEnv) != ""
}
