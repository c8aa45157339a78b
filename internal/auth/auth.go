// Package auth resolves request credentials to an owner name. The backend is
// chosen once at startup from configuration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/josephgoksu/taskmail/internal/memory"
)

var (
	// ErrCredential is returned for missing, unknown or mismatched credentials.
	ErrCredential = errors.New("invalid credentials")
	// ErrUnsupported is returned by backends that are declared but not built.
	ErrUnsupported = errors.New("authentication backend not supported")
)

// Backend names accepted by New.
const (
	BackendAPIKey = "apikey"
	BackendJWT    = "jwt"
	BackendOAuth  = "oauth"
	BackendNone   = "none"
)

// Credentials are what a caller presented. Backends read the fields they use.
type Credentials struct {
	User        string
	APIKey      string
	BearerToken string
}

// Backend authenticates credentials and returns the owner they belong to.
type Backend interface {
	Authenticate(ctx context.Context, creds Credentials) (owner string, err error)
	Name() string
}

// UserStore is the lookup the API-key backend needs.
type UserStore interface {
	GetUser(ctx context.Context, username string) (memory.User, error)
}

// Options carry backend dependencies.
type Options struct {
	Users     UserStore
	JWTSecret string
}

// New selects a backend by name. An empty name selects the API-key backend.
func New(name string, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendAPIKey:
		if opts.Users == nil {
			return nil, fmt.Errorf("apikey backend requires a user store")
		}
		return NewAPIKeyBackend(opts.Users), nil
	case BackendJWT:
		if opts.JWTSecret == "" {
			return nil, fmt.Errorf("jwt backend requires auth.jwtSecret")
		}
		return NewJWTBackend(NewJWTManager(DefaultJWTConfig(opts.JWTSecret))), nil
	case BackendOAuth:
		return OAuthBackend{}, nil
	case BackendNone:
		return NoneBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q (want apikey, jwt, oauth or none)", name)
	}
}

// APIKeyBackend checks a username and API key against the stored bcrypt hash.
type APIKeyBackend struct {
	users  UserStore
	hasher *KeyHasher
}

// NewAPIKeyBackend creates the default backend.
func NewAPIKeyBackend(users UserStore) *APIKeyBackend {
	return &APIKeyBackend{users: users, hasher: NewKeyHasher()}
}

func (b *APIKeyBackend) Name() string { return BackendAPIKey }

func (b *APIKeyBackend) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if creds.User == "" || creds.APIKey == "" {
		return "", fmt.Errorf("%w: user and api key required", ErrCredential)
	}
	u, err := b.users.GetUser(ctx, creds.User)
	if errors.Is(err, memory.ErrNotFound) {
		return "", ErrCredential
	}
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}
	if u.APIKeyHash == "" || !b.hasher.Verify(creds.APIKey, u.APIKeyHash) {
		return "", ErrCredential
	}
	return u.Username, nil
}

// JWTBackend accepts HS256 bearer tokens whose subject is the owner.
type JWTBackend struct {
	manager *JWTManager
}

// NewJWTBackend wraps a token manager.
func NewJWTBackend(m *JWTManager) *JWTBackend {
	return &JWTBackend{manager: m}
}

func (b *JWTBackend) Name() string { return BackendJWT }

func (b *JWTBackend) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.BearerToken == "" {
		return "", fmt.Errorf("%w: bearer token required", ErrCredential)
	}
	claims, err := b.manager.ValidateToken(creds.BearerToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredential, err)
	}
	return claims.Subject, nil
}

// OAuthBackend is a declared variant with no provider wired yet.
type OAuthBackend struct{}

func (OAuthBackend) Name() string { return BackendOAuth }

func (OAuthBackend) Authenticate(context.Context, Credentials) (string, error) {
	return "", fmt.Errorf("%w: oauth", ErrUnsupported)
}

// NoneBackend trusts the presented user name. Meant for single-user local
// setups bound to loopback.
type NoneBackend struct{}

func (NoneBackend) Name() string { return BackendNone }

func (NoneBackend) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if strings.TrimSpace(creds.User) == "" {
		return "", fmt.Errorf("%w: user required", ErrCredential)
	}
	return strings.TrimSpace(creds.User), nil
}
