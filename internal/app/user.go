package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/taskmail/internal/auth"
	"github.com/josephgoksu/taskmail/internal/memory"
)

// ErrNoJWTSecret is returned by IssueToken when auth.jwtSecret is unset.
var ErrNoJWTSecret = errors.New("auth.jwtSecret is not configured")

// UserResult carries a freshly generated credential. APIKey is shown once.
type UserResult struct {
	User   memory.User `json:"user"`
	APIKey string      `json:"api_key,omitempty"`
}

// UserApp manages mailbox owners and their credentials.
type UserApp struct {
	ctx    *Context
	hasher *auth.KeyHasher
}

// NewUserApp creates a new user application service.
func NewUserApp(ctx *Context) *UserApp {
	return &UserApp{ctx: ctx, hasher: auth.NewKeyHasher()}
}

// Add registers username with a new API key. An owner that already has a
// row without a key (created by preferences) gets a key instead of an error.
func (a *UserApp) Add(ctx context.Context, username string) (*UserResult, error) {
	key, hash, err := a.hasher.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	u, err := a.ctx.Store.CreateUser(ctx, username, hash)
	if errors.Is(err, memory.ErrAlreadyExists) {
		existing, getErr := a.ctx.Store.GetUser(ctx, username)
		if getErr != nil || existing.APIKeyHash != "" {
			return nil, err
		}
		if err := a.ctx.Store.SetAPIKeyHash(ctx, username, hash); err != nil {
			return nil, err
		}
		return &UserResult{User: existing, APIKey: key}, nil
	}
	if err != nil {
		return nil, err
	}
	return &UserResult{User: u, APIKey: key}, nil
}

// RotateKey replaces username's API key.
func (a *UserApp) RotateKey(ctx context.Context, username string) (*UserResult, error) {
	u, err := a.ctx.Store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	key, hash, err := a.hasher.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	if err := a.ctx.Store.SetAPIKeyHash(ctx, username, hash); err != nil {
		return nil, err
	}
	return &UserResult{User: u, APIKey: key}, nil
}

// List returns every registered user.
func (a *UserApp) List(ctx context.Context) ([]memory.User, error) {
	return a.ctx.Store.ListUsers(ctx)
}

// Preferences returns username's listing defaults.
func (a *UserApp) Preferences(ctx context.Context, username string) (memory.Preferences, error) {
	return a.ctx.Store.GetPreferences(ctx, username)
}

// SetPreferences replaces username's listing defaults.
func (a *UserApp) SetPreferences(ctx context.Context, username string, p memory.Preferences) error {
	return a.ctx.Store.SetPreferences(ctx, username, p)
}

// IssueToken signs a bearer token for the JWT auth backend.
func (a *UserApp) IssueToken(ctx context.Context, username string, ttl time.Duration) (string, error) {
	secret := a.ctx.Config.Auth.JWTSecret
	if secret == "" {
		return "", ErrNoJWTSecret
	}
	if _, err := a.ctx.Store.GetUser(ctx, username); err != nil {
		return "", fmt.Errorf("user %q: %w", username, err)
	}
	return auth.NewJWTManager(auth.DefaultJWTConfig(secret)).Issue(username, ttl)
}
