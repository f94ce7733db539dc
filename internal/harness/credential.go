package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/information-sharing-networks/wiki-harness/internal/auth"
)

// CachedCredential is a token obtained for a test identity. It is never refreshed during a run.
type CachedCredential struct {
	Token      string
	Username   string
	ObtainedAt time.Time

	// ExpiresAt is read from the token's exp claim, zero when the token is not a JWT
	ExpiresAt time.Time
}

// registerAccepted reports whether a register response means the user now exists.
// Conflict and BadRequest are what the server answers for an existing user.
func registerAccepted(status int) bool {
	return (status >= 200 && status <= 299) || status == http.StatusConflict || status == http.StatusBadRequest
}

// CredentialBootstrap makes sure test identities exist and caches one token per identity.
//
// Concurrent callers for the same identity share one login (and, if needed, register) round trip.
// Once a token is cached, callers read it without waiting on anything but a read lock.
type CredentialBootstrap struct {
	client      *Client
	logger      *slog.Logger
	emailDomain string
	now         func() time.Time

	flight singleflight.Group

	mu     sync.RWMutex
	seeded map[string]bool
	tokens map[string]CachedCredential
}

func NewCredentialBootstrap(client *Client, logger *slog.Logger) *CredentialBootstrap {
	return &CredentialBootstrap{
		client:      client,
		logger:      logger,
		emailDomain: "wiki.test",
		now:         time.Now,
		seeded:      make(map[string]bool),
		tokens:      make(map[string]CachedCredential),
	}
}

// EnsureTestIdentity logs in as username and, if that fails, registers it.
// A register answered with Conflict or BadRequest counts as success: the user already exists.
func (b *CredentialBootstrap) EnsureTestIdentity(ctx context.Context, username, password string) error {
	if b.isSeeded(username) {
		return nil
	}

	_, err := b.share(ctx, "seed:", username, func(ctx context.Context) (any, error) {
		if b.isSeeded(username) {
			return nil, nil
		}
		return nil, b.seed(ctx, username, password)
	})
	return err
}

// GetOrCreateToken returns the cached token for username, bootstrapping the identity on first use.
func (b *CredentialBootstrap) GetOrCreateToken(ctx context.Context, username, password string) (string, error) {
	if cred, ok := b.Cached(username); ok {
		return cred.Token, nil
	}

	v, err := b.share(ctx, "token:", username, func(ctx context.Context) (any, error) {
		if cred, ok := b.Cached(username); ok {
			return cred.Token, nil
		}

		if err := b.EnsureTestIdentity(ctx, username, password); err != nil {
			return "", err
		}
		// seeding usually leaves a token behind
		if cred, ok := b.Cached(username); ok {
			return cred.Token, nil
		}

		result, status, err := b.client.Login(ctx, username, password)
		if err != nil {
			return "", NewAuthBootstrapError(username, err)
		}
		if result == nil || !result.Success || result.Token == "" {
			return "", NewAuthBootstrapError(username, loginRejected(status, result))
		}
		return b.store(username, result.Token).Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// share runs fn once for all concurrent callers with the same key and username.
// fn gets a context without the first caller's deadline, so every caller sees the
// same outcome; requests stay bounded by the client timeout. A caller whose own ctx
// ends stops waiting and gets its ctx error.
func (b *CredentialBootstrap) share(ctx context.Context, key, username string, fn func(context.Context) (any, error)) (any, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := b.flight.DoChan(key+username, func() (any, error) {
		return fn(flightCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, NewAuthBootstrapError(username, ctx.Err())
	}
}

// Cached returns the cached credential for username.
func (b *CredentialBootstrap) Cached(username string) (CachedCredential, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cred, ok := b.tokens[username]
	return cred, ok
}

// Forget drops the cached token for username so the next call logs in again.
func (b *CredentialBootstrap) Forget(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, username)
}

// Reset drops every cached token and seeded identity.
func (b *CredentialBootstrap) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]CachedCredential)
	b.seeded = make(map[string]bool)
}

func (b *CredentialBootstrap) isSeeded(username string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seeded[username]
}

func (b *CredentialBootstrap) markSeeded(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeded[username] = true
}

func (b *CredentialBootstrap) seed(ctx context.Context, username, password string) error {
	result, status, err := b.client.Login(ctx, username, password)
	if err != nil {
		return NewAuthBootstrapError(username, err)
	}
	if result != nil && result.Success && result.Token != "" {
		b.store(username, result.Token)
		b.markSeeded(username)
		b.logger.Debug("test identity logged in", slog.String("username", username))
		return nil
	}
	b.logger.Debug("login failed, registering test identity",
		slog.String("username", username),
		slog.Int("status", status),
	)

	result, status, err = b.client.Register(ctx, username, b.email(username), password)
	if err != nil {
		return NewAuthBootstrapError(username, err)
	}
	if !registerAccepted(status) {
		return NewAuthBootstrapError(username, fmt.Errorf("register returned status %d", status))
	}
	if result != nil && result.Success && result.Token != "" {
		b.store(username, result.Token)
	}
	b.markSeeded(username)
	b.logger.Debug("test identity registered", slog.String("username", username), slog.Int("status", status))
	return nil
}

func (b *CredentialBootstrap) email(username string) string {
	if strings.Contains(username, "@") {
		return username
	}
	return username + "@" + b.emailDomain
}

func (b *CredentialBootstrap) store(username, token string) CachedCredential {
	cred := CachedCredential{
		Token:      token,
		Username:   username,
		ObtainedAt: b.now(),
	}
	if claims, err := auth.ReadClaims(token); err == nil {
		cred.ExpiresAt = claims.ExpiresAt
	} else {
		b.logger.Debug("token is not a readable JWT", slog.String("error", err.Error()))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// the first token wins so every caller sees the same one
	if existing, ok := b.tokens[username]; ok {
		return existing
	}
	b.tokens[username] = cred
	return cred
}

func loginRejected(status int, result *LoginResult) error {
	if result != nil && result.ErrorMessage != "" {
		return errors.New(result.ErrorMessage)
	}
	return fmt.Errorf("login returned status %d without a token", status)
}
