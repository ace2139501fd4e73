package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
)

// expirySkew treats tokens about to expire as already expired.
const expirySkew = 10 * time.Second

// DefaultAuthTimeout bounds how long Pending.Wait waits for consent.
const DefaultAuthTimeout = 5 * time.Minute

// ErrAuthorization wraps every failure to produce a usable credential.
var ErrAuthorization = errors.New("authorization failed")

// TokenStore persists a single credential.
type TokenStore interface {
	Load() (*oauth2.Token, bool)
	Save(token *oauth2.Token) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Authorizer starts an interactive consent flow.
type Authorizer interface {
	Begin(ctx context.Context) (*Pending, error)
}

// Pending is an interactive authorization the caller still has to complete:
// send the user to AuthURL, then Wait for the redirect.
type Pending struct {
	authURL string
	wait    func(ctx context.Context) (*oauth2.Token, error)
	close   func() error
	timeout time.Duration
	onToken func(*oauth2.Token)
	once    sync.Once
}

// NewPending is used by Authorizer implementations. close may be nil.
func NewPending(authURL string, wait func(ctx context.Context) (*oauth2.Token, error), close func() error) *Pending {
	return &Pending{authURL: authURL, wait: wait, close: close}
}

func (p *Pending) AuthURL() string {
	return p.authURL
}

// Wait blocks until consent completes, ctx is done or the auth timeout
// passes. The resulting token is persisted before it is returned.
func (p *Pending) Wait(ctx context.Context) (*oauth2.Token, error) {
	defer func() { _ = p.Close() }()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	token, err := p.wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: consent returned no access token", ErrAuthorization)
	}

	if p.onToken != nil {
		p.onToken(token)
	}
	return token, nil
}

// Close releases the callback listener without waiting.
func (p *Pending) Close() error {
	var err error
	p.once.Do(func() {
		if p.close != nil {
			err = p.close()
		}
	})
	return err
}

// Grant is the outcome of Acquire: either a usable Token or a Pending
// authorization, never both.
type Grant struct {
	Token   *oauth2.Token
	Pending *Pending
}

// Ready reports whether the grant already holds a usable token.
func (g Grant) Ready() bool {
	return g.Token != nil
}

// Manager hands out valid credentials.
type Manager struct {
	store       TokenStore
	refresher   Refresher
	authorizer  Authorizer
	clock       clockwork.Clock
	logger      *slog.Logger
	authTimeout time.Duration
}

type ManagerOption func(*Manager)

func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

func WithAuthTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.authTimeout = d }
}

func NewManager(store TokenStore, refresher Refresher, authorizer Authorizer, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		refresher:   refresher,
		authorizer:  authorizer,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		authTimeout: DefaultAuthTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Valid reports whether token can be used right now.
func (m *Manager) Valid(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	if token.Expiry.IsZero() {
		return true
	}
	return m.clock.Now().Add(expirySkew).Before(token.Expiry)
}

// Acquire returns the cached token when it is still valid, a refreshed token
// when the cached one expired and can be refreshed, and otherwise a Pending
// authorization. It never blocks on the user.
func (m *Manager) Acquire(ctx context.Context) (Grant, error) {
	cached, ok := m.store.Load()
	if ok && m.Valid(cached) {
		return Grant{Token: cached}, nil
	}

	if ok && cached.RefreshToken != "" {
		refreshed, err := m.refresh(ctx, cached)
		if err == nil {
			return Grant{Token: refreshed}, nil
		}
		m.logger.Warn("token refresh failed, falling back to interactive authorization", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}

	pending, err := m.authorizer.Begin(ctx)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	if pending == nil {
		return Grant{}, fmt.Errorf("%w: consent flow did not start", ErrAuthorization)
	}
	pending.timeout = m.authTimeout
	pending.onToken = func(token *oauth2.Token) {
		if err := m.store.Save(token); err != nil {
			m.logger.Warn("failed to persist authorized token", "error", err)
		}
	}

	return Grant{Pending: pending}, nil
}

func (m *Manager) refresh(ctx context.Context, cached *oauth2.Token) (*oauth2.Token, error) {
	refreshed, err := m.refresher.Refresh(ctx, cached.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, errors.New("refresh returned no token")
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cached.RefreshToken
	}
	if !m.Valid(refreshed) {
		return nil, fmt.Errorf("refresh returned an expired token")
	}

	if err := m.store.Save(refreshed); err != nil {
		m.logger.Warn("failed to persist refreshed token", "error", err)
	}
	m.logger.Debug("access token refreshed", "expiry", refreshed.Expiry)

	return refreshed, nil
}

// Token acquires a credential, completing an interactive authorization when
// one is needed. prompt receives the consent URL before the wait starts.
func (m *Manager) Token(ctx context.Context, prompt func(authURL string)) (*oauth2.Token, error) {
	grant, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if grant.Ready() {
		return grant.Token, nil
	}

	if prompt != nil {
		prompt(grant.Pending.AuthURL())
	}
	return grant.Pending.Wait(ctx)
}

// ConfigRefresher refreshes through an oauth2.Config token endpoint.
type ConfigRefresher struct {
	Config *oauth2.Config
}

func (r ConfigRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	token, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return token, nil
}
