package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrAuth wraps authentication-class failures. The engine retries an
// auth-class remote failure exactly once after a credential refresh.
var ErrAuth = errors.New("authentication failed")

// refreshSkew is how close to expiry a cached credential is considered
// stale.
const refreshSkew = 2 * time.Minute

// Credential is a bearer credential for the partner API.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential is usable for a call starting now.
func (c Credential) Valid() bool {
	return c.Token != "" && time.Now().Add(refreshSkew).Before(c.ExpiresAt)
}

// Authenticator supplies bearer credentials and the one-time
// prerequisite check the engine performs before any batch.
type Authenticator interface {
	// EnsureReady reports whether the prerequisite consent/access checks
	// pass. A false return means no batch work may start.
	EnsureReady(ctx context.Context) bool

	// GetCredential returns a valid bearer credential, refreshing if
	// needed. Failures wrap ErrAuth.
	GetCredential(ctx context.Context) (Credential, error)

	// Invalidate drops any cached credential so the next GetCredential
	// fetches a fresh one. Called after an auth-class remote failure.
	Invalidate()
}

// ClientCredentials implements Authenticator with the OAuth2 client
// credentials grant.
type ClientCredentials struct {
	cfg      clientcredentials.Config
	probeURL string
	client   *http.Client

	mu     sync.Mutex
	cached Credential
}

// Option configures a ClientCredentials authenticator.
type Option func(*ClientCredentials)

// WithHTTPClient overrides the HTTP client used for the prerequisite
// probe. Mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *ClientCredentials) { a.client = c }
}

// NewClientCredentials builds an authenticator for the given token
// endpoint. probeURL is the read-only endpoint used by EnsureReady to
// verify API consent.
func NewClientCredentials(tokenURL, clientID, clientSecret string, scopes []string, probeURL string, opts ...Option) *ClientCredentials {
	a := &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
		probeURL: probeURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *ClientCredentials) EnsureReady(ctx context.Context) bool {
	cred, err := a.GetCredential(ctx)
	if err != nil {
		log.Error().Err(err).Msg("prerequisite check: token acquisition failed")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.probeURL, nil)
	if err != nil {
		log.Error().Err(err).Msg("prerequisite check: building probe request failed")
		return false
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := a.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("prerequisite check: probe request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("url", a.probeURL).
			Msg("prerequisite check: API access not granted, ask a Global Admin to consent to the GDAP API")
		return false
	}

	log.Debug().Msg("prerequisite check passed")
	return true
}

func (a *ClientCredentials) GetCredential(ctx context.Context) (Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached.Valid() {
		return a.cached, nil
	}

	tok, err := a.cfg.Token(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	expiry := tok.Expiry
	if exp, ok := tokenExpiry(tok.AccessToken); ok {
		expiry = exp
	}

	a.cached = Credential{Token: tok.AccessToken, ExpiresAt: expiry}
	log.Debug().Time("expires_at", expiry).Msg("acquired partner API credential")

	return a.cached, nil
}

func (a *ClientCredentials) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = Credential{}
}

// tokenExpiry reads the exp claim from a bearer JWT without verifying
// the signature. The token server is trusted; the claim is only used to
// decide when to refresh proactively.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
