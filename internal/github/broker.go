// Package github talks to the GitHub REST API on behalf of the app: it mints
// installation credentials and wraps the API calls the service needs.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/config"
)

const (
	defaultAPIBaseURL = "https://api.github.com"

	// App JWTs are valid for 10 minutes; installation tokens for one hour.
	// Cached values are discarded this long before they actually expire so a
	// token is never used right at the edge of its lifetime.
	appJWTTTL               = 10 * time.Minute
	appJWTMargin            = time.Minute
	installationTokenTTL    = time.Hour
	installationTokenMargin = 5 * time.Minute
)

// Clock returns the current time. Injected so expiry logic is testable.
type Clock func() time.Time

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func (t cachedToken) valid(now time.Time, margin time.Duration) bool {
	return t.token != "" && now.Add(margin).Before(t.expiresAt)
}

// TokenBroker exchanges the app's long-lived identity for short-lived
// installation access tokens. It keeps two caches: one app-level signed JWT
// and one access token per installation. The caches are shared across
// concurrent requests; refreshes for the same installation are collapsed
// through singleflight.
type TokenBroker struct {
	appID      string
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	now        Clock
	log        *slog.Logger

	mu            sync.Mutex
	appJWT        cachedToken
	installations map[int64]cachedToken
	group         singleflight.Group
}

// NewTokenBroker resolves the app's private key from cfg and returns a broker
// ready to mint tokens against the public GitHub API.
func NewTokenBroker(cfg config.GitHub, log *slog.Logger) (*TokenBroker, error) {
	key, err := resolvePrivateKey(cfg)
	if err != nil {
		return nil, err
	}

	return &TokenBroker{
		appID:         cfg.AppID,
		privateKey:    key,
		baseURL:       defaultAPIBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
		log:           log,
		installations: make(map[int64]cachedToken),
	}, nil
}

// resolvePrivateKey loads the RS256 signing key from the first configured
// source: raw PEM, base64-encoded PEM, then a PEM file on disk.
func resolvePrivateKey(cfg config.GitHub) (*rsa.PrivateKey, error) {
	pemData := cfg.PrivateKey

	if pemData == "" && cfg.PrivateKeyBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.PrivateKeyBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 private key: %w", apperrors.ErrCredential, err)
		}
		pemData = string(decoded)
	}

	if pemData == "" && cfg.PrivateKeyPath != "" {
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read private key file: %w", apperrors.ErrCredential, err)
		}
		pemData = string(data)
	}

	if pemData == "" {
		return nil, fmt.Errorf("%w: no private key configured", apperrors.ErrCredential)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse private key: %w", apperrors.ErrCredential, err)
	}

	return key, nil
}

// AppJWT returns the cached app-level signed credential, minting a fresh one
// when the cached value is expired or close to it.
func (b *TokenBroker) AppJWT() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.appJWT.valid(now, appJWTMargin) {
		return b.appJWT.token, nil
	}

	claims := jwt.MapClaims{
		"iss": b.appID,
		"iat": now.Unix(),
		"exp": now.Add(appJWTTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: cannot sign app JWT: %w", apperrors.ErrCredential, err)
	}

	b.appJWT = cachedToken{token: signed, expiresAt: now.Add(appJWTTTL)}

	return signed, nil
}

// InstallationToken returns an access token for the given installation,
// reusing the cached one while it is still comfortably within its lifetime.
// Exchange failures are not retried here; retry policy belongs to the caller.
func (b *TokenBroker) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	b.mu.Lock()
	cached, ok := b.installations[installationID]
	now := b.now()
	b.mu.Unlock()

	if ok && cached.valid(now, installationTokenMargin) {
		return cached.token, nil
	}

	// Collapse concurrent refreshes for the same installation. Minting twice
	// in a rare race would still be correct, just wasteful.
	token, err, _ := b.group.Do(strconv.FormatInt(installationID, 10), func() (interface{}, error) {
		return b.exchangeToken(ctx, installationID)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (b *TokenBroker) exchangeToken(ctx context.Context, installationID int64) (string, error) {
	appJWT, err := b.AppJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", b.baseURL, installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token exchange request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &apperrors.UpstreamError{
			Service: "github",
			Status:  resp.StatusCode,
			Detail:  string(body),
		}
	}

	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token exchange response: %w", err)
	}
	if out.Token == "" {
		return "", &apperrors.UpstreamError{
			Service: "github",
			Status:  resp.StatusCode,
			Detail:  "empty installation token in response",
		}
	}

	expiresAt := out.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = b.now().Add(installationTokenTTL)
	}

	b.mu.Lock()
	b.installations[installationID] = cachedToken{token: out.Token, expiresAt: expiresAt}
	b.mu.Unlock()

	b.log.Debug("minted installation token",
		slog.Int64("installation_id", installationID),
		slog.Time("expires_at", expiresAt),
	)

	return out.Token, nil
}
