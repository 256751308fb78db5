package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/config"
)

func testPrivateKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return key, string(pemData)
}

func newTestBroker(t *testing.T, baseURL string, now Clock) *TokenBroker {
	t.Helper()

	_, pemData := testPrivateKeyPEM(t)

	broker, err := NewTokenBroker(config.GitHub{
		AppID:      "12345",
		PrivateKey: pemData,
	}, slog.Default())
	require.NoError(t, err)

	if baseURL != "" {
		broker.baseURL = baseURL
	}
	if now != nil {
		broker.now = now
	}

	return broker
}

func TestResolvePrivateKey(t *testing.T) {
	key, pemData := testPrivateKeyPEM(t)

	t.Run("raw PEM", func(t *testing.T) {
		resolved, err := resolvePrivateKey(config.GitHub{PrivateKey: pemData})

		require.NoError(t, err)
		assert.Equal(t, key.D, resolved.D)
	})

	t.Run("base64 PEM", func(t *testing.T) {
		resolved, err := resolvePrivateKey(config.GitHub{
			PrivateKeyBase64: base64.StdEncoding.EncodeToString([]byte(pemData)),
		})

		require.NoError(t, err)
		assert.Equal(t, key.D, resolved.D)
	})

	t.Run("raw PEM wins over base64", func(t *testing.T) {
		resolved, err := resolvePrivateKey(config.GitHub{
			PrivateKey:       pemData,
			PrivateKeyBase64: "ignored-not-even-base64",
		})

		require.NoError(t, err)
		assert.Equal(t, key.D, resolved.D)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := resolvePrivateKey(config.GitHub{})

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrCredential)
	})

	t.Run("garbage PEM", func(t *testing.T) {
		_, err := resolvePrivateKey(config.GitHub{PrivateKey: "not a key"})

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrCredential)
	})
}

func TestTokenBroker_AppJWT(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	broker := newTestBroker(t, "", func() time.Time { return current })

	first, err := broker.AppJWT()
	require.NoError(t, err)

	// The signed credential carries issuer, issued-at and a ten minute expiry.
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(first, claims)
	require.NoError(t, err)
	assert.Equal(t, "12345", claims["iss"])
	assert.Equal(t, float64(base.Unix()), claims["iat"])
	assert.Equal(t, float64(base.Add(appJWTTTL).Unix()), claims["exp"])

	// Still comfortably valid: cached value is reused.
	current = base.Add(5 * time.Minute)
	second, err := broker.AppJWT()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Inside the safety margin: a fresh one is minted.
	current = base.Add(appJWTTTL - 30*time.Second)
	third, err := broker.AppJWT()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestTokenBroker_InstallationToken(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("mints, caches and refreshes on expiry", func(t *testing.T) {
		var calls atomic.Int64
		current := base

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/app/installations/9001/access_tokens", r.URL.Path)
			assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

			n := calls.Add(1)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"token": "ghs_token_%d", "expires_at": %q}`,
				n, current.Add(installationTokenTTL).Format(time.RFC3339))
		}))
		defer server.Close()

		broker := newTestBroker(t, server.URL, func() time.Time { return current })
		ctx := context.Background()

		token, err := broker.InstallationToken(ctx, 9001)
		require.NoError(t, err)
		assert.Equal(t, "ghs_token_1", token)

		// Cached while valid.
		current = base.Add(30 * time.Minute)
		token, err = broker.InstallationToken(ctx, 9001)
		require.NoError(t, err)
		assert.Equal(t, "ghs_token_1", token)
		assert.Equal(t, int64(1), calls.Load())

		// Within the five minute safety margin: re-minted.
		current = base.Add(installationTokenTTL - time.Minute)
		token, err = broker.InstallationToken(ctx, 9001)
		require.NoError(t, err)
		assert.Equal(t, "ghs_token_2", token)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("separate installations get separate tokens", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"token": "token-for%s"}`, r.URL.Path)
		}))
		defer server.Close()

		broker := newTestBroker(t, server.URL, nil)
		ctx := context.Background()

		first, err := broker.InstallationToken(ctx, 1)
		require.NoError(t, err)
		second, err := broker.InstallationToken(ctx, 2)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("non-2xx exchange surfaces an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		broker := newTestBroker(t, server.URL, nil)

		_, err := broker.InstallationToken(context.Background(), 9001)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUpstream)

		var upstreamErr *apperrors.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, http.StatusUnauthorized, upstreamErr.Status)
	})

	t.Run("empty token in response surfaces an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"token": ""}`)
		}))
		defer server.Close()

		broker := newTestBroker(t, server.URL, nil)

		_, err := broker.InstallationToken(context.Background(), 9001)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUpstream)
	})
}
