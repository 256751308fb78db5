package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/service"
)

func TestServer_Authenticate(t *testing.T) {
	t.Run("Success: account resolved and user ensured", func(t *testing.T) {
		m := newServerMocks()
		account := m.authorize()

		m.backfill.On("SyncPreview", mock.Anything, account).
			Return([]service.OrgPreview{}, nil).Once()

		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, authorizedRequest(http.MethodGet, "/api/preview", ""))

		assert.Equal(t, http.StatusOK, rr.Code)
		m.gh.AssertExpectations(t)
		m.accounts.AssertExpectations(t)
	})

	t.Run("Failure: missing Authorization header", func(t *testing.T) {
		m := newServerMocks()

		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/preview", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		m.gh.AssertNotCalled(t, "AuthenticatedUser", mock.Anything, mock.Anything)
	})

	t.Run("Failure: token without bearer scheme", func(t *testing.T) {
		m := newServerMocks()

		req := httptest.NewRequest(http.MethodGet, "/api/preview", nil)
		req.Header.Set("Authorization", testBearerToken)

		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		m.gh.AssertNotCalled(t, "AuthenticatedUser", mock.Anything, mock.Anything)
	})

	t.Run("Failure: token rejected upstream", func(t *testing.T) {
		m := newServerMocks()

		m.gh.On("AuthenticatedUser", mock.Anything, "bad-token").
			Return(nil, apperrors.ErrUnauthorized).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/preview", nil)
		req.Header.Set("Authorization", "Bearer bad-token")

		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{
            "success": false,
            "message": "unauthorized",
            "errors": ["unauthorized"]
        }`, rr.Body.String())
		m.accounts.AssertNotCalled(t, "EnsureUser", mock.Anything, mock.Anything)
	})
}

func TestServer_RequestID(t *testing.T) {
	m := newServerMocks()

	t.Run("generated when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	})

	t.Run("caller value preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "caller-supplied-id")

		rr := httptest.NewRecorder()
		m.handler().ServeHTTP(rr, req)

		assert.Equal(t, "caller-supplied-id", rr.Header().Get(requestIDHeader))
	})
}
