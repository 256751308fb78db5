package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/devtrackhq/devtrack-service/internal/github"
)

const (
	signatureHeader    = "X-Hub-Signature-256"
	installationHeader = "X-GitHub-Hook-Installation-Target-Id"
	deliveryHeader     = "X-GitHub-Delivery"
	eventHeader        = "X-GitHub-Event"

	signaturePrefix = "sha256="
)

// verifyWebhook authenticates a webhook delivery before the handler sees it.
// The HMAC is computed over the raw body bytes exactly as received; the body
// is restored on the request afterwards so the handler can decode it.
func (s *Server) verifyWebhook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, header := range []string{signatureHeader, installationHeader, deliveryHeader, eventHeader} {
			if r.Header.Get(header) == "" {
				s.respondFailure(w, http.StatusUnauthorized, "unauthorized", []string{"missing required header: " + header})
				return
			}
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.respondFailure(w, http.StatusInternalServerError, "internal server error", []string{"failed to read request body"})
			return
		}
		r.Body.Close()

		if len(body) == 0 {
			s.respondFailure(w, http.StatusBadRequest, "invalid request", []string{"empty payload"})
			return
		}

		if !validSignature(s.webhookSecret, body, r.Header.Get(signatureHeader)) {
			s.respondFailure(w, http.StatusUnauthorized, "unauthorized", []string{"signature mismatch"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		next.ServeHTTP(w, r)
	})
}

// validSignature compares the expected HMAC-SHA256 of body against the
// sha256=<hex> header value in constant time.
func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleWebhook"

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondFailure(w, http.StatusInternalServerError, "internal server error", []string{"failed to read request body"})
		return
	}
	defer r.Body.Close()

	payload, err := github.ParsePushPayload(body)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.log.Info("webhook received",
		slog.String("delivery_id", r.Header.Get(deliveryHeader)),
		slog.String("event", r.Header.Get(eventHeader)),
	)

	if err := s.ingest.HandlePush(r.Context(), payload); err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusCreated, "push event processed", nil)
}
