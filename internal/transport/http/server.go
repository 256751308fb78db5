// package http implements the HTTP transport layer for the service.
// It handles incoming requests, decodes them, calls the appropriate service
// methods, and encodes the responses into the uniform envelope.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/service"
	"github.com/devtrackhq/devtrack-service/internal/validation"
	"github.com/devtrackhq/devtrack-service/pkg/logger/sl"
)

// dateLayout is the MM-DD-YYYY format the commits and dates endpoints speak.
const dateLayout = "01-02-2006"

// Server holds the dependencies for the HTTP server.
type Server struct {
	log           *slog.Logger
	gh            service.GitHubClient
	ingest        service.IngestService
	backfill      service.BackfillService
	accounts      service.AccountService
	webhookSecret string
}

// NewServer creates a new instance of the HTTP server.
func NewServer(
	log *slog.Logger,
	gh service.GitHubClient,
	ingest service.IngestService,
	backfill service.BackfillService,
	accounts service.AccountService,
	webhookSecret string,
) *Server {
	return &Server{
		log:           log,
		gh:            gh,
		ingest:        ingest,
		backfill:      backfill,
		accounts:      accounts,
		webhookSecret: webhookSecret,
	}
}

// Routes sets up the router with all middleware and API endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.requestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health", s.handleHealth)

	mux.Route("/api", func(r chi.Router) {
		r.With(s.verifyWebhook).Post("/webhook", s.handleWebhook)

		r.Post("/waitlist", s.handleWaitlist)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/preview", s.handlePreview)
			r.Get("/userinfo", s.handleUserInfo)
			r.Get("/commits/{orgName}/{repoName}", s.handleCommits)
			r.Get("/{orgName}/dates", s.handleDates)
			r.Post("/toggle-tasks", s.handleToggleTasks)
		})
	})

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondSuccess(w, http.StatusOK, "ok", nil)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handlePreview"

	account, ok := accountFromContext(r.Context())
	if !ok {
		s.handleServiceError(w, op, apperrors.ErrUnauthorized)
		return
	}

	previews, err := s.backfill.SyncPreview(r.Context(), account)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusOK, "installations synced", toOrgPreviewsResponse(previews))
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleUserInfo"

	account, ok := accountFromContext(r.Context())
	if !ok {
		s.handleServiceError(w, op, apperrors.ErrUnauthorized)
		return
	}

	info, err := s.accounts.GetUserInfo(r.Context(), account.ID)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusOK, "user info fetched", toUserInfoResponse(info))
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleCommits"

	params := commitsParams{
		OrgName:   chi.URLParam(r, "orgName"),
		RepoName:  chi.URLParam(r, "repoName"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	}
	if err := validation.ValidateStruct(&params); err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	query, err := buildCommitQuery(r, params)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	page, err := s.backfill.GetCommits(r.Context(), params.OrgName, params.RepoName, *query)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusOK, "commits fetched", toCommitPageResponse(page))
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleDates"

	params := datesParams{OrgName: chi.URLParam(r, "orgName")}
	if err := validation.ValidateStruct(&params); err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	dates, err := s.backfill.DatesToProcess(r.Context(), params.OrgName)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, date := range dates {
		formatted = append(formatted, date.Format(dateLayout))
	}

	s.respondSuccess(w, http.StatusOK, "dates fetched", formatted)
}

func (s *Server) handleToggleTasks(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleToggleTasks"

	var req toggleTasksRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	repo, err := s.accounts.ToggleTasks(r.Context(), req.RepoID, req.Enabled)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusOK, "repository updated", toRepoResponse(*repo))
}

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleWaitlist"

	var req waitlistRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	entry, err := s.accounts.JoinWaitlist(r.Context(), req.Email)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respondSuccess(w, http.StatusCreated, "joined waitlist", toWaitlistResponse(entry))
}

// buildCommitQuery translates the endpoint's query parameters into a service
// query. End dates are inclusive, so the parsed end is moved to the next day.
func buildCommitQuery(r *http.Request, params commitsParams) (*service.CommitQuery, error) {
	query := &service.CommitQuery{}

	if (params.StartDate == "") != (params.EndDate == "") {
		return nil, fmt.Errorf("%w: startDate and endDate must be provided together", apperrors.ErrInvalidRequest)
	}

	if params.StartDate != "" && params.EndDate != "" {
		start, err := time.Parse(dateLayout, params.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid startDate: %w", apperrors.ErrInvalidRequest, err)
		}

		end, err := time.Parse(dateLayout, params.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid endDate: %w", apperrors.ErrInvalidRequest, err)
		}
		end = end.AddDate(0, 0, 1)

		query.Start = &start
		query.End = &end

		return query, nil
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("%w: invalid page", apperrors.ErrInvalidRequest)
		}
		query.Page = page
	}

	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return nil, fmt.Errorf("%w: invalid pageSize", apperrors.ErrInvalidRequest)
		}
		query.PageSize = pageSize
	}

	return query, nil
}

// envelope is the uniform response shape: clients branch on the success flag
// rather than the HTTP status alone.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func (s *Server) respondSuccess(w http.ResponseWriter, code int, message string, data any) {
	s.respond(w, code, envelope{Success: true, Message: message, Data: data})
}

func (s *Server) respondFailure(w http.ResponseWriter, code int, message string, errs any) {
	s.respond(w, code, envelope{Success: false, Message: message, Errors: errs})
}

// respond is a helper function to encode data to JSON and write it to the response.
func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode response", sl.Err(err))
	}
}

// decodeAndValidate deserializes a JSON request body into a struct and then
// runs validation checks on it.
func (s *Server) decodeAndValidate(r *http.Request, v any) error {
	if err := s.decode(r.Body, v); err != nil {
		return err
	}

	if err := validation.ValidateStruct(v); err != nil {
		return err
	}

	return nil
}

func (s *Server) decode(body io.ReadCloser, v any) error {
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	return nil
}

// handleServiceError provides centralized error handling for all HTTP handlers.
// It logs the internal error and maps it to a user-friendly envelope response.
func (s *Server) handleServiceError(w http.ResponseWriter, op string, err error) {
	log := s.log.With(slog.String("op", op))
	log.Error("service error occurred", sl.Err(err))

	var validationErr *validation.ValidationError

	switch {
	case errors.As(err, &validationErr):
		s.respondFailure(w, http.StatusBadRequest, "validation failed", validationErr.Errors)
	case errors.Is(err, apperrors.ErrInvalidRequest):
		s.respondFailure(w, http.StatusBadRequest, "invalid request", []string{err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		s.respondFailure(w, http.StatusUnauthorized, "unauthorized", []string{"unauthorized"})
	case errors.Is(err, apperrors.ErrNotFound):
		s.respondFailure(w, http.StatusNotFound, "resource not found", []string{err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyExists):
		s.respondFailure(w, http.StatusConflict, "resource already exists", []string{err.Error()})
	default:
		s.respondFailure(w, http.StatusInternalServerError, "internal server error", []string{err.Error()})
	}
}
