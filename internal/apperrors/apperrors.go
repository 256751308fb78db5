package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrUnauthorized  = errors.New("unauthorized")

	ErrInvalidRequest = errors.New("invalid request body")

	// ErrCredential means the app's signing key could not be resolved or used.
	ErrCredential = errors.New("credential error")

	// ErrUpstream covers non-success responses from GitHub or the LLM API.
	ErrUpstream = errors.New("upstream error")
)

type UpstreamError struct {
	Service string
	Status  int
	Detail  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Detail)
}
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

type NotFoundError struct{ Resource, Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Name)
}
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type EmailExistsError struct{ Email string }

func (e *EmailExistsError) Error() string {
	return fmt.Sprintf("email '%s' already exists in the waitlist", e.Email)
}
func (e *EmailExistsError) Is(target error) bool { return target == ErrAlreadyExists }
