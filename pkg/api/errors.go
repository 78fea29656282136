package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/convoyhq/convoy/pkg/services"
)

// Machine-readable error kinds. These go out in the envelope's "error" field
// and clients switch on them, so the strings are part of the wire contract.
const (
	kindInvalidInput      = "InvalidInput"
	kindNotAuthorized     = "NotAuthorized"
	kindNotAMember        = "NotAMember"
	kindNotFound          = "NotFound"
	kindConflict          = "Conflict"
	kindInvalidTransition = "InvalidTransition"
	kindNotYourInstance   = "NotYourInstance"
	kindNotActive         = "NotActive"
	kindAlreadyStarted    = "AlreadyStarted"
	kindRateLimited       = "RateLimited"
	kindUnavailable       = "Unavailable"
	kindServerError       = "ServerError"
)

// apiError couples an HTTP status with the kind clients key on plus a
// human-readable message.
type apiError struct {
	Code    int
	Kind    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(code int, kind, message string) *apiError {
	return &apiError{Code: code, Kind: kind, Message: message}
}

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *apiError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return newAPIError(http.StatusBadRequest, kindInvalidInput, validErr.Error())
	}
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, kindInvalidInput, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		return newAPIError(http.StatusBadRequest, kindInvalidTransition, err.Error())
	case errors.Is(err, services.ErrNotActive):
		return newAPIError(http.StatusBadRequest, kindNotActive, err.Error())
	case errors.Is(err, services.ErrNotAuthorized):
		return newAPIError(http.StatusUnauthorized, kindNotAuthorized, "not authorized")
	case errors.Is(err, services.ErrNotAMember):
		return newAPIError(http.StatusForbidden, kindNotAMember, "not a member of this group")
	case errors.Is(err, services.ErrNotYourInstance):
		return newAPIError(http.StatusForbidden, kindNotYourInstance, "instance belongs to another user")
	case errors.Is(err, services.ErrNotFound):
		return newAPIError(http.StatusNotFound, kindNotFound, "resource not found")
	case errors.Is(err, services.ErrConflict):
		return newAPIError(http.StatusConflict, kindConflict, err.Error())
	case errors.Is(err, services.ErrAlreadyStarted):
		return newAPIError(http.StatusConflict, kindAlreadyStarted, "journey already started")
	case errors.Is(err, services.ErrUnavailable):
		return newAPIError(http.StatusServiceUnavailable, kindUnavailable, "service temporarily unavailable")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return newAPIError(http.StatusInternalServerError, kindServerError, "internal server error")
}

// kindForStatus covers errors the framework raises itself, like unknown
// routes and bad methods, which carry a status but no kind.
func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return kindInvalidInput
	case http.StatusUnauthorized:
		return kindNotAuthorized
	case http.StatusForbidden:
		return kindNotAuthorized
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusConflict:
		return kindConflict
	case http.StatusTooManyRequests:
		return kindRateLimited
	case http.StatusServiceUnavailable:
		return kindUnavailable
	default:
		return kindServerError
	}
}

// httpErrorHandler renders every error as a JSON envelope carrying the kind
// and the request id so clients can correlate failures with server logs.
func httpErrorHandler(c *echo.Context, err error) {
	var ae *apiError
	if !errors.As(err, &ae) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := he.Message
			if msg == "" {
				msg = http.StatusText(he.Code)
			}
			ae = newAPIError(he.Code, kindForStatus(he.Code), msg)
		} else {
			ae = mapServiceError(err)
		}
	}

	resp := ErrorResponse{
		Error:     ae.Kind,
		Message:   ae.Message,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	if jsonErr := c.JSON(ae.Code, resp); jsonErr != nil {
		slog.Error("Failed to write error response", "error", jsonErr)
	}
}
