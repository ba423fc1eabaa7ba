package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response
// consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// errorCode extracts the domain error code, if any.
func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// statusByCode maps the domain error taxonomy onto HTTP statuses. Caller
// mistakes are 4xx; provider failures surface as bad gateways with their
// generic, non-leaking messages.
var statusByCode = map[string]int{
	"invalid_input":        http.StatusBadRequest,
	"invalid_query":        http.StatusBadRequest,
	"invalid_location":     http.StatusBadRequest,
	"invalid_coordinates":  http.StatusBadRequest,
	"parse_error":          http.StatusBadRequest,
	"no_results":           http.StatusNotFound,
	"no_stored_location":   http.StatusNotFound,
	"no_data":              http.StatusBadGateway,
	"insufficient_data":    http.StatusBadGateway,
	"provider_error":       http.StatusBadGateway,
	"ip_unavailable":       http.StatusBadGateway,
	"permission_denied":    http.StatusForbidden,
	"position_unavailable": http.StatusServiceUnavailable,
}

func domainHTTPError(err error, fallbackMessage string) *HTTPError {
	code := errorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return NewHTTPError(status, code, apperrors.Message(err, fallbackMessage), err)
}
