package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrParsing          = errors.New("parsing error")                    // Wraps specific parsing error (URL, JSON, XML, HTML)
	ErrFilesystem       = errors.New("filesystem error")                 // Wraps os errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrCredentials      = errors.New("credentials unavailable")
)

// HTTPStatusError records a non-2xx response. Kind is one of the HTTP sentinels above.
type HTTPStatusError struct {
	Kind   error
	Code   int
	Status string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%v: status %d %s", e.Kind, e.Code, e.Status)
}

func (e *HTTPStatusError) Unwrap() error { return e.Kind }

// NewHTTPStatusError classifies resp's status code into the matching sentinel.
func NewHTTPStatusError(resp *http.Response) *HTTPStatusError {
	kind := ErrOtherHTTPError
	switch {
	case resp.StatusCode >= 500:
		kind = ErrServerHTTPError
	case resp.StatusCode >= 400:
		kind = ErrClientHTTPError
	}
	return &HTTPStatusError{Kind: kind, Code: resp.StatusCode, Status: resp.Status}
}

// StatusCode extracts the HTTP status code carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// WrapErrorf prefixes err with a formatted message, keeping it unwrappable. Returns nil for a nil err.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging/reports.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		underlying := errors.Unwrap(err)
		if underlying != nil {
			if errors.Is(underlying, ErrServerHTTPError) {
				return "RetryFailed_HTTPServer"
			}
			if errors.Is(underlying, ErrClientHTTPError) {
				return "RetryFailed_HTTPClient"
			}

			errMsg := underlying.Error()
			if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "Timeout") || strings.Contains(errMsg, "deadline exceeded") {
				return "RetryFailed_NetworkTimeout"
			}
			if strings.Contains(errMsg, "connection refused") {
				return "RetryFailed_ConnectionRefused"
			}
			if strings.Contains(errMsg, "no such host") {
				return "RetryFailed_DNSLookup"
			}
			var netErr net.Error
			if errors.As(underlying, &netErr) && netErr.Timeout() {
				return "RetryFailed_NetworkTimeout"
			}
			return "RetryFailed_NetworkOther"
		}
		return "RetryFailed_Unknown"
	case errors.Is(err, ErrClientHTTPError):
		switch StatusCode(err) {
		case http.StatusNotFound:
			return "HTTP_404"
		case http.StatusForbidden:
			return "HTTP_403"
		case http.StatusUnauthorized:
			return "HTTP_401"
		case http.StatusTooManyRequests:
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		if strings.Contains(errMsg, "XML") {
			return "Content_ParsingXML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrCredentials):
		return "Config_Credentials"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
