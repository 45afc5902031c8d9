package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	assert.Equal(t, "None", CategorizeError(nil))
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"Credentials", ErrCredentials, "Config_Credentials"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"FilesystemNotExist", fmt.Errorf("%w: %w", ErrFilesystem, os.ErrNotExist), "Filesystem_NotExist"},
		{"FilesystemPermission", fmt.Errorf("%w: %w", ErrFilesystem, os.ErrPermission), "Filesystem_Permission"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_HTTPStatusError(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{http.StatusNotFound, "HTTP_404"},
		{http.StatusForbidden, "HTTP_403"},
		{http.StatusUnauthorized, "HTTP_401"},
		{http.StatusTooManyRequests, "HTTP_429"},
		{http.StatusBadRequest, "HTTP_4xx"},
		{http.StatusBadGateway, "HTTP_5xx"},
		{http.StatusNotModified, "HTTP_OtherStatus"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := NewHTTPStatusError(&http.Response{StatusCode: tt.code, Status: http.StatusText(tt.code)})
			assert.Equal(t, tt.expected, CategorizeError(err))
			assert.Equal(t, tt.code, StatusCode(fmt.Errorf("outer: %w", err)))
		})
	}
}

func TestCategorizeError_RetryFailed(t *testing.T) {
	server := NewHTTPStatusError(&http.Response{StatusCode: 503, Status: "503 Service Unavailable"})
	assert.Equal(t, "RetryFailed_HTTPServer", CategorizeError(fmt.Errorf("%w: %w", ErrRetryFailed, server)))
	assert.Equal(t, "RetryFailed_ConnectionRefused",
		CategorizeError(fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused"))))
	assert.Equal(t, "RetryFailed_Unknown", CategorizeError(ErrRetryFailed))
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"URLParsing", fmt.Errorf("%w: URL parsing failed", ErrParsing), "Content_ParsingURL"},
		{"HTMLParsing", fmt.Errorf("%w: HTML parsing failed", ErrParsing), "Content_ParsingHTML"},
		{"JSONParsing", fmt.Errorf("%w: JSON parsing failed", ErrParsing), "Content_ParsingJSON"},
		{"XMLParsing", fmt.Errorf("%w: XML parsing failed", ErrParsing), "Content_ParsingXML"},
		{"GenericParsing", fmt.Errorf("%w: bad input", ErrParsing), "Content_ParsingOther"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_ContextAndNetwork(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContextCanceled", context.Canceled, "System_ContextCanceled"},
		{"ContextDeadlineExceeded", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
		{"Timeout", errors.New("connection timeout occurred"), "Network_TimeoutGeneric"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"TLS", errors.New("tls handshake failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
		{"BrokenPipe", errors.New("broken pipe"), "Network_BrokenPipe"},
		{"Unknown", errors.New("something odd"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

// --- SanitizeDirName Tests ---

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"eyecare", "eyecare"},
		{"https://Example.com/", "example.com"},
		{"http://example.com/es", "example.com_es"},
		{"  My Site  ", "my_site"},
		{"", "site"},
		{"///", "site"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeDirName(tt.input))
		})
	}

	long := ""
	for i := 0; i < 150; i++ {
		long += "a"
	}
	assert.LessOrEqual(t, len(SanitizeDirName(long)), 100)
}

// --- CompileRegexPatterns Tests ---

func TestCompileRegexPatterns(t *testing.T) {
	compiled, err := CompileRegexPatterns([]string{`patient[-_]?\d+`, "", `\d{3}-\d{2}-\d{4}`}, true)
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.True(t, compiled[0].MatchString("PATIENT-12345"))

	compiled, err = CompileRegexPatterns([]string{`abc`}, false)
	require.NoError(t, err)
	assert.False(t, compiled[0].MatchString("ABC"))
}

func TestCompileRegexPatterns_InvalidPattern(t *testing.T) {
	_, err := CompileRegexPatterns([]string{`valid`, `[invalid`}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigValidation)
	assert.Contains(t, err.Error(), "#2")
}

// --- Hash Tests ---

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", SHA256Hex([]byte("hello world")))
}

func TestFileSHA256(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("hello world"), 0644))

	got, err := FileSHA256(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, SHA256Hex([]byte("hello world")), got)

	_, err = FileSHA256(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// --- WrapErrorf Tests ---

func TestWrapErrorf(t *testing.T) {
	assert.NoError(t, WrapErrorf(nil, "some context"))

	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, original)
	assert.Equal(t, "context value: original error", wrapped.Error())
}
