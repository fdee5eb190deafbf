package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// EndpointGenerate labels errors raised by content generation calls
const EndpointGenerate = "models.generateContent"

// Classify converts a raw SDK or transport error into one of the typed
// errors of this package. Typed errors and context errors pass through
// unchanged; anything unrecognised is returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Status, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyStatus(apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError(err.Error())
		}
		return NewNetworkErrorWithEndpoint("generate content", EndpointGenerate, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewNetworkErrorWithEndpoint("generate content", EndpointGenerate, err)
	}

	return classifyMessage(err)
}

func isTyped(err error) bool {
	var (
		authErr    *AuthError
		apiErr     *APIError
		timeoutErr *TimeoutError
		limitErr   *UsageLimitError
		overloaded *OverloadedError
		netErr     *NetworkError
		blocked    *BlockedError
		parseErr   *ParseError
		dlErr      *DownloadError
	)
	return errors.As(err, &authErr) || errors.As(err, &apiErr) || errors.As(err, &timeoutErr) ||
		errors.As(err, &limitErr) || errors.As(err, &overloaded) || errors.As(err, &netErr) ||
		errors.As(err, &blocked) || errors.As(err, &parseErr) || errors.As(err, &dlErr) ||
		errors.Is(err, ErrNoAPIKey)
}

// classifyStatus maps an HTTP status reported by the API to a typed error
func classifyStatus(code int, status, message string) error {
	lower := strings.ToLower(message + " " + status)

	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return NewUsageLimitError(message)
	case code == http.StatusUnauthorized || code == http.StatusForbidden,
		strings.Contains(lower, "api key"), strings.Contains(lower, "api_key_invalid"):
		return NewAuthError(message)
	case code == http.StatusServiceUnavailable || status == "UNAVAILABLE", strings.Contains(lower, "overloaded"):
		return NewOverloadedError(message)
	case code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		return NewTimeoutError(message)
	}

	return &APIError{
		StatusCode: code,
		Status:     status,
		Endpoint:   EndpointGenerate,
		Message:    message,
	}
}

// classifyMessage pattern-matches the stringified error
func classifyMessage(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "429", "quota", "resource_exhausted", "rate limit"):
		return NewUsageLimitError(msg)
	case containsAny(lower, "api key", "api_key_invalid", "permission_denied"):
		return NewAuthError(msg)
	case containsAny(lower, "503", "overloaded", "unavailable"):
		return NewOverloadedError(msg)
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return NewTimeoutError(msg)
	case containsAny(lower, "connection refused", "connection reset", "no such host", "network is unreachable", "broken pipe"):
		return NewNetworkErrorWithEndpoint("generate content", EndpointGenerate, err)
	}

	return err
}

// IsRetryable reports whether a failed call is worth another attempt.
// Overloaded, rate-limited, timed-out and network failures are retryable,
// as are 5xx API errors. Authentication, parse, safety and context errors
// are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	err = Classify(err)

	if IsOverloaded(err) || IsRateLimitError(err) || IsTimeoutError(err) || IsNetworkError(err) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
