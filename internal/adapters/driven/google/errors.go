package google

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// IsUnauthorised returns true if the error indicates an invalid API key.
func IsUnauthorised(err error) bool {
	return statusCode(err) == http.StatusUnauthorized
}

// IsForbidden returns true if the error indicates the key lacks access to the API.
func IsForbidden(err error) bool {
	return statusCode(err) == http.StatusForbidden
}

// IsNotFound returns true if the error indicates a missing model or resource.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || statusCode(err) == http.StatusTooManyRequests
}

// WrapError converts a Google API error into a *domain.ProviderError.
// Other errors are returned unchanged.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	msg := gerr.Message
	if msg == "" {
		msg = strings.TrimSpace(gerr.Body)
	}
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}

	return &domain.ProviderError{
		Provider:   provider,
		StatusCode: gerr.Code,
		Message:    msg,
		RetryAfter: retryAfter(gerr.Header),
	}
}

func statusCode(err error) int {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
