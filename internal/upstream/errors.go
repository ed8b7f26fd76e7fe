package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Messages the promotions service uses to signal claim state.
const (
	MsgAlreadyClaimed = "Coupon has already been claimed."
	MsgQuizRequired   = "Customer has not completed the allocated quiz campaign."
	MsgQuizCompleted  = "you have already completed this quiz"
)

// HTTPError represents a non-2xx response from the promotions service.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for rate limits (429) and server errors (5xx).
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound returns true for 404.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// APIError is a 2xx response whose envelope reports status false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: request rejected: %s", e.Message)
}

// AuthError indicates the API key was rejected.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// ClaimStatus is the outcome of a claim check.
type ClaimStatus string

const (
	// ClaimEligible: the check passed and the coupon can be claimed.
	ClaimEligible       ClaimStatus = "eligible"
	ClaimAlreadyClaimed ClaimStatus = "already_claimed"
	ClaimQuizRequired   ClaimStatus = "quiz_required"
	ClaimQuizCompleted  ClaimStatus = "quiz_completed"
	// ClaimShowCoupon: the check was refused but the coupon details may
	// still be shown.
	ClaimShowCoupon ClaimStatus = "show_coupon"
	ClaimExpired    ClaimStatus = "expired"
)

// ClassifyClaim maps a claim check's message and error to a ClaimStatus.
// message is the envelope message of a successful check.
func ClassifyClaim(message string, err error) ClaimStatus {
	if err == nil {
		if message == MsgAlreadyClaimed {
			return ClaimAlreadyClaimed
		}
		return ClaimEligible
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message == MsgQuizRequired {
			return ClaimQuizRequired
		}
		return ClaimExpired
	}

	switch {
	case httpErr.Message == MsgQuizRequired:
		return ClaimQuizRequired
	case httpErr.StatusCode == http.StatusConflict && httpErr.Message == MsgQuizCompleted:
		return ClaimQuizCompleted
	case httpErr.StatusCode == http.StatusBadRequest:
		return ClaimShowCoupon
	default:
		return ClaimExpired
	}
}
