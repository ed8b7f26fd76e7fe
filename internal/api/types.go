package api

import (
	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/promo"
)

// ErrorResponse represents a structured error response with context
type ErrorResponse struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e ErrorResponse) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeValidation      = "validation_error"
	ErrTypeInvalidArgument = "invalid_argument"
	ErrTypeInvalidReceipt  = "invalid_receipt"

	// Game-related errors
	ErrTypeNotFound      = "not_found"
	ErrTypeConflict      = "conflict"
	ErrTypeNotRevealed   = "not_revealed"
	ErrTypeQuizCompleted = "quiz_completed"
	ErrTypeUpstream      = "upstream_error"
	ErrTypeUpstreamAuth  = "upstream_auth_error"

	// System errors
	ErrTypeTimeout  = "timeout"
	ErrTypeInternal = "internal_error"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategoryUpstream   ErrorCategory = "upstream"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidArgument, ErrTypeInvalidReceipt:
		return CategoryValidation
	case ErrTypeNotFound, ErrTypeConflict, ErrTypeNotRevealed, ErrTypeQuizCompleted:
		return CategoryGame
	case ErrTypeUpstream, ErrTypeUpstreamAuth:
		return CategoryUpstream
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains server version information
type VersionInfo struct {
	ServerVersion string `json:"server_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// ContactResponse mirrors the site's contact endpoint.
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PlanRequest asks for a rotation plan without a session.
type PlanRequest struct {
	Current      float64               `json:"current"`
	WinningIndex int                   `json:"winning_index"`
	Segments     int                   `json:"segments"`
	Policy       *games.RotationPolicy `json:"policy,omitempty"`
}

// PlanResponse is the planned rest rotation.
type PlanResponse struct {
	FinalRotation float64 `json:"final_rotation"`
	SegmentAngle  float64 `json:"segment_angle"`
	PointerAngle  float64 `json:"pointer_angle"`
	SegmentAtRest int     `json:"segment_at_rest"`
}

// ClaimRequest carries a spin receipt.
type ClaimRequest struct {
	Receipt string `json:"receipt"`
}

// StrokesRequest carries a batch of pointer gestures.
type StrokesRequest struct {
	Strokes []promo.Stroke `json:"strokes"`
}

// SubmitQuizRequest carries quiz answers and the game they unlock.
type SubmitQuizRequest struct {
	CustomerID    string        `json:"customer_id"`
	Answers       games.Answers `json:"answers"`
	Receipt       string        `json:"receipt,omitempty"`
	ScratchCardID string        `json:"scratch_card_id,omitempty"`
}

// GamesResponse represents the games metadata response
type GamesResponse struct {
	Games         []games.GameSpec `json:"games"`
	ServerVersion string           `json:"server_version"`
}
