// Package store persists contact submissions, spins and reveals.
//
// Two backends implement DB: SQLite (modernc, the default) and Postgres
// (pgx). Both apply the embedded goose migrations on Migrate.
package store

import (
	"context"
	"embed"
	"errors"
	"time"
)

//go:embed migrations
var migrations embed.FS

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("store: conflict")
)

// DB represents the database interface
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error

	SaveContact(ctx context.Context, c *Contact) error
	ListContacts(ctx context.Context, limit, offset int) ([]Contact, error)

	SaveSpin(ctx context.Context, s *SpinRecord) error
	GetSpin(ctx context.Context, id string) (*SpinRecord, error)
	UpdateSpinClaim(ctx context.Context, id, status string, at time.Time) error

	SaveReveal(ctx context.Context, r *RevealRecord) error
	GetReveal(ctx context.Context, cardID, customerID string) (*RevealRecord, error)
}

// Contact is a contact-form submission.
type Contact struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Company   string    `json:"company" db:"company"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SpinRecord is a server-selected wheel outcome.
type SpinRecord struct {
	ID            string     `json:"id" db:"id"`
	WheelID       string     `json:"wheel_id" db:"wheel_id"`
	CustomerID    string     `json:"customer_id" db:"customer_id"`
	WinningIndex  int        `json:"winning_index" db:"winning_index"`
	SegmentID     string     `json:"segment_id" db:"segment_id"`
	FinalRotation float64    `json:"final_rotation" db:"final_rotation"`
	// Seeds are set for spins drawn from the audited seed stream.
	ServerSeed  string     `json:"server_seed,omitempty" db:"server_seed"`
	ClientSeed  string     `json:"client_seed,omitempty" db:"client_seed"`
	Nonce       int64      `json:"nonce" db:"nonce"`
	ClaimStatus string     `json:"claim_status,omitempty" db:"claim_status"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// RevealRecord marks the moment a customer's scratch card latched.
type RevealRecord struct {
	ID              string    `json:"id" db:"id"`
	CardID          string    `json:"card_id" db:"card_id"`
	CustomerID      string    `json:"customer_id" db:"customer_id"`
	CouponID        string    `json:"coupon_id" db:"coupon_id"`
	ClearedFraction float64   `json:"cleared_fraction" db:"cleared_fraction"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
