// Package promo orchestrates the promotion games for the HTTP layer. It
// owns one wheel session and one scratch session per (game, customer),
// proxies campaign data from the promotions service, persists spins and
// reveals, and drives the coupon claim flow.
package promo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MJE43/promo-games-go/internal/engine"
	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/scripting"
	"github.com/MJE43/promo-games-go/internal/store"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

var (
	// ErrInvalidInput reports a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotRevealed is returned when a scratch card is claimed before its
	// reveal latched.
	ErrNotRevealed = errors.New("scratch card not revealed")
	// ErrQuizCompleted is returned when the customer already took the quiz.
	ErrQuizCompleted = errors.New("quiz already completed")
	// ErrClaimSettled is returned when a quiz submission tries to finish a
	// spin claim that is not waiting on a quiz.
	ErrClaimSettled = errors.New("spin claim is not awaiting a quiz")
)

// Upstream is the subset of the promotions client the service uses.
type Upstream interface {
	GetSpinWheel(ctx context.Context, wheelID, customerID string) (*upstream.SpinWheel, error)
	GetCoupons(ctx context.Context, couponIDs []string) ([]upstream.Coupon, error)
	GetFinalCoupon(ctx context.Context, couponID string) (*upstream.Coupon, error)
	CheckWheelClaim(ctx context.Context, wheelID, customerID, couponID string) (string, error)
	ClaimWheelCoupon(ctx context.Context, wheelID, customerID, couponID string) error
	MarkWheelAlreadyClaimed(ctx context.Context, wheelID, customerID, couponID string) error
	GetScratchCard(ctx context.Context, cardID, customerID string) (*upstream.ScratchCard, error)
	CheckScratchClaim(ctx context.Context, cardID, customerID, couponID string) (string, error)
	GetQuiz(ctx context.Context, quizID, customerID, gameType string) (*upstream.Quiz, error)
	SubmitQuiz(ctx context.Context, quizID, customerID string, responses []upstream.QuizResponse) (*upstream.SubmitResult, error)
}

// Targeter picks the eligible segments for a customer.
type Targeter interface {
	Target(customer scripting.Customer, segments []games.Segment) (games.TargetSet, error)
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	RotationPolicy games.RotationPolicy
	ScratchPolicy  games.ScratchPolicy
	CanvasWidth    int
	CanvasHeight   int

	// Source is shared by every session and is wrapped with engine.Locked.
	Source engine.Source
	// Audited gives each wheel session its own server seed and draws every
	// spin from the HMAC seed stream, recording the seeds on the spin.
	Audited  bool
	Targeter Targeter
	Receipts *ReceiptSigner
	Clock    func() time.Time
	Logger   logrus.FieldLogger
}

// Service is safe for concurrent use.
type Service struct {
	up       Upstream
	db       store.DB
	receipts *ReceiptSigner
	targeter Targeter
	src      engine.Source
	audited  bool
	now      func() time.Time
	log      logrus.FieldLogger

	rotation      games.RotationPolicy
	scratch       games.ScratchPolicy
	width, height int

	mu      sync.Mutex
	wheels  map[string]*wheelSession
	cards   map[string]*scratchSession
	quizzes map[string]games.Quiz
}

// NewService wires a Service. up, db and opts.Receipts are required.
func NewService(up Upstream, db store.DB, opts Options) (*Service, error) {
	if up == nil || db == nil {
		return nil, fmt.Errorf("promo: upstream and store are required")
	}
	if opts.Receipts == nil {
		return nil, fmt.Errorf("promo: receipt signer is required")
	}
	if opts.RotationPolicy == (games.RotationPolicy{}) {
		opts.RotationPolicy = games.DefaultRotationPolicy()
	}
	if opts.ScratchPolicy == (games.ScratchPolicy{}) {
		opts.ScratchPolicy = games.DefaultScratchPolicy()
	}
	if err := opts.RotationPolicy.Validate(); err != nil {
		return nil, err
	}
	if err := opts.ScratchPolicy.Validate(); err != nil {
		return nil, err
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = 320
	}
	if opts.CanvasHeight <= 0 {
		opts.CanvasHeight = 320
	}
	if opts.Source == nil {
		opts.Source = engine.Default()
	}
	opts.Source = engine.Locked(opts.Source)
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Service{
		up:       up,
		db:       db,
		receipts: opts.Receipts,
		targeter: opts.Targeter,
		src:      opts.Source,
		audited:  opts.Audited,
		now:      opts.Clock,
		log:      opts.Logger.WithField("component", "promo"),
		rotation: opts.RotationPolicy,
		scratch:  opts.ScratchPolicy,
		width:    opts.CanvasWidth,
		height:   opts.CanvasHeight,
		wheels:   make(map[string]*wheelSession),
		cards:    make(map[string]*scratchSession),
		quizzes:  make(map[string]games.Quiz),
	}, nil
}

// ContactForm is a contact-form submission as the site posts it.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// SubmitContact validates and stores a contact request.
func (s *Service) SubmitContact(ctx context.Context, form ContactForm) (*store.Contact, error) {
	name := strings.TrimSpace(form.Name)
	email := strings.TrimSpace(form.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}

	c := &store.Contact{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(form.Phone),
		Company:   strings.TrimSpace(form.Company),
		Message:   strings.TrimSpace(form.Message),
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.SaveContact(ctx, c); err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}
	s.log.WithField("contact_id", c.ID).Info("contact request received")
	return c, nil
}

// PruneSessions drops wheel and scratch sessions idle for longer than
// idle and returns how many were removed.
func (s *Service) PruneSessions(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ws := range s.wheels {
		if ws.idleSince().Before(cutoff) {
			delete(s.wheels, k)
			removed++
		}
	}
	for k, cs := range s.cards {
		if cs.prunable(cutoff) {
			delete(s.cards, k)
			removed++
		}
	}
	return removed
}

// SessionCounts reports the live wheel and scratch sessions.
func (s *Service) SessionCounts() (wheels, cards int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wheels), len(s.cards)
}

func sessionKey(gameID, customerID string) string {
	return gameID + "\x00" + customerID
}

func requireIDs(gameID, customerID string) error {
	if strings.TrimSpace(gameID) == "" {
		return fmt.Errorf("%w: game id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(customerID) == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	return nil
}

// hashID shortens an identifier for logs.
func hashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}
