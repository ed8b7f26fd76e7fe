package promo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/store"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

// maxStrokePoints bounds the points accepted in one Scratch call.
const maxStrokePoints = 4096

// Point is a canvas coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one pointer gesture. A zero Radius uses the policy brush.
type Stroke struct {
	Points []Point `json:"points"`
	Radius float64 `json:"radius,omitempty"`
}

// ScratchView is the state of a customer's card. Prize stays empty until
// the reveal latches.
type ScratchView struct {
	CardID          string  `json:"card_id"`
	Name            string  `json:"name,omitempty"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	BrushRadius     float64 `json:"brush_radius"`
	Phase           string  `json:"phase"`
	ClearedFraction float64 `json:"cleared_fraction"`
	Revealed        bool    `json:"revealed"`
	Prize           *Prize  `json:"prize,omitempty"`
}

type scratchSession struct {
	mu       sync.Mutex
	cardID   string
	customer string
	meta     *upstream.ScratchCard
	card     *games.ScratchCard
	// restored is set when a reveal was recorded in an earlier session.
	restored bool
	latched  bool
	prize    *Prize
	lastUsed time.Time
}

// prunable reports whether the session went unused since cutoff. A reveal
// the store has not accepted yet keeps the session alive.
func (cs *scratchSession) prunable(cutoff time.Time) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return !cs.latched && cs.lastUsed.Before(cutoff)
}

func (cs *scratchSession) revealed() bool {
	return cs.restored || cs.card.Revealed()
}

func (cs *scratchSession) view() *ScratchView {
	v := &ScratchView{
		CardID:          cs.cardID,
		Name:            cs.meta.Name,
		Width:           cs.card.Width(),
		Height:          cs.card.Height(),
		BrushRadius:     cs.card.Policy().BrushRadius,
		Phase:           cs.card.Phase().String(),
		ClearedFraction: cs.card.ClearedFraction(),
		Revealed:        cs.revealed(),
	}
	if v.Revealed {
		v.Phase = games.Revealed.String()
		v.Prize = cs.prize
	}
	return v
}

// LoadScratchCard opens a fresh coated card for the customer. A card the
// customer revealed before comes back already revealed.
func (s *Service) LoadScratchCard(ctx context.Context, cardID, customerID string) (*ScratchView, error) {
	if err := requireIDs(cardID, customerID); err != nil {
		return nil, err
	}
	fresh, err := s.openScratch(ctx, cardID, customerID)
	if err != nil {
		return nil, err
	}
	cs, inserted := s.adoptScratch(fresh)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !inserted && !cs.revealed() {
		cs.meta, cs.card = fresh.meta, fresh.card
		cs.card.OnReveal = func(float64) { cs.latched = true }
		cs.restored, cs.prize = fresh.restored, fresh.prize
	}
	cs.lastUsed = s.now()
	if err := s.persistReveal(ctx, cs); err != nil {
		return nil, err
	}
	return cs.view(), nil
}

// adoptScratch registers fresh unless a session for the same key already
// exists, in which case the existing session is returned.
func (s *Service) adoptScratch(fresh *scratchSession) (*scratchSession, bool) {
	key := sessionKey(fresh.cardID, fresh.customer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.cards[key]; cur != nil {
		return cur, false
	}
	s.cards[key] = fresh
	return fresh, true
}

// openScratch builds an unregistered session for the card.
func (s *Service) openScratch(ctx context.Context, cardID, customerID string) (*scratchSession, error) {
	meta, err := s.up.GetScratchCard(ctx, cardID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load scratch card: %w", err)
	}
	if meta.CouponID == "" {
		return nil, fmt.Errorf("load scratch card: %w", &upstream.APIError{Message: "scratch card has no coupon"})
	}
	card, err := games.NewScratchCard(s.width, s.height, s.scratch)
	if err != nil {
		return nil, err
	}

	cs := &scratchSession{
		cardID:   cardID,
		customer: customerID,
		meta:     meta,
		card:     card,
		lastUsed: s.now(),
	}
	card.OnReveal = func(float64) { cs.latched = true }

	prev, err := s.db.GetReveal(ctx, cardID, customerID)
	switch {
	case err == nil:
		cs.restored = true
		cs.prize = s.prizeFor(ctx, prev.CouponID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load reveal: %w", err)
	}
	return cs, nil
}

func (s *Service) scratchSession(ctx context.Context, cardID, customerID string) (*scratchSession, error) {
	s.mu.Lock()
	cs := s.cards[sessionKey(cardID, customerID)]
	s.mu.Unlock()
	if cs != nil {
		return cs, nil
	}
	fresh, err := s.openScratch(ctx, cardID, customerID)
	if err != nil {
		return nil, err
	}
	cs, _ = s.adoptScratch(fresh)
	return cs, nil
}

// Scratch applies pointer strokes to the customer's card. When the reveal
// latches it is recorded and the prize is attached to the view.
func (s *Service) Scratch(ctx context.Context, cardID, customerID string, strokes []Stroke) (*ScratchView, error) {
	if err := requireIDs(cardID, customerID); err != nil {
		return nil, err
	}
	total := 0
	for _, st := range strokes {
		total += len(st.Points)
	}
	if total > maxStrokePoints {
		return nil, fmt.Errorf("%w: %d points exceeds %d", ErrInvalidInput, total, maxStrokePoints)
	}

	cs, err := s.scratchSession(ctx, cardID, customerID)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastUsed = s.now()

	if !cs.restored {
		brush := cs.card.Policy().BrushRadius
		for _, st := range strokes {
			r := st.Radius
			if r == 0 {
				r = brush
			}
			for _, p := range st.Points {
				cs.card.StrokeTo(p.X, p.Y, r)
			}
			cs.card.EndStroke()
		}
	}

	if err := s.persistReveal(ctx, cs); err != nil {
		return nil, err
	}
	return cs.view(), nil
}

// persistReveal records a latched reveal. The latch stays pending until
// the store accepts it, so a failed write is retried by the next call.
// cs.mu must be held.
func (s *Service) persistReveal(ctx context.Context, cs *scratchSession) error {
	if !cs.latched {
		return nil
	}
	rec := &store.RevealRecord{
		ID:              uuid.NewString(),
		CardID:          cs.cardID,
		CustomerID:      cs.customer,
		CouponID:        cs.meta.CouponID,
		ClearedFraction: cs.card.ClearedFraction(),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.db.SaveReveal(ctx, rec); err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("save reveal: %w", err)
	}
	cs.latched = false
	cs.prize = s.prizeFor(ctx, cs.meta.CouponID)
	s.log.WithField("card_id", cs.cardID).
		WithField("customer", hashID(cs.customer)).
		WithField("cleared", rec.ClearedFraction).
		Info("scratch card revealed")
	return nil
}

// prizeFor looks up the display details of a coupon. Lookup failures are
// logged and leave the prize empty.
func (s *Service) prizeFor(ctx context.Context, couponID string) *Prize {
	coupons, err := s.up.GetCoupons(ctx, []string{couponID})
	if err != nil || len(coupons) == 0 {
		if err != nil {
			s.log.WithError(err).WithField("coupon_id", couponID).Warn("prize lookup failed")
		}
		return &Prize{CouponID: couponID}
	}
	c := coupons[0]
	return &Prize{CouponID: c.ID, Name: c.Name, Discount: c.Discount, Label: c.DiscountLabel()}
}

// revealedCoupon returns the coupon behind a revealed card, or
// ErrNotRevealed.
func (s *Service) revealedCoupon(ctx context.Context, cardID, customerID string) (string, error) {
	s.mu.Lock()
	cs := s.cards[sessionKey(cardID, customerID)]
	s.mu.Unlock()
	if cs != nil {
		cs.mu.Lock()
		revealed, couponID := cs.revealed(), cs.meta.CouponID
		err := s.persistReveal(ctx, cs)
		cs.mu.Unlock()
		if err != nil {
			return "", err
		}
		if revealed {
			return couponID, nil
		}
	}

	rec, err := s.db.GetReveal(ctx, cardID, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotRevealed
	}
	if err != nil {
		return "", fmt.Errorf("load reveal: %w", err)
	}
	return rec.CouponID, nil
}

// ClaimScratch runs the claim flow for a revealed card.
func (s *Service) ClaimScratch(ctx context.Context, cardID, customerID string) (*ClaimOutcome, error) {
	if err := requireIDs(cardID, customerID); err != nil {
		return nil, err
	}
	couponID, err := s.revealedCoupon(ctx, cardID, customerID)
	if err != nil {
		return nil, err
	}

	return s.runClaim(ctx, claimSubject{
		gameType:   gameTypeScratch,
		gameID:     cardID,
		customerID: customerID,
		couponID:   couponID,
		check: func(ctx context.Context) (string, error) {
			return s.up.CheckScratchClaim(ctx, cardID, customerID, couponID)
		},
		quizID: func(ctx context.Context) (string, error) {
			meta, err := s.up.GetScratchCard(ctx, cardID, customerID)
			if err != nil {
				return "", err
			}
			return meta.AllocatedQuizCampaignID, nil
		},
	})
}
