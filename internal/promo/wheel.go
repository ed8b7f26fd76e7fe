package promo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/promo-games-go/internal/engine"
	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/scripting"
	"github.com/MJE43/promo-games-go/internal/store"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

// Prize is the coupon metadata a wedge carries. The redeemable code is
// only handed out by a claim.
type Prize struct {
	CouponID string          `json:"coupon_id"`
	Name     string          `json:"name"`
	Discount decimal.Decimal `json:"discount"`
	Label    string          `json:"label"`
}

// WheelView is what a client needs to draw a wheel.
type WheelView struct {
	WheelID      string          `json:"wheel_id"`
	Name         string          `json:"name,omitempty"`
	Segments     []games.Segment `json:"segments"`
	SegmentAngle float64         `json:"segment_angle"`
	Rotation     float64         `json:"rotation"`
	Busy         bool            `json:"busy"`
	// ServerSeedHash commits to the session's server seed when spins are
	// audited. Nonce is the nonce of the next spin.
	ServerSeedHash string `json:"server_seed_hash,omitempty"`
	Nonce          uint64 `json:"nonce,omitempty"`
}

// SpinOutcome is a completed server-side spin.
type SpinOutcome struct {
	SpinID  string           `json:"spin_id"`
	Receipt string           `json:"receipt"`
	Result  games.SpinResult `json:"result"`
}

type wheelSession struct {
	mu       sync.Mutex
	wheelID  string
	customer string
	meta     *upstream.SpinWheel
	wheel    *games.Wheel
	lastUsed time.Time

	// Set for audited sessions only.
	serverSeed string
	nonce      uint64
}

func (ws *wheelSession) idleSince() time.Time {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.lastUsed
}

func (ws *wheelSession) view(now time.Time) *WheelView {
	v := &WheelView{
		WheelID:      ws.wheelID,
		Name:         ws.meta.Name,
		Segments:     ws.wheel.Segments(),
		SegmentAngle: ws.wheel.SegmentAngle(),
		Rotation:     ws.wheel.Rotation(),
		Busy:         ws.wheel.Busy(now),
	}
	if ws.serverSeed != "" {
		v.ServerSeedHash = engine.HashSeed(ws.serverSeed)
		v.Nonce = ws.nonce
	}
	return v
}

// LoadWheel fetches the campaign, builds its segments and opens a fresh
// session for the customer. A session whose wheel is still spinning keeps
// its wheel so the spin guard holds across reloads.
func (s *Service) LoadWheel(ctx context.Context, wheelID, customerID string) (*WheelView, error) {
	if err := requireIDs(wheelID, customerID); err != nil {
		return nil, err
	}
	fresh, err := s.openWheel(ctx, wheelID, customerID)
	if err != nil {
		return nil, err
	}
	ws, inserted := s.adoptWheel(fresh)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	now := s.now()
	if !inserted {
		ws.wheel.Poll(now)
		if !ws.wheel.Busy(now) {
			ws.meta, ws.wheel = fresh.meta, fresh.wheel
			ws.serverSeed, ws.nonce = fresh.serverSeed, fresh.nonce
		}
	}
	ws.lastUsed = now
	return ws.view(now), nil
}

// adoptWheel registers fresh unless a session for the same key already
// exists, in which case the existing session is returned.
func (s *Service) adoptWheel(fresh *wheelSession) (*wheelSession, bool) {
	key := sessionKey(fresh.wheelID, fresh.customer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.wheels[key]; cur != nil {
		return cur, false
	}
	s.wheels[key] = fresh
	return fresh, true
}

// openWheel builds an unregistered session from the campaign.
func (s *Service) openWheel(ctx context.Context, wheelID, customerID string) (*wheelSession, error) {
	meta, err := s.up.GetSpinWheel(ctx, wheelID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load wheel: %w", err)
	}
	if len(meta.CouponOptions) == 0 {
		return nil, fmt.Errorf("load wheel: %w", &upstream.APIError{Message: "wheel has no coupon options"})
	}
	coupons, err := s.up.GetCoupons(ctx, meta.CouponOptions)
	if err != nil {
		return nil, fmt.Errorf("load coupons: %w", err)
	}
	if len(coupons) == 0 {
		return nil, fmt.Errorf("load coupons: %w", &upstream.APIError{Message: "no coupons returned"})
	}

	segments := buildSegments(meta.SegmentCount(), coupons)
	targets := s.resolveTargets(wheelID, customerID, meta.TargetedCoupons, segments)

	wheel, err := games.NewWheel(segments, targets, s.rotation, s.src)
	if err != nil {
		return nil, err
	}
	logger := s.log.WithField("wheel_id", wheelID).WithField("customer", hashID(customerID))
	wheel.OnSpinComplete = func(res games.SpinResult) {
		logger.WithField("index", res.WinningIndex).Debug("spin settled")
	}

	ws := &wheelSession{
		wheelID:  wheelID,
		customer: customerID,
		meta:     meta,
		wheel:    wheel,
		lastUsed: s.now(),
	}
	if s.audited {
		if ws.serverSeed, err = engine.NewServerSeed(); err != nil {
			return nil, err
		}
	}

	logger.WithField("segments", len(segments)).WithField("targets", len(targets)).Info("wheel loaded")
	return ws, nil
}

// buildSegments lays n wedges out over the coupons, repeating them in
// order when there are fewer coupons than wedges.
func buildSegments(n int, coupons []upstream.Coupon) []games.Segment {
	segs := make([]games.Segment, n)
	for i := range segs {
		c := coupons[i%len(coupons)]
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("Option %d", i+1)
		}
		segs[i] = games.Segment{
			Index: i,
			ID:    c.ID,
			Label: label,
			Prize: Prize{CouponID: c.ID, Name: c.Name, Discount: c.Discount, Label: c.DiscountLabel()},
		}
	}
	return segs
}

func (s *Service) resolveTargets(wheelID, customerID string, upstreamTargets []string, segs []games.Segment) games.TargetSet {
	fallback := games.NewTargetSet(upstreamTargets...)
	if s.targeter == nil {
		return fallback
	}
	ts, err := s.targeter.Target(scripting.Customer{
		ID:              customerID,
		GameID:          wheelID,
		UpstreamTargets: upstreamTargets,
	}, segs)
	if err != nil {
		s.log.WithError(err).WithField("wheel_id", wheelID).Warn("targeting script failed, using campaign targets")
		return fallback
	}
	return ts
}

func (s *Service) wheelSession(ctx context.Context, wheelID, customerID string) (*wheelSession, error) {
	s.mu.Lock()
	ws := s.wheels[sessionKey(wheelID, customerID)]
	s.mu.Unlock()
	if ws != nil {
		return ws, nil
	}
	fresh, err := s.openWheel(ctx, wheelID, customerID)
	if err != nil {
		return nil, err
	}
	ws, _ = s.adoptWheel(fresh)
	return ws, nil
}

// Spin selects a winner, plans the rotation, records the spin and returns
// a signed receipt naming the winner. A spin requested before the previous
// one settled fails with games.ErrSpinInProgress.
func (s *Service) Spin(ctx context.Context, wheelID, customerID string) (*SpinOutcome, error) {
	if err := requireIDs(wheelID, customerID); err != nil {
		return nil, err
	}
	ws, err := s.wheelSession(ctx, wheelID, customerID)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := s.now()
	ws.lastUsed = now
	nonce := ws.nonce
	if ws.serverSeed != "" {
		ws.wheel.SetSource(engine.NewSeedStream(ws.serverSeed, customerID, nonce))
	}
	res, err := ws.wheel.Spin(now)
	if err != nil {
		return nil, err
	}

	rec := &store.SpinRecord{
		ID:            uuid.NewString(),
		WheelID:       wheelID,
		CustomerID:    customerID,
		WinningIndex:  res.WinningIndex,
		SegmentID:     res.Segment.ID,
		FinalRotation: res.FinalRotation,
		CreatedAt:     now.UTC(),
	}
	if ws.serverSeed != "" {
		ws.nonce++
		rec.ServerSeed, rec.ClientSeed, rec.Nonce = ws.serverSeed, customerID, int64(nonce)
	}
	if err := s.db.SaveSpin(ctx, rec); err != nil {
		return nil, fmt.Errorf("save spin: %w", err)
	}

	receipt, err := s.receipts.Issue(rec.ID, SpinClaims{
		WheelID:      wheelID,
		CustomerID:   customerID,
		CouponID:     res.Segment.ID,
		WinningIndex: res.WinningIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	s.log.WithField("wheel_id", wheelID).
		WithField("customer", hashID(customerID)).
		WithField("spin_id", rec.ID).
		WithField("index", res.WinningIndex).
		Info("spin")
	return &SpinOutcome{SpinID: rec.ID, Receipt: receipt, Result: res}, nil
}

// verifySpin checks a receipt against the recorded spin.
func (s *Service) verifySpin(ctx context.Context, receipt string) (*SpinClaims, *store.SpinRecord, error) {
	claims, err := s.receipts.Verify(receipt)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.db.GetSpin(ctx, claims.SpinID())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: unknown spin", ErrInvalidReceipt)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load spin: %w", err)
	}
	if rec.WheelID != claims.WheelID || rec.CustomerID != claims.CustomerID ||
		rec.WinningIndex != claims.WinningIndex || rec.SegmentID != claims.CouponID {
		return nil, nil, fmt.Errorf("%w: spin mismatch", ErrInvalidReceipt)
	}
	return claims, rec, nil
}

// ClaimSpin runs the claim flow for the coupon a receipt names.
func (s *Service) ClaimSpin(ctx context.Context, receipt string) (*ClaimOutcome, error) {
	claims, _, err := s.verifySpin(ctx, receipt)
	if err != nil {
		return nil, err
	}

	subj := claimSubject{
		gameType:   gameTypeWheel,
		gameID:     claims.WheelID,
		customerID: claims.CustomerID,
		couponID:   claims.CouponID,
		check: func(ctx context.Context) (string, error) {
			return s.up.CheckWheelClaim(ctx, claims.WheelID, claims.CustomerID, claims.CouponID)
		},
		claim: func(ctx context.Context) error {
			return s.up.ClaimWheelCoupon(ctx, claims.WheelID, claims.CustomerID, claims.CouponID)
		},
		markClaimed: func(ctx context.Context) error {
			return s.up.MarkWheelAlreadyClaimed(ctx, claims.WheelID, claims.CustomerID, claims.CouponID)
		},
		quizID: func(ctx context.Context) (string, error) {
			meta, err := s.up.GetSpinWheel(ctx, claims.WheelID, claims.CustomerID)
			if err != nil {
				return "", err
			}
			return meta.AllocatedQuizCampaignID, nil
		},
	}
	out, err := s.runClaim(ctx, subj)
	if err != nil {
		return nil, err
	}
	s.recordClaim(ctx, claims.SpinID(), out.Status)
	return out, nil
}

func (s *Service) recordClaim(ctx context.Context, spinID string, status upstream.ClaimStatus) {
	if err := s.db.UpdateSpinClaim(ctx, spinID, string(status), s.now().UTC()); err != nil {
		s.log.WithError(err).WithField("spin_id", spinID).Error("record claim status")
	}
}
