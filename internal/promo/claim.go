package promo

import (
	"context"
	"errors"
	"net/http"

	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

const (
	gameTypeWheel   = "spinWheel"
	gameTypeScratch = "scratchCard"
)

// ClaimOutcome reports where a claim landed. Coupon is set when the
// customer may see the redeemable coupon; Quiz is set when a quiz gates
// the claim.
type ClaimOutcome struct {
	Status  upstream.ClaimStatus `json:"status"`
	Coupon  *upstream.Coupon     `json:"coupon,omitempty"`
	Quiz    *games.Quiz          `json:"quiz,omitempty"`
	Message string               `json:"message,omitempty"`
}

// claimSubject binds the claim flow to one game's upstream endpoints.
type claimSubject struct {
	gameType   string
	gameID     string
	customerID string
	couponID   string

	check       func(ctx context.Context) (string, error)
	claim       func(ctx context.Context) error
	markClaimed func(ctx context.Context) error
	quizID      func(ctx context.Context) (string, error)
}

func (s *Service) runClaim(ctx context.Context, subj claimSubject) (*ClaimOutcome, error) {
	msg, checkErr := subj.check(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	status := upstream.ClassifyClaim(msg, checkErr)
	logger := s.log.WithField("game", subj.gameType).
		WithField("game_id", subj.gameID).
		WithField("customer", hashID(subj.customerID))
	if checkErr != nil {
		logger = logger.WithError(checkErr)
	}
	logger.WithField("status", status).Info("claim checked")

	out := &ClaimOutcome{Status: status, Message: msg}
	switch status {
	case upstream.ClaimEligible:
		if subj.claim != nil {
			if err := subj.claim(ctx); err != nil {
				return nil, err
			}
		}
		s.attachCoupon(ctx, subj.couponID, out)

	case upstream.ClaimAlreadyClaimed:
		if subj.markClaimed != nil {
			if err := subj.markClaimed(ctx); err != nil {
				logger.WithError(err).Warn("mark already claimed")
			}
		}
		s.attachCoupon(ctx, subj.couponID, out)

	case upstream.ClaimQuizRequired:
		quiz, err := s.gateQuiz(ctx, subj)
		switch {
		case errors.Is(err, ErrQuizCompleted):
			out.Status = upstream.ClaimQuizCompleted
			s.attachCoupon(ctx, subj.couponID, out)
		case err != nil:
			return nil, err
		default:
			out.Quiz = quiz
		}

	case upstream.ClaimQuizCompleted, upstream.ClaimShowCoupon:
		s.attachCoupon(ctx, subj.couponID, out)
	}
	return out, nil
}

// attachCoupon loads the final coupon. A coupon that cannot be loaded or
// has expired turns the outcome into ClaimExpired.
func (s *Service) attachCoupon(ctx context.Context, couponID string, out *ClaimOutcome) {
	coupon, err := s.up.GetFinalCoupon(ctx, couponID)
	if err != nil {
		s.log.WithError(err).WithField("coupon_id", couponID).Warn("final coupon unavailable")
		out.Status = upstream.ClaimExpired
		return
	}
	if coupon.Expired(s.now()) {
		out.Status = upstream.ClaimExpired
		return
	}
	out.Coupon = coupon
}

func (s *Service) gateQuiz(ctx context.Context, subj claimSubject) (*games.Quiz, error) {
	quizID, err := subj.quizID(ctx)
	if err != nil {
		return nil, err
	}
	if quizID == "" {
		return nil, &upstream.APIError{Message: "no quiz allocated to campaign"}
	}
	return s.LoadQuiz(ctx, quizID, subj.customerID, subj.gameType)
}

func isQuizCompleted(err error) bool {
	var httpErr *upstream.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict
}
