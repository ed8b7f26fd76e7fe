package promo

import (
	"context"
	"fmt"
	"strings"

	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

// QuizSubmission carries a customer's answers. Receipt or ScratchCardID
// names the game the quiz unlocks; both may be empty for a standalone
// quiz.
type QuizSubmission struct {
	QuizID        string        `json:"quiz_id"`
	CustomerID    string        `json:"customer_id"`
	Answers       games.Answers `json:"answers"`
	Receipt       string        `json:"receipt,omitempty"`
	ScratchCardID string        `json:"scratch_card_id,omitempty"`
}

// QuizOutcome is the result of a submission.
type QuizOutcome struct {
	Message             string        `json:"message,omitempty"`
	LoyaltyPointsEarned int           `json:"loyalty_points_earned"`
	Claim               *ClaimOutcome `json:"claim,omitempty"`
}

// LoadQuiz fetches a quiz. A customer who already took it gets
// ErrQuizCompleted.
func (s *Service) LoadQuiz(ctx context.Context, quizID, customerID, gameType string) (*games.Quiz, error) {
	if err := requireIDs(quizID, customerID); err != nil {
		return nil, err
	}
	raw, err := s.up.GetQuiz(ctx, quizID, customerID, gameType)
	if err != nil {
		if isQuizCompleted(err) {
			return nil, fmt.Errorf("%w: %w", ErrQuizCompleted, err)
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	q := convertQuiz(raw)
	s.mu.Lock()
	s.quizzes[q.ID] = q
	s.mu.Unlock()
	return &q, nil
}

func convertQuiz(raw *upstream.Quiz) games.Quiz {
	q := games.Quiz{ID: raw.ID, Title: raw.Title, Questions: make([]games.Question, len(raw.Questions))}
	for i, rq := range raw.Questions {
		q.Questions[i] = games.Question{
			Key:      rq.Key,
			Type:     rq.Type,
			Text:     rq.Question,
			Options:  rq.Options,
			Category: rq.Category,
		}
	}
	return q
}

func (s *Service) cachedQuiz(ctx context.Context, quizID, customerID string) (games.Quiz, error) {
	s.mu.Lock()
	q, ok := s.quizzes[quizID]
	s.mu.Unlock()
	if ok {
		return q, nil
	}
	loaded, err := s.LoadQuiz(ctx, quizID, customerID, "")
	if err != nil {
		return games.Quiz{}, err
	}
	return *loaded, nil
}

// SubmitQuiz validates the answers, relays them and, when the quiz gated a
// game, finishes that game's claim.
func (s *Service) SubmitQuiz(ctx context.Context, sub QuizSubmission) (*QuizOutcome, error) {
	if err := requireIDs(sub.QuizID, sub.CustomerID); err != nil {
		return nil, err
	}
	if sub.Receipt != "" && sub.ScratchCardID != "" {
		return nil, fmt.Errorf("%w: receipt and scratch card are exclusive", ErrInvalidInput)
	}

	// Check the receipt before anything is relayed.
	var claims *SpinClaims
	if sub.Receipt != "" {
		c, rec, err := s.verifySpin(ctx, sub.Receipt)
		if err != nil {
			return nil, err
		}
		if c.CustomerID != sub.CustomerID {
			return nil, fmt.Errorf("%w: receipt belongs to another customer", ErrInvalidReceipt)
		}
		if rec.ClaimStatus != string(upstream.ClaimQuizRequired) {
			return nil, fmt.Errorf("%w: spin claim status %q", ErrClaimSettled, rec.ClaimStatus)
		}
		claims = c
	}

	quiz, err := s.cachedQuiz(ctx, sub.QuizID, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := sub.Answers.Validate(quiz); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	responses := sub.Answers.Responses(quiz)
	relay := make([]upstream.QuizResponse, len(responses))
	for i, r := range responses {
		relay[i] = upstream.QuizResponse{Key: r.Key, Value: r.Value}
	}
	res, err := s.up.SubmitQuiz(ctx, sub.QuizID, sub.CustomerID, relay)
	if err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	out := &QuizOutcome{Message: res.Message, LoyaltyPointsEarned: res.LoyaltyPointsEarned}
	s.log.WithField("quiz_id", sub.QuizID).
		WithField("customer", hashID(sub.CustomerID)).
		WithField("points", res.LoyaltyPointsEarned).
		Info("quiz submitted")

	switch {
	case claims != nil:
		claim := &ClaimOutcome{Status: upstream.ClaimEligible}
		if err := s.up.ClaimWheelCoupon(ctx, claims.WheelID, claims.CustomerID, claims.CouponID); err != nil {
			return nil, fmt.Errorf("claim coupon: %w", err)
		}
		s.attachCoupon(ctx, claims.CouponID, claim)
		s.recordClaim(ctx, claims.SpinID(), claim.Status)
		out.Claim = claim

	case strings.TrimSpace(sub.ScratchCardID) != "":
		couponID, err := s.revealedCoupon(ctx, sub.ScratchCardID, sub.CustomerID)
		if err != nil {
			return nil, err
		}
		claim := &ClaimOutcome{Status: upstream.ClaimQuizCompleted}
		s.attachCoupon(ctx, couponID, claim)
		out.Claim = claim
	}
	return out, nil
}
