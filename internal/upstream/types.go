package upstream

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// --- Response envelope ---

// Envelope is the wrapper most promotions endpoints respond with.
type Envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// --- Coupons ---

// Coupon is a discount a customer can win.
type Coupon struct {
	ID               string          `json:"_id"`
	Name             string          `json:"name"`
	Code             string          `json:"code,omitempty"`
	Description      string          `json:"description,omitempty"`
	CouponType       string          `json:"couponType,omitempty"`
	Discount         decimal.Decimal `json:"discount"`
	Condition        bool            `json:"condition,omitempty"`
	ConditionMessage string          `json:"conditionMessage,omitempty"`
	ExpiryDate       string          `json:"expiryDate,omitempty"`
}

// Expired reports whether the coupon's expiry date has passed at now. A
// missing or unparseable date never expires.
func (c Coupon) Expired(now time.Time) bool {
	if c.ExpiryDate == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, c.ExpiryDate); err == nil {
			return t.Before(now)
		}
	}
	return false
}

// DiscountLabel renders the discount the way the coupon page shows it.
func (c Coupon) DiscountLabel() string {
	if c.CouponType == "flat" {
		return "₹" + c.Discount.String() + " OFF"
	}
	return c.Discount.String() + "% OFF"
}

// --- Games ---

// SpinWheel is a wheel campaign as configured upstream.
type SpinWheel struct {
	ID                      string   `json:"_id"`
	Name                    string   `json:"name"`
	CouponOptions           []string `json:"couponOptions"`
	TargetedCoupons         []string `json:"targetedCoupons,omitempty"`
	NoOfSpins               int      `json:"noOfSpins,omitempty"`
	AllocatedQuizCampaignID string   `json:"allocatedQuizCampainId,omitempty"`
}

// SegmentCount returns the configured number of wedges, 3 when unset.
func (w SpinWheel) SegmentCount() int {
	if w.NoOfSpins > 0 {
		return w.NoOfSpins
	}
	return 3
}

// ScratchCard is a scratch-card campaign as configured upstream.
type ScratchCard struct {
	ID                      string `json:"_id"`
	Name                    string `json:"name,omitempty"`
	CouponID                string `json:"couponId"`
	AllocatedQuizCampaignID string `json:"allocatedQuizCampainId,omitempty"`
}

// --- Quiz ---

// Question is one quiz prompt.
type Question struct {
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Quiz is a quiz campaign. The quiz endpoint returns it without an
// envelope.
type Quiz struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// QuizResponse is one submitted answer.
type QuizResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SubmitResult is returned by the quiz submit endpoint.
type SubmitResult struct {
	Message             string `json:"message,omitempty"`
	LoyaltyPointsEarned int    `json:"loyaltyPointsEarned,omitempty"`
}

// --- Requests ---

type couponsRequest struct {
	Coupons []string `json:"coupons"`
}

type finalCouponRequest struct {
	Coupons string `json:"coupons"`
}

type wheelClaimRequest struct {
	SpinWheelID string `json:"spinWheelId"`
	CustomerID  string `json:"customerId"`
	CouponID    string `json:"couponId"`
}

type scratchClaimRequest struct {
	ScratchCardID string `json:"scratchCardId"`
	CustomerID    string `json:"customerId"`
	CouponID      string `json:"couponId"`
}

type quizRequest struct {
	CustomerID string `json:"customerId"`
	Type       string `json:"type,omitempty"`
}

type submitRequest struct {
	QuizID     string         `json:"quizId"`
	CustomerID string         `json:"customerId"`
	Responses  []QuizResponse `json:"responses"`
}
