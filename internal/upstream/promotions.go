package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetSpinWheel loads a wheel campaign for a customer.
func (c *Client) GetSpinWheel(ctx context.Context, wheelID, customerID string) (*SpinWheel, error) {
	path := fmt.Sprintf("api/spinWheels/spinWheel/customer/%s?customerId=%s",
		url.PathEscape(wheelID), url.QueryEscape(customerID))

	var wheel SpinWheel
	if _, err := c.call(ctx, http.MethodGet, path, nil, &wheel); err != nil {
		return nil, err
	}
	return &wheel, nil
}

// GetCoupons resolves coupon ids to coupons, in the order the service
// returns them.
func (c *Client) GetCoupons(ctx context.Context, couponIDs []string) ([]Coupon, error) {
	var coupons []Coupon
	if _, err := c.call(ctx, http.MethodPost, "api/coupons/spicWheelCoupons", couponsRequest{Coupons: couponIDs}, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

// GetFinalCoupon returns the redeemable coupon details, code included.
func (c *Client) GetFinalCoupon(ctx context.Context, couponID string) (*Coupon, error) {
	var coupon Coupon
	env, err := c.call(ctx, http.MethodPost, "api/coupons/couponforCampains", finalCouponRequest{Coupons: couponID}, &coupon)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &APIError{Message: "coupon details missing"}
	}
	return &coupon, nil
}

// CheckWheelClaim asks whether the customer may claim couponID from the
// wheel. The returned message and error feed ClassifyClaim.
func (c *Client) CheckWheelClaim(ctx context.Context, wheelID, customerID, couponID string) (string, error) {
	return c.checkClaim(ctx, "api/spinWheels/coupon/code/spinWheel",
		wheelClaimRequest{SpinWheelID: wheelID, CustomerID: customerID, CouponID: couponID})
}

// ClaimWheelCoupon records the claim of a won coupon.
func (c *Client) ClaimWheelCoupon(ctx context.Context, wheelID, customerID, couponID string) error {
	_, err := c.doRequestWithRetry(ctx, http.MethodPost, "api/coupons/coupon/code/spinWheel/claim",
		wheelClaimRequest{SpinWheelID: wheelID, CustomerID: customerID, CouponID: couponID})
	return err
}

// MarkWheelAlreadyClaimed records that the customer returned to a coupon
// they had already claimed.
func (c *Client) MarkWheelAlreadyClaimed(ctx context.Context, wheelID, customerID, couponID string) error {
	_, err := c.doRequestWithRetry(ctx, http.MethodPost, "api/spinWheels/coupon/code/spinWheel/already-claim",
		wheelClaimRequest{SpinWheelID: wheelID, CustomerID: customerID, CouponID: couponID})
	return err
}

// GetScratchCard loads a scratch-card campaign for a customer.
func (c *Client) GetScratchCard(ctx context.Context, cardID, customerID string) (*ScratchCard, error) {
	path := fmt.Sprintf("api/scratchCards/scratchCard/customer/%s?customerId=%s",
		url.PathEscape(cardID), url.QueryEscape(customerID))

	var card ScratchCard
	if _, err := c.call(ctx, http.MethodGet, path, nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CheckScratchClaim is the scratch-card counterpart of CheckWheelClaim.
func (c *Client) CheckScratchClaim(ctx context.Context, cardID, customerID, couponID string) (string, error) {
	return c.checkClaim(ctx, "api/scratchCards/scratchCard/code/customer",
		scratchClaimRequest{ScratchCardID: cardID, CustomerID: customerID, CouponID: couponID})
}

// GetQuiz loads a quiz campaign. gameType names the game the quiz gates
// ("spinWheel", "scratchCard") and may be empty.
func (c *Client) GetQuiz(ctx context.Context, quizID, customerID, gameType string) (*Quiz, error) {
	var quiz Quiz
	path := "api/quiz/public/" + url.PathEscape(quizID)
	if err := c.callRaw(ctx, http.MethodPost, path, quizRequest{CustomerID: customerID, Type: gameType}, &quiz); err != nil {
		return nil, err
	}
	if quiz.ID == "" {
		return nil, &APIError{Message: "invalid quiz data"}
	}
	return &quiz, nil
}

// SubmitQuiz relays a customer's answers.
func (c *Client) SubmitQuiz(ctx context.Context, quizID, customerID string, responses []QuizResponse) (*SubmitResult, error) {
	if responses == nil {
		responses = []QuizResponse{}
	}
	var res SubmitResult
	if err := c.callRaw(ctx, http.MethodPost, "api/quiz/submit",
		submitRequest{QuizID: quizID, CustomerID: customerID, Responses: responses}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// checkClaim returns the envelope message whatever its status flag, since
// the service reports "already claimed" through the message alone.
func (c *Client) checkClaim(ctx context.Context, path string, payload any) (string, error) {
	raw, err := c.doRequestWithRetry(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("upstream: invalid response JSON: %w", err)
	}
	if !env.Status && env.Message != MsgAlreadyClaimed {
		return env.Message, &APIError{Message: env.Message}
	}
	return env.Message, nil
}
