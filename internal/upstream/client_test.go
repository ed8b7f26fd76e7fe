package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxRetries:     3,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		HTTPClient:     server.Client(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	c := NewClient(Config{BaseURL: "promos.example.com"})
	if c.config.MaxRetries != 3 {
		t.Errorf("default retries: expected 3, got %d", c.config.MaxRetries)
	}
	if got := c.url("/api/x"); got != "https://promos.example.com/api/x" {
		t.Errorf("url: got %s", got)
	}
	c.SetAPIKey("new")
	if c.APIKey() != "new" {
		t.Errorf("expected 'new', got %s", c.APIKey())
	}
}

func TestGetSpinWheel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/spinWheels/spinWheel/customer/w1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("customerId") != "c 1" {
			t.Errorf("customerId = %q", r.URL.Query().Get("customerId"))
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing or wrong x-api-key header")
		}
		writeJSON(w, 200, map[string]any{
			"status": true,
			"data": map[string]any{
				"_id":                    "w1",
				"name":                   "Summer wheel",
				"couponOptions":          []string{"a", "b"},
				"targetedCoupons":        []string{"b"},
				"allocatedQuizCampainId": "q1",
			},
		})
	})

	wheel, err := c.GetSpinWheel(context.Background(), "w1", "c 1")
	if err != nil {
		t.Fatalf("GetSpinWheel failed: %v", err)
	}
	if wheel.ID != "w1" || len(wheel.CouponOptions) != 2 || wheel.AllocatedQuizCampaignID != "q1" {
		t.Errorf("unexpected wheel %+v", wheel)
	}
	if wheel.SegmentCount() != 3 {
		t.Errorf("default segment count: expected 3, got %d", wheel.SegmentCount())
	}
}

func TestGetCoupons(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req couponsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Coupons) != 2 {
			t.Errorf("expected 2 coupon ids, got %v", req.Coupons)
		}
		fmt.Fprint(w, `{"status":true,"data":[{"_id":"a","name":"Ten off","discount":10.5},{"_id":"b","name":"Flat","discount":200,"couponType":"flat"}]}`)
	})

	coupons, err := c.GetCoupons(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetCoupons failed: %v", err)
	}
	if len(coupons) != 2 {
		t.Fatalf("expected 2 coupons, got %d", len(coupons))
	}
	if !coupons[0].Discount.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("discount mismatch: got %s", coupons[0].Discount)
	}
	if got := coupons[0].DiscountLabel(); got != "10.5% OFF" {
		t.Errorf("label = %q", got)
	}
	if got := coupons[1].DiscountLabel(); got != "₹200 OFF" {
		t.Errorf("label = %q", got)
	}
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, 200, map[string]any{"status": true, "data": []any{}})
	})

	if _, err := c.GetCoupons(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestMaxRetriesExceeded(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		writeJSON(w, 500, map[string]any{"message": "boom"})
	})

	_, err := c.GetCoupons(context.Background(), []string{"a"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 || httpErr.Message != "boom" {
		t.Fatalf("expected HTTPError 500 boom, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected 1 attempt + 3 retries, got %d", attempts)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		writeJSON(w, 404, map[string]any{"message": "wheel not found"})
	})

	_, err := c.GetSpinWheel(context.Background(), "nope", "c1")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsNotFound() {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", attempts)
	}
}

func TestAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"message": "bad key"})
	})
	_, err := c.GetScratchCard(context.Background(), "s1", "c1")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Message != "bad key" {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestStatusFalseEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"status": false, "message": "campaign paused"})
	})
	_, err := c.GetScratchCard(context.Background(), "s1", "c1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "campaign paused" {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.config.BaseRetryDelay = time.Second
	c.config.MaxRetryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetCoupons(ctx, []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Errorf("retry loop ignored cancellation (%s)", time.Since(start))
	}
}

func TestCheckWheelClaim(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   ClaimStatus
	}{
		{"eligible", 200, map[string]any{"status": true, "message": "ok"}, ClaimEligible},
		{"already claimed", 200, map[string]any{"status": true, "message": MsgAlreadyClaimed}, ClaimAlreadyClaimed},
		{"already claimed status false", 200, map[string]any{"status": false, "message": MsgAlreadyClaimed}, ClaimAlreadyClaimed},
		{"quiz required", 403, map[string]any{"message": MsgQuizRequired}, ClaimQuizRequired},
		{"quiz completed", 409, map[string]any{"message": MsgQuizCompleted}, ClaimQuizCompleted},
		{"other conflict", 409, map[string]any{"message": "nope"}, ClaimExpired},
		{"bad request", 400, map[string]any{"message": "invalid"}, ClaimShowCoupon},
		{"gone", 410, map[string]any{"message": "expired"}, ClaimExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/spinWheels/coupon/code/spinWheel" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var req wheelClaimRequest
				json.NewDecoder(r.Body).Decode(&req)
				if req.SpinWheelID != "w1" || req.CustomerID != "c1" || req.CouponID != "k1" {
					t.Errorf("unexpected request %+v", req)
				}
				writeJSON(w, tt.status, tt.body)
			})
			msg, err := c.CheckWheelClaim(context.Background(), "w1", "c1", "k1")
			if got := ClassifyClaim(msg, err); got != tt.want {
				t.Errorf("ClassifyClaim = %s, want %s (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestClassifyClaimTransportError(t *testing.T) {
	if got := ClassifyClaim("", errors.New("dial tcp: refused")); got != ClaimExpired {
		t.Errorf("expected expired, got %s", got)
	}
	if got := ClassifyClaim("", &APIError{Message: MsgQuizRequired}); got != ClaimQuizRequired {
		t.Errorf("expected quiz_required, got %s", got)
	}
}

func TestQuizRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/quiz/public/q1":
			var req quizRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.CustomerID != "c1" || req.Type != "spinWheel" {
				t.Errorf("unexpected quiz request %+v", req)
			}
			fmt.Fprint(w, `{"_id":"q1","questions":[{"key":"k","type":"options","question":"Pick","options":["a","b"]}]}`)
		case "/api/quiz/submit":
			var req submitRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.QuizID != "q1" || len(req.Responses) != 1 || req.Responses[0].Key != "k" {
				t.Errorf("unexpected submit %+v", req)
			}
			fmt.Fprint(w, `{"message":"saved","loyaltyPointsEarned":25}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	quiz, err := c.GetQuiz(context.Background(), "q1", "c1", "spinWheel")
	if err != nil {
		t.Fatalf("GetQuiz failed: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].Type != "options" {
		t.Errorf("unexpected quiz %+v", quiz)
	}

	res, err := c.SubmitQuiz(context.Background(), "q1", "c1", []QuizResponse{{Key: "k", Value: []string{"a"}}})
	if err != nil {
		t.Fatalf("SubmitQuiz failed: %v", err)
	}
	if res.LoyaltyPointsEarned != 25 {
		t.Errorf("expected 25 points, got %d", res.LoyaltyPointsEarned)
	}
}

func TestCouponExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		expiry string
		want   bool
	}{
		{"", false},
		{"2026-05-31T23:59:59Z", true},
		{"2026-06-02T00:00:00.000Z", false},
		{"2026-01-01", true},
		{"not a date", false},
	}
	for _, tt := range tests {
		if got := (Coupon{ExpiryDate: tt.expiry}).Expired(now); got != tt.want {
			t.Errorf("Expired(%q) = %v, want %v", tt.expiry, got, tt.want)
		}
	}
}
