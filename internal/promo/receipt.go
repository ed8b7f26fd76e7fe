package promo

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const receiptIssuer = "promo-games"

// ErrInvalidReceipt is returned for receipts that are malformed, forged,
// expired or that disagree with the recorded spin.
var ErrInvalidReceipt = errors.New("invalid spin receipt")

// SpinClaims names a server-selected winner. The token id is the spin id.
type SpinClaims struct {
	WheelID      string `json:"wid"`
	CustomerID   string `json:"cid"`
	CouponID     string `json:"cpn"`
	WinningIndex int    `json:"idx"`
	jwt.RegisteredClaims
}

// SpinID returns the id of the recorded spin.
func (c *SpinClaims) SpinID() string { return c.ID }

// ReceiptSigner issues and verifies HS256 spin receipts.
type ReceiptSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewReceiptSigner returns a signer; key must be at least 16 bytes.
func NewReceiptSigner(key []byte, ttl time.Duration) (*ReceiptSigner, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("receipt signing key too short (%d bytes)", len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("receipt ttl must be positive")
	}
	return &ReceiptSigner{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue signs claims for spinID.
func (r *ReceiptSigner) Issue(spinID string, claims SpinClaims) (string, error) {
	now := r.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        spinID,
		Issuer:    receiptIssuer,
		Subject:   claims.CustomerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.key)
}

// Verify parses and validates a receipt.
func (r *ReceiptSigner) Verify(tokenStr string) (*SpinClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SpinClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method")
		}
		return r.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(receiptIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}

	claims, ok := token.Claims.(*SpinClaims)
	if !ok || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidReceipt)
	}
	return claims, nil
}
