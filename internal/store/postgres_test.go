package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs against a live server only when PROMO_TEST_PG_DSN is set.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PROMO_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PROMO_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	customer := "pg-" + uuid.NewString()
	spin := &SpinRecord{WheelID: "w1", CustomerID: customer, WinningIndex: 1, SegmentID: "k", FinalRotation: 3000}
	if err := db.SaveSpin(ctx, spin); err != nil {
		t.Fatalf("SaveSpin: %v", err)
	}
	if err := db.UpdateSpinClaim(ctx, spin.ID, "claimed", time.Now()); err != nil {
		t.Fatalf("UpdateSpinClaim: %v", err)
	}
	got, err := db.GetSpin(ctx, spin.ID)
	if err != nil {
		t.Fatalf("GetSpin: %v", err)
	}
	if got.ClaimStatus != "claimed" || got.ClaimedAt == nil {
		t.Errorf("unexpected spin %+v", got)
	}

	if err := db.SaveReveal(ctx, &RevealRecord{CardID: "s1", CustomerID: customer, ClearedFraction: 0.5}); err != nil {
		t.Fatalf("SaveReveal: %v", err)
	}
	if err := db.SaveReveal(ctx, &RevealRecord{CardID: "s1", CustomerID: customer, ClearedFraction: 0.6}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}
