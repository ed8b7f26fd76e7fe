package games

import (
	"errors"
	"math"
	"testing"
)

func newCard(t *testing.T) *ScratchCard {
	t.Helper()
	c, err := NewScratchCard(320, 320, DefaultScratchPolicy())
	if err != nil {
		t.Fatalf("NewScratchCard: %v", err)
	}
	return c
}

func TestScratchCardStartsCoated(t *testing.T) {
	c := newCard(t)
	if c.Phase() != Unscratched || c.Revealed() {
		t.Fatalf("unexpected initial phase %s", c.Phase())
	}
	if f := c.Sample(); f != 0 {
		t.Errorf("cleared fraction = %v, want 0", f)
	}
}

func TestScratchSingleStrokeStaysHidden(t *testing.T) {
	c := newCard(t)
	c.StrokeAt(160, 160, 40)

	if c.Revealed() {
		t.Fatal("card revealed by a single 40px disc")
	}
	if c.Phase() != Scratching {
		t.Errorf("phase = %s, want scratching", c.Phase())
	}
	want := math.Pi * 40 * 40 / (320 * 320)
	if got := c.ClearedFraction(); math.Abs(got-want) > 0.005 {
		t.Errorf("cleared fraction = %v, want about %v", got, want)
	}
}

func TestScratchRevealLatchesOnce(t *testing.T) {
	c := newCard(t)
	fired := 0
	var at float64
	c.OnReveal = func(f float64) {
		fired++
		at = f
	}

	for y := 20.0; y < 320; y += 40 {
		c.StrokeAt(0, y, 20)
		c.StrokeTo(320, y, 20)
		c.EndStroke()
	}

	if !c.Revealed() {
		t.Fatalf("card not revealed at %.3f cleared", c.ClearedFraction())
	}
	if fired != 1 {
		t.Fatalf("OnReveal fired %d times, want 1", fired)
	}
	if at < 0.45 {
		t.Errorf("revealed at %.3f, below threshold", at)
	}

	frozen := c.Sample()
	c.StrokeAt(300, 300, 50)
	c.StrokeTo(10, 10, 50)
	if !c.Revealed() || fired != 1 {
		t.Errorf("latch broken: revealed=%v fired=%d", c.Revealed(), fired)
	}
	if c.Sample() != frozen {
		t.Error("strokes after reveal changed the coating")
	}
}

func TestScratchStrokeToDrawsCapsule(t *testing.T) {
	c := newCard(t)
	c.StrokeTo(50, 160, 10) // outside a gesture: acts as StrokeAt
	c.StrokeTo(250, 160, 10)

	want := (200*20 + math.Pi*100) / (320 * 320)
	if got := c.Sample(); math.Abs(got-want) > 0.003 {
		t.Errorf("cleared fraction = %v, want about %v", got, want)
	}

	c.EndStroke()
	before := c.Sample()
	c.StrokeTo(50, 300, 10)
	single := math.Pi * 100 / (320 * 320)
	if got := c.Sample() - before; math.Abs(got-single) > 0.002 {
		t.Errorf("new gesture cleared %v, want a single disc of %v", got, single)
	}
}

func TestScratchIgnoresAndClamps(t *testing.T) {
	c := newCard(t)
	c.StrokeAt(100, 100, 0)
	c.StrokeAt(100, 100, -5)
	c.StrokeAt(math.NaN(), 100, 10)
	if c.Phase() != Unscratched || c.Sample() != 0 {
		t.Fatalf("ignored strokes changed the card: phase=%s cleared=%v", c.Phase(), c.Sample())
	}

	c.StrokeAt(-500, -500, 10)
	if c.Sample() == 0 {
		t.Fatal("clamped stroke cleared nothing")
	}
	if c.alpha[0] != 0 {
		t.Error("expected corner pixel cleared")
	}
}

func TestScratchReset(t *testing.T) {
	c := newCard(t)
	fired := 0
	c.OnReveal = func(float64) { fired++ }
	for y := 20.0; y < 320; y += 40 {
		c.StrokeAt(0, y, 20)
		c.StrokeTo(320, y, 20)
	}
	if !c.Revealed() {
		t.Fatal("expected reveal")
	}

	c.Reset()
	if c.Phase() != Unscratched || c.Sample() != 0 || c.ClearedFraction() != 0 {
		t.Fatalf("reset left phase=%s cleared=%v", c.Phase(), c.Sample())
	}
	for y := 20.0; y < 320; y += 40 {
		c.StrokeAt(0, y, 20)
		c.StrokeTo(320, y, 20)
	}
	if fired != 2 {
		t.Errorf("OnReveal fired %d times across two cards, want 2", fired)
	}
}

func TestNewScratchCardValidation(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		policy ScratchPolicy
	}{
		{"zero width", 0, 10, DefaultScratchPolicy()},
		{"negative height", 10, -1, DefaultScratchPolicy()},
		{"zero threshold", 10, 10, ScratchPolicy{RevealThreshold: 0, AlphaThreshold: 128}},
		{"threshold over one", 10, 10, ScratchPolicy{RevealThreshold: 1.5, AlphaThreshold: 128}},
		{"zero alpha", 10, 10, ScratchPolicy{RevealThreshold: 0.45}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScratchCard(tt.w, tt.h, tt.policy); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestScratchPhaseString(t *testing.T) {
	for p, want := range map[ScratchPhase]string{
		Unscratched:     "unscratched",
		Scratching:      "scratching",
		Revealed:        "revealed",
		ScratchPhase(9): "phase(9)",
	} {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(p), got, want)
		}
	}
}
