package games

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/MJE43/promo-games-go/internal/engine"
)

func segmentsOf(ids ...string) []Segment {
	segs := make([]Segment, len(ids))
	for i, id := range ids {
		segs[i] = Segment{Index: i, ID: id, Label: id}
	}
	return segs
}

func TestSelectWinnerInRange(t *testing.T) {
	src := engine.NewSeededSource(7)
	targetSets := []TargetSet{
		nil,
		NewTargetSet(),
		NewTargetSet("nope"),
		NewTargetSet("s1", "s3", "missing"),
	}
	for n := 1; n <= 16; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = "s" + strconv.Itoa(i)
		}
		segs := segmentsOf(ids...)
		for _, ts := range targetSets {
			for i := 0; i < 200; i++ {
				idx, err := SelectWinner(segs, ts, src)
				if err != nil {
					t.Fatalf("n=%d: unexpected error: %v", n, err)
				}
				if idx < 0 || idx >= n {
					t.Fatalf("n=%d: index %d out of range", n, idx)
				}
			}
		}
	}
}

func TestSelectWinnerTargetedUniform(t *testing.T) {
	segs := segmentsOf("A", "B", "C", "D", "E")
	targets := NewTargetSet("A", "C", "ghost")
	src := engine.NewSeededSource(42)

	const draws = 30000
	counts := make(map[int]int)
	for i := 0; i < draws; i++ {
		idx, err := SelectWinner(segs, targets, src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[idx]++
	}

	for idx, c := range counts {
		if idx != 0 && idx != 2 {
			t.Fatalf("untargeted index %d drawn %d times", idx, c)
		}
	}
	want := draws / 2
	for _, idx := range []int{0, 2} {
		if diff := math.Abs(float64(counts[idx] - want)); diff > float64(draws)*0.02 {
			t.Errorf("index %d drawn %d times, want about %d", idx, counts[idx], want)
		}
	}
}

func TestSelectWinnerSingleTarget(t *testing.T) {
	segs := segmentsOf("A", "B", "C")
	targets := NewTargetSet("A")
	src := engine.NewSeededSource(1)
	for i := 0; i < 1000; i++ {
		idx, err := SelectWinner(segs, targets, src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != 0 {
			t.Fatalf("draw %d: got index %d, want 0", i, idx)
		}
	}
}

func TestSelectWinnerEmpty(t *testing.T) {
	_, err := SelectWinner(nil, NewTargetSet("A"), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPlanRotationAdvances(t *testing.T) {
	policy := DefaultRotationPolicy()
	src := engine.NewSeededSource(99)
	currents := []float64{0, 1, 359.999, 360, 1234.5, -720.25, 1e7, MaxRotation, -MaxRotation}
	for _, n := range []int{1, 2, 3, 5, 8, 12, 36} {
		a := 360.0 / float64(n)
		for _, cur := range currents {
			for idx := 0; idx < n; idx++ {
				final, err := PlanRotation(cur, idx, a, policy, src)
				if err != nil {
					t.Fatalf("n=%d cur=%v idx=%d: %v", n, cur, idx, err)
				}
				if final <= cur {
					t.Fatalf("n=%d cur=%v idx=%d: final %v not greater than current", n, cur, idx, final)
				}
				if final-cur < float64(policy.MinSpins)*360 {
					t.Errorf("n=%d cur=%v idx=%d: only %v degrees travelled", n, cur, idx, final-cur)
				}
				if final-cur >= float64(policy.MaxSpins+1)*360 {
					t.Errorf("n=%d cur=%v idx=%d: %v degrees travelled", n, cur, idx, final-cur)
				}
			}
		}
	}

	for _, cur := range []float64{1e20, -1e13, math.Nextafter(MaxRotation, math.Inf(1))} {
		if _, err := PlanRotation(cur, 0, 45, policy, src); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("cur=%v: expected ErrInvalidArgument, got %v", cur, err)
		}
	}
}

func TestPlanRotationLandsOnWinner(t *testing.T) {
	policy := DefaultRotationPolicy()
	// Draw order is jitter, then spin count. Pin both ends of each range.
	pins := [][]float64{
		{0, 0},
		{0.5, 0.5},
		{0.9999999999, 0.9999999999},
		{0.0000001, 0.75},
	}
	for _, n := range []int{2, 3, 4, 6, 8, 10, 24} {
		a := 360.0 / float64(n)
		for _, cur := range []float64{0, 17.3, 359.9, 4000, -45} {
			for idx := 0; idx < n; idx++ {
				for _, pin := range pins {
					src := engine.Fixed(append([]float64(nil), pin...))
					final, err := PlanRotation(cur, idx, a, policy, &src)
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					if got := SegmentAt(final, a); got != idx {
						t.Errorf("n=%d cur=%v idx=%d pin=%v: pointer over segment %d (angle %.4f)",
							n, cur, idx, pin, got, PointerAngle(final))
					}
					p := PointerAngle(final)
					if p < float64(idx)*a || p >= float64(idx+1)*a {
						t.Errorf("pointer angle %.4f outside [%v, %v)", p, float64(idx)*a, float64(idx+1)*a)
					}
				}
			}
		}
	}
}

func TestPlanRotationEightSegmentScenario(t *testing.T) {
	if rest := RestAngle(3, 45); rest != 202.5 {
		t.Fatalf("rest angle = %v, want 202.5", rest)
	}

	src := engine.Fixed{0.5, 0}
	final, err := PlanRotation(0, 3, 45, DefaultRotationPolicy(), &src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final != 8*360+202.5 {
		t.Errorf("final = %v, want %v", final, 8*360+202.5)
	}
	if p := PointerAngle(final); p < 135 || p >= 180 {
		t.Errorf("pointer angle %v outside [135,180)", p)
	}

	rng := engine.NewSeededSource(3)
	for i := 0; i < 500; i++ {
		final, err := PlanRotation(0, 3, 45, DefaultRotationPolicy(), rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if final < 8*360 {
			t.Fatalf("final %v below 8 full turns", final)
		}
		if got := SegmentAt(final, 45); got != 3 {
			t.Fatalf("pointer over segment %d, want 3", got)
		}
	}
}

func TestPlanRotationDeterministic(t *testing.T) {
	a := engine.NewSeedStream("server", "client", 5)
	b := engine.NewSeedStream("server", "client", 5)
	fa, err := PlanRotation(90, 2, 60, DefaultRotationPolicy(), a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := PlanRotation(90, 2, 60, DefaultRotationPolicy(), b)
	if err != nil {
		t.Fatal(err)
	}
	if fa != fb {
		t.Errorf("same draws gave %v and %v", fa, fb)
	}
}

func TestPlanRotationErrors(t *testing.T) {
	policy := DefaultRotationPolicy()
	tests := []struct {
		name    string
		current float64
		index   int
		angle   float64
		policy  RotationPolicy
	}{
		{"zero angle", 0, 0, 0, policy},
		{"negative angle", 0, 0, -45, policy},
		{"NaN angle", 0, 0, math.NaN(), policy},
		{"angle over a turn", 0, 0, 400, policy},
		{"index past end", 0, 8, 45, policy},
		{"negative index", 0, -1, 45, policy},
		{"infinite current", math.Inf(1), 0, 45, policy},
		{"jitter too wide", 0, 0, 45, RotationPolicy{JitterRatio: 0.5, MinSpins: 8, MaxSpins: 12}},
		{"spins inverted", 0, 0, 45, RotationPolicy{JitterRatio: 0.4, MinSpins: 12, MaxSpins: 8}},
		{"no spins", 0, 0, 45, RotationPolicy{JitterRatio: 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanRotation(tt.current, tt.index, tt.angle, tt.policy, nil)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestWheelSpinGuard(t *testing.T) {
	policy := DefaultRotationPolicy()
	w, err := NewWheel(segmentsOf("A", "B", "C", "D"), NewTargetSet("B"), policy, engine.NewSeededSource(11))
	if err != nil {
		t.Fatalf("NewWheel: %v", err)
	}

	var completed []SpinResult
	w.OnSpinComplete = func(r SpinResult) { completed = append(completed, r) }

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	first, err := w.Spin(start)
	if err != nil {
		t.Fatalf("first spin: %v", err)
	}
	if first.WinningIndex != 1 || first.Segment.ID != "B" {
		t.Errorf("expected targeted segment B, got %+v", first.Segment)
	}
	if first.FinalRotation != w.Rotation() {
		t.Errorf("rotation %v not updated to %v", w.Rotation(), first.FinalRotation)
	}

	if _, err := w.Spin(start.Add(3 * time.Second)); !errors.Is(err, ErrSpinInProgress) {
		t.Fatalf("expected ErrSpinInProgress during animation, got %v", err)
	}
	if _, err := w.Spin(start.Add(8500 * time.Millisecond)); !errors.Is(err, ErrSpinInProgress) {
		t.Fatalf("expected ErrSpinInProgress during settle, got %v", err)
	}
	if len(completed) != 0 {
		t.Fatalf("completion fired early: %d", len(completed))
	}

	second, err := w.Spin(start.Add(9 * time.Second))
	if err != nil {
		t.Fatalf("second spin: %v", err)
	}
	if len(completed) != 1 || completed[0].FinalRotation != first.FinalRotation {
		t.Fatalf("expected first spin delivered once, got %+v", completed)
	}
	if second.FromRotation != first.FinalRotation || second.FinalRotation <= first.FinalRotation {
		t.Errorf("rotation went from %v to %v", first.FinalRotation, second.FinalRotation)
	}

	if _, ok := w.Poll(start.Add(time.Hour)); !ok {
		t.Error("expected second spin to be delivered")
	}
	if _, ok := w.Poll(start.Add(2 * time.Hour)); ok {
		t.Error("spin delivered twice")
	}
}

func TestNewWheelValidation(t *testing.T) {
	if _, err := NewWheel(nil, nil, DefaultRotationPolicy(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty wheel, got %v", err)
	}
	bad := DefaultRotationPolicy()
	bad.JitterRatio = 0.7
	if _, err := NewWheel(segmentsOf("A"), nil, bad, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for bad policy, got %v", err)
	}

	w, err := NewWheel([]Segment{{Index: 9, ID: "x"}, {Index: 4, ID: "y"}}, nil, DefaultRotationPolicy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range w.Segments() {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
	}
	if w.SegmentAngle() != 180 {
		t.Errorf("segment angle = %v, want 180", w.SegmentAngle())
	}
}
