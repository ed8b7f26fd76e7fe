package games

import (
	"fmt"
	"math"
	"time"

	"github.com/MJE43/promo-games-go/internal/engine"
)

const fullTurn = 360.0

// Segment is one prize wedge. Order determines angular position.
type Segment struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Label string `json:"label"`
	// Prize is carried through untouched (coupon details, discount, color).
	Prize any `json:"prize,omitempty"`
}

// TargetSet holds the identifiers eligible for an engineered win.
type TargetSet map[string]struct{}

// NewTargetSet builds a set from ids, skipping empty strings.
func NewTargetSet(ids ...string) TargetSet {
	ts := make(TargetSet, len(ids))
	for _, id := range ids {
		if id != "" {
			ts[id] = struct{}{}
		}
	}
	return ts
}

// Has reports whether id is targeted.
func (ts TargetSet) Has(id string) bool {
	_, ok := ts[id]
	return ok
}

// IDs returns the identifiers in the set, unordered.
func (ts TargetSet) IDs() []string {
	out := make([]string, 0, len(ts))
	for id := range ts {
		out = append(out, id)
	}
	return out
}

// RotationPolicy holds the tunable constants of the rotation planner and
// the spin guard.
type RotationPolicy struct {
	// JitterRatio bounds the landing offset to ±JitterRatio*segmentAngle
	// around the segment center. Must be in [0, 0.5).
	JitterRatio float64 `yaml:"jitter_ratio" json:"jitter_ratio"`
	MinSpins    int     `yaml:"min_spins" json:"min_spins"`
	MaxSpins    int     `yaml:"max_spins" json:"max_spins"`
	// SpinDuration matches the client's CSS transition.
	SpinDuration time.Duration `yaml:"spin_duration" json:"spin_duration"`
	SettleDelay  time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// DefaultRotationPolicy: ±40% jitter, 8-12 extra turns, 8s spin, 1s settle.
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{
		JitterRatio:  0.4,
		MinSpins:     8,
		MaxSpins:     12,
		SpinDuration: 8 * time.Second,
		SettleDelay:  time.Second,
	}
}

// Validate checks the policy's invariants.
func (p RotationPolicy) Validate() error {
	if math.IsNaN(p.JitterRatio) || p.JitterRatio < 0 || p.JitterRatio >= 0.5 {
		return fmt.Errorf("%w: jitter ratio %v must be in [0, 0.5)", ErrInvalidArgument, p.JitterRatio)
	}
	if p.MinSpins < 1 {
		return fmt.Errorf("%w: min spins must be >= 1, got %d", ErrInvalidArgument, p.MinSpins)
	}
	if p.MaxSpins < p.MinSpins {
		return fmt.Errorf("%w: max spins %d < min spins %d", ErrInvalidArgument, p.MaxSpins, p.MinSpins)
	}
	if p.SpinDuration < 0 || p.SettleDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidArgument)
	}
	return nil
}

// SelectWinner picks the winning segment index. When targets names at least
// one present segment the draw is uniform over those; otherwise it is
// uniform over all segments. Unknown identifiers in targets are ignored.
func SelectWinner(segments []Segment, targets TargetSet, src engine.Source) (int, error) {
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: no segments", ErrInvalidArgument)
	}

	eligible := make([]int, 0, len(segments))
	for i, s := range segments {
		if targets.Has(s.ID) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		for i := range segments {
			eligible = append(eligible, i)
		}
	}

	return eligible[engine.Intn(src, len(eligible))], nil
}

// SegmentCount returns how many segments of the given angle fit a turn.
func SegmentCount(segmentAngle float64) int {
	if segmentAngle <= 0 {
		return 0
	}
	return int(math.Floor(fullTurn/segmentAngle + 1e-9))
}

// MaxRotation bounds the magnitude of a cumulative rotation. Beyond it a
// few turns are lost to float64 rounding.
const MaxRotation = 1e12

// PlanRotation returns the cumulative rotation that brings winningIndex to
// rest under the pointer at 12 o'clock. The result always exceeds current:
// it adds between MinSpins and MaxSpins full turns plus the forward distance
// to the jittered rest angle.
func PlanRotation(current float64, winningIndex int, segmentAngle float64, policy RotationPolicy, src engine.Source) (float64, error) {
	if math.IsNaN(segmentAngle) || segmentAngle <= 0 || segmentAngle > fullTurn {
		return 0, fmt.Errorf("%w: segment angle %v", ErrInvalidArgument, segmentAngle)
	}
	if math.IsNaN(current) || math.IsInf(current, 0) || math.Abs(current) > MaxRotation {
		return 0, fmt.Errorf("%w: current rotation %v", ErrInvalidArgument, current)
	}
	if n := SegmentCount(segmentAngle); winningIndex < 0 || winningIndex >= n {
		return 0, fmt.Errorf("%w: winning index %d out of range [0, %d)", ErrInvalidArgument, winningIndex, n)
	}
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	segmentCenter := float64(winningIndex)*segmentAngle + segmentAngle/2
	targetRest := normalize(fullTurn - segmentCenter)

	bound := segmentAngle * policy.JitterRatio
	jitter := engine.Uniform(src, -bound, bound)

	delta := normalize(targetRest + jitter - normalize(current))
	extra := float64(engine.IntRange(src, policy.MinSpins, policy.MaxSpins)) * fullTurn

	return current + extra + delta, nil
}

// RestAngle is the rotation (mod 360) that centers segment i under the
// pointer, before jitter.
func RestAngle(winningIndex int, segmentAngle float64) float64 {
	return normalize(fullTurn - (float64(winningIndex)*segmentAngle + segmentAngle/2))
}

// PointerAngle returns the wheel angle, in the un-rotated drawing's frame,
// that sits under the pointer after the wheel is rotated by rotation.
func PointerAngle(rotation float64) float64 {
	return normalize(fullTurn - normalize(rotation))
}

// SegmentAt returns the index of the segment under the pointer.
func SegmentAt(rotation, segmentAngle float64) int {
	n := SegmentCount(segmentAngle)
	if n == 0 {
		return -1
	}
	i := int(math.Floor(PointerAngle(rotation) / segmentAngle))
	if i >= n {
		i = n - 1
	}
	return i
}

func normalize(deg float64) float64 {
	r := math.Mod(deg, fullTurn)
	if r < 0 {
		r += fullTurn
	}
	if r >= fullTurn {
		r = 0
	}
	return r
}

// SpinResult is the event emitted for a completed spin.
type SpinResult struct {
	WinningIndex  int       `json:"winning_index"`
	Segment       Segment   `json:"segment"`
	FromRotation  float64   `json:"from_rotation"`
	FinalRotation float64   `json:"final_rotation"`
	StartedAt     time.Time `json:"started_at"`
	SettlesAt     time.Time `json:"settles_at"`
}

// Wheel is one wheel instance on one page load. It owns the rotation state
// and rejects spins while a previous spin is still animating or settling.
// A Wheel is not safe for concurrent use.
type Wheel struct {
	segments []Segment
	targets  TargetSet
	policy   RotationPolicy
	src      engine.Source

	rotation  float64
	busyUntil time.Time
	pending   *SpinResult

	// OnSpinComplete, when set, receives each spin once its settle delay
	// has elapsed. Delivery happens on the next Poll or Spin call.
	OnSpinComplete func(SpinResult)
}

// NewWheel validates its inputs and returns a wheel at rotation zero.
func NewWheel(segments []Segment, targets TargetSet, policy RotationPolicy, src engine.Source) (*Wheel, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrInvalidArgument)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = engine.Default()
	}
	segs := make([]Segment, len(segments))
	copy(segs, segments)
	for i := range segs {
		segs[i].Index = i
	}
	if targets == nil {
		targets = TargetSet{}
	}
	return &Wheel{segments: segs, targets: targets, policy: policy, src: src}, nil
}

// Segments returns a copy of the wheel's segments.
func (w *Wheel) Segments() []Segment {
	out := make([]Segment, len(w.segments))
	copy(out, w.segments)
	return out
}

// Targets returns the wheel's target set.
func (w *Wheel) Targets() TargetSet { return w.targets }

// SegmentAngle is 360/N.
func (w *Wheel) SegmentAngle() float64 { return fullTurn / float64(len(w.segments)) }

// SetSource replaces the random source used by later spins.
func (w *Wheel) SetSource(src engine.Source) {
	if src == nil {
		src = engine.Default()
	}
	w.src = src
}

// Rotation returns the cumulative rotation.
func (w *Wheel) Rotation() float64 { return w.rotation }

// Busy reports whether a spin is still animating or settling at now.
func (w *Wheel) Busy(now time.Time) bool { return now.Before(w.busyUntil) }

// Poll delivers a settled spin to OnSpinComplete. It returns the delivered
// result, if any.
func (w *Wheel) Poll(now time.Time) (SpinResult, bool) {
	if w.pending == nil || w.Busy(now) {
		return SpinResult{}, false
	}
	res := *w.pending
	w.pending = nil
	if w.OnSpinComplete != nil {
		w.OnSpinComplete(res)
	}
	return res, true
}

// Spin selects a winner and advances the rotation. It fails with
// ErrSpinInProgress until the previous spin has settled.
func (w *Wheel) Spin(now time.Time) (SpinResult, error) {
	w.Poll(now)
	if w.Busy(now) {
		return SpinResult{}, fmt.Errorf("%w: wheel settles at %s", ErrSpinInProgress, w.busyUntil.Format(time.RFC3339Nano))
	}

	idx, err := SelectWinner(w.segments, w.targets, w.src)
	if err != nil {
		return SpinResult{}, err
	}
	final, err := PlanRotation(w.rotation, idx, w.SegmentAngle(), w.policy, w.src)
	if err != nil {
		return SpinResult{}, err
	}

	res := SpinResult{
		WinningIndex:  idx,
		Segment:       w.segments[idx],
		FromRotation:  w.rotation,
		FinalRotation: final,
		StartedAt:     now,
		SettlesAt:     now.Add(w.policy.SpinDuration + w.policy.SettleDelay),
	}
	w.rotation = final
	w.busyUntil = res.SettlesAt
	w.pending = &res
	return res, nil
}
