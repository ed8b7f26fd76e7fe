package games

import (
	"fmt"
	"math"
)

// ScratchPhase is the lifecycle state of a scratch card.
type ScratchPhase int

const (
	Unscratched ScratchPhase = iota
	Scratching
	Revealed
)

func (p ScratchPhase) String() string {
	switch p {
	case Unscratched:
		return "unscratched"
	case Scratching:
		return "scratching"
	case Revealed:
		return "revealed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ScratchPolicy holds the reveal detector's thresholds.
type ScratchPolicy struct {
	// RevealThreshold is the cleared fraction, in (0,1], that latches the
	// card as revealed.
	RevealThreshold float64 `yaml:"reveal_threshold" json:"reveal_threshold"`
	// AlphaThreshold: a pixel counts as cleared when its alpha is below it.
	AlphaThreshold uint8 `yaml:"alpha_threshold" json:"alpha_threshold"`
	// BrushRadius is used by callers that do not send a radius per stroke.
	BrushRadius float64 `yaml:"brush_radius" json:"brush_radius"`
}

// DefaultScratchPolicy matches a 40px round brush and a 45% reveal.
func DefaultScratchPolicy() ScratchPolicy {
	return ScratchPolicy{RevealThreshold: 0.45, AlphaThreshold: 128, BrushRadius: 20}
}

// Validate checks the policy's invariants.
func (p ScratchPolicy) Validate() error {
	if math.IsNaN(p.RevealThreshold) || p.RevealThreshold <= 0 || p.RevealThreshold > 1 {
		return fmt.Errorf("%w: reveal threshold %v must be in (0, 1]", ErrInvalidArgument, p.RevealThreshold)
	}
	if p.AlphaThreshold == 0 {
		return fmt.Errorf("%w: alpha threshold must be positive", ErrInvalidArgument)
	}
	if p.BrushRadius < 0 {
		return fmt.Errorf("%w: brush radius %v", ErrInvalidArgument, p.BrushRadius)
	}
	return nil
}

// ScratchCard tracks the coating of one card as an alpha buffer and latches
// the reveal once enough of it has been erased. It is not safe for
// concurrent use.
type ScratchCard struct {
	width, height int
	alpha         []uint8
	policy        ScratchPolicy

	phase   ScratchPhase
	cleared float64

	inStroke     bool
	lastX, lastY float64

	// OnReveal fires once per card, when the reveal latches.
	OnReveal func(clearedFraction float64)
}

// NewScratchCard returns a fully coated card.
func NewScratchCard(width, height int, policy ScratchPolicy) (*ScratchCard, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidArgument, width, height)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	c := &ScratchCard{
		width:  width,
		height: height,
		alpha:  make([]uint8, width*height),
		policy: policy,
	}
	c.Reset()
	return c, nil
}

// Reset recoats the card for a new prize.
func (c *ScratchCard) Reset() {
	for i := range c.alpha {
		c.alpha[i] = 255
	}
	c.phase = Unscratched
	c.cleared = 0
	c.inStroke = false
}

func (c *ScratchCard) Width() int { return c.width }
func (c *ScratchCard) Height() int { return c.height }
func (c *ScratchCard) Phase() ScratchPhase { return c.phase }
func (c *ScratchCard) Revealed() bool { return c.phase == Revealed }
func (c *ScratchCard) ClearedFraction() float64 { return c.cleared }
func (c *ScratchCard) Policy() ScratchPolicy { return c.policy }

// StrokeAt erases a disc centered on (x, y) and starts a gesture there.
func (c *ScratchCard) StrokeAt(x, y, radius float64) {
	if c.phase == Revealed || !usableRadius(radius) || !finite(x) || !finite(y) {
		return
	}
	x, y = c.clamp(x, y)
	c.erase(x, y, x, y, radius)
	c.inStroke = true
	c.lastX, c.lastY = x, y
	c.after()
}

// StrokeTo erases a round-capped segment from the previous stroke point to
// (x, y). Outside a gesture it behaves like StrokeAt.
func (c *ScratchCard) StrokeTo(x, y, radius float64) {
	if !c.inStroke {
		c.StrokeAt(x, y, radius)
		return
	}
	if c.phase == Revealed || !usableRadius(radius) || !finite(x) || !finite(y) {
		return
	}
	x, y = c.clamp(x, y)
	c.erase(c.lastX, c.lastY, x, y, radius)
	c.lastX, c.lastY = x, y
	c.after()
}

// EndStroke ends the current gesture.
func (c *ScratchCard) EndStroke() { c.inStroke = false }

// Sample returns the fraction of pixels whose alpha is below the policy's
// alpha threshold.
func (c *ScratchCard) Sample() float64 {
	cleared := 0
	for _, a := range c.alpha {
		if a < c.policy.AlphaThreshold {
			cleared++
		}
	}
	return float64(cleared) / float64(len(c.alpha))
}

func (c *ScratchCard) after() {
	if c.phase == Unscratched {
		c.phase = Scratching
	}
	c.cleared = c.Sample()
	if c.cleared >= c.policy.RevealThreshold {
		c.phase = Revealed
		c.inStroke = false
		if c.OnReveal != nil {
			c.OnReveal(c.cleared)
		}
	}
}

func (c *ScratchCard) clamp(x, y float64) (float64, float64) {
	return math.Min(math.Max(x, 0), float64(c.width)), math.Min(math.Max(y, 0), float64(c.height))
}

// erase zeroes every pixel whose center lies within radius of the segment
// (x0,y0)-(x1,y1). A zero-length segment is a disc.
func (c *ScratchCard) erase(x0, y0, x1, y1, radius float64) {
	minX := int(math.Floor(math.Min(x0, x1) - radius))
	maxX := int(math.Ceil(math.Max(x0, x1) + radius))
	minY := int(math.Floor(math.Min(y0, y1) - radius))
	maxY := int(math.Ceil(math.Max(y0, y1) + radius))
	minX, maxX = max(minX, 0), min(maxX, c.width-1)
	minY, maxY = max(minY, 0), min(maxY, c.height-1)

	r2 := radius * radius
	dx, dy := x1-x0, y1-y0
	l2 := dx*dx + dy*dy

	for py := minY; py <= maxY; py++ {
		row := py * c.width
		cy := float64(py) + 0.5
		for px := minX; px <= maxX; px++ {
			cx := float64(px) + 0.5
			t := 0.0
			if l2 > 0 {
				t = ((cx-x0)*dx + (cy-y0)*dy) / l2
				t = math.Max(0, math.Min(1, t))
			}
			ex, ey := cx-(x0+t*dx), cy-(y0+t*dy)
			if ex*ex+ey*ey <= r2 {
				c.alpha[row+px] = 0
			}
		}
	}
}

func usableRadius(r float64) bool { return r > 0 && finite(r) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
