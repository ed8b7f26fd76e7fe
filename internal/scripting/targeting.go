package scripting

import (
	"errors"
	"fmt"
	"os"

	"github.com/MJE43/promo-games-go/internal/games"
)

// ErrNoTargetFunc is returned when a script does not define target().
var ErrNoTargetFunc = errors.New("script must define a target() function")

// Customer is what a targeting script sees about the player.
type Customer struct {
	ID     string `json:"id"`
	GameID string `json:"gameId"`
	// UpstreamTargets holds the targeted coupons the promotions service sent.
	UpstreamTargets []string `json:"upstreamTargets"`
}

type scriptSegment struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Targeter evaluates a compiled targeting script. It is safe for
// concurrent use; calls are serialized on the underlying runtime.
type Targeter struct {
	vm *VM
}

// Compile runs source and checks that it defines target().
func Compile(source string) (*Targeter, error) {
	vm := NewVM()
	if err := vm.Execute(source); err != nil {
		return nil, err
	}
	if !vm.HasFunc("target") {
		return nil, ErrNoTargetFunc
	}
	return &Targeter{vm: vm}, nil
}

// LoadFile compiles the script stored at path.
func LoadFile(path string) (*Targeter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targeting script: %w", err)
	}
	return Compile(string(src))
}

// Target returns the identifiers the script picks for customer. A script
// returning null or undefined yields an empty set; any other non-array
// result is an error.
func (t *Targeter) Target(customer Customer, segments []games.Segment) (games.TargetSet, error) {
	if customer.UpstreamTargets == nil {
		customer.UpstreamTargets = []string{}
	}
	segs := make([]scriptSegment, len(segments))
	for i, s := range segments {
		segs[i] = scriptSegment{Index: s.Index, ID: s.ID, Label: s.Label}
	}

	out, err := t.vm.Call("target", customer, segs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return games.TargetSet{}, nil
	}

	if ids, ok := out.([]string); ok {
		return games.NewTargetSet(ids...), nil
	}
	items, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("target() must return an array, got %T", out)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case int64, float64:
			ids = append(ids, fmt.Sprint(v))
		default:
			return nil, fmt.Errorf("target() returned a non-string id %v", item)
		}
	}
	return games.NewTargetSet(ids...), nil
}

// Logs returns what the script printed with log() or console.log().
func (t *Targeter) Logs() []LogEntry { return t.vm.GetLogs() }
