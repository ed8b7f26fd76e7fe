// Package games holds the policy core of the promotion mini games: the spin
// wheel outcome selector and rotation planner, the scratch-card reveal
// detector, and quiz answer bookkeeping. Nothing here renders or animates;
// callers feed it inputs and react to its results.
package games

import "errors"

var (
	// ErrInvalidArgument reports a violated precondition (empty wheel,
	// non-positive segment angle, index out of range).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSpinInProgress is returned when a spin is requested before the
	// previous spin's animation and settle delay have elapsed.
	ErrSpinInProgress = errors.New("spin in progress")
	// ErrUnanswered is returned when a quiz is submitted with a question
	// left blank.
	ErrUnanswered = errors.New("question not answered")
)

// GameSpec describes a mini game for listings and readiness checks.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var registry = []GameSpec{
	{ID: "spin-wheel", Name: "Spin Wheel", Description: "prize wheel with targeted outcomes"},
	{ID: "scratch-card", Name: "Scratch Card", Description: "coated card revealed past a cleared-area threshold"},
	{ID: "quiz", Name: "Quiz", Description: "question campaign gating coupon claims"},
}

// ListGames returns the specs of every available game.
func ListGames() []GameSpec {
	out := make([]GameSpec, len(registry))
	copy(out, registry)
	return out
}

// GetGame looks up a game by id.
func GetGame(id string) (GameSpec, bool) {
	for _, g := range registry {
		if g.ID == id {
			return g, true
		}
	}
	return GameSpec{}, false
}
