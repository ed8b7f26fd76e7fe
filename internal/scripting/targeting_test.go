package scripting

import (
	"errors"
	"strings"
	"testing"

	"github.com/MJE43/promo-games-go/internal/games"
)

var testSegments = []games.Segment{
	{Index: 0, ID: "gold", Label: "Gold"},
	{Index: 1, ID: "silver", Label: "Silver"},
	{Index: 2, ID: "bronze", Label: "Bronze"},
}

func TestTargetFiltersSegments(t *testing.T) {
	tg, err := Compile(`
		function target(customer, segments) {
			log("customer", customer.id)
			if (customer.id.indexOf("vip-") === 0) {
				return segments.filter(function (s) { return s.label === "Gold" }).map(function (s) { return s.id })
			}
			return customer.upstreamTargets
		}
	`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	ts, err := tg.Target(Customer{ID: "vip-1"}, testSegments)
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if len(ts) != 1 || !ts.Has("gold") {
		t.Errorf("expected {gold}, got %v", ts.IDs())
	}

	ts, err = tg.Target(Customer{ID: "c2", UpstreamTargets: []string{"silver"}}, testSegments)
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if len(ts) != 1 || !ts.Has("silver") {
		t.Errorf("expected upstream targets passed through, got %v", ts.IDs())
	}

	logs := tg.Logs()
	if len(logs) != 2 || logs[0].Message != "customer vip-1" {
		t.Errorf("unexpected logs %+v", logs)
	}
}

func TestTargetNullMeansNoTargets(t *testing.T) {
	tg, err := Compile(`function target() { return null }`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ts, err := tg.Target(Customer{ID: "c"}, testSegments)
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if len(ts) != 0 {
		t.Errorf("expected empty set, got %v", ts.IDs())
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile(`var x = 1`); !errors.Is(err, ErrNoTargetFunc) {
		t.Errorf("expected ErrNoTargetFunc, got %v", err)
	}
	if _, err := Compile(`function target( {`); err == nil {
		t.Error("expected syntax error")
	}
}

func TestTargetRejectsBadResults(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"object", `function target() { return {a: 1} }`},
		{"nested", `function target() { return [["gold"]] }`},
		{"throws", `function target() { throw new Error("nope") }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg, err := Compile(tt.script)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if _, err := tg.Target(Customer{ID: "c"}, testSegments); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSandboxBlocksEscapes(t *testing.T) {
	tg, err := Compile(`
		function target() {
			if (typeof require !== "undefined" || typeof fetch !== "undefined" || typeof eval !== "undefined") {
				return ["leak"]
			}
			return []
		}
	`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ts, err := tg.Target(Customer{ID: "c"}, testSegments)
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if ts.Has("leak") {
		t.Error("sandbox exposes require/fetch/eval")
	}
}

func TestRunawayScriptTimesOut(t *testing.T) {
	tg, err := Compile(`function target() { while (true) {} }`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = tg.Target(Customer{ID: "c"}, testSegments)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}

	// The runtime must be usable again after an interrupt.
	tg2, err := Compile(`var calls = 0; function target() { calls++; if (calls === 1) { while (true) {} } return ["gold"] }`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := tg2.Target(Customer{ID: "c"}, testSegments); err == nil {
		t.Fatal("expected first call to time out")
	}
	ts, err := tg2.Target(Customer{ID: "c"}, testSegments)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !ts.Has("gold") {
		t.Errorf("expected gold, got %v", ts.IDs())
	}
}
