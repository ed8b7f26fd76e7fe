package jobs

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingPruner struct {
	calls atomic.Int32
	idle  atomic.Int64
}

func (p *countingPruner) PruneSessions(idle time.Duration) int {
	p.calls.Add(1)
	p.idle.Store(int64(idle))
	return 1
}

func TestNewSchedulerValidation(t *testing.T) {
	p := &countingPruner{}
	tests := []struct {
		name     string
		pruner   Pruner
		schedule string
		idle     time.Duration
	}{
		{"nil pruner", nil, "@every 1m", time.Minute},
		{"zero idle", p, "@every 1m", 0},
		{"bad schedule", p, "every minute", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduler(tt.pruner, tt.schedule, tt.idle); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewScheduler(p, "*/5 * * * *", time.Minute); err != nil {
		t.Fatalf("standard schedule rejected: %v", err)
	}
}

func TestSchedulerRunsPrune(t *testing.T) {
	p := &countingPruner{}
	s, err := NewScheduler(p, "@every 1s", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if p.calls.Load() == 0 {
		t.Fatal("prune job never ran")
	}
	if got := time.Duration(p.idle.Load()); got != 30*time.Minute {
		t.Errorf("idle = %v, want 30m", got)
	}
}

func TestPruneDirect(t *testing.T) {
	p := &countingPruner{}
	s, err := NewScheduler(p, "@hourly", time.Minute)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.prune()
	if p.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", p.calls.Load())
	}
}
