package main

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

func newTestGate(limit int, analyze, pause bool, analyzer analyzeFunc) (*analysisGate, *[]string) {
	events := &[]string{}
	g := &analysisGate{
		limit:    limit,
		interval: time.Minute,
		analyze:  analyze,
		pause:    pause,
		analyzer: analyzer,
		confirm:  func(string) { *events = append(*events, "confirm") },
		log:      discardLogger(),
		sleep:    func(time.Duration) { *events = append(*events, "sleep") },
		now:      time.Now,
	}
	return g, events
}

func TestGateBelowLimitDoesNothing(t *testing.T) {
	g, events := newTestGate(3, true, true, func(int) (int, error) {
		t.Fatal("analyzer invoked below limit")
		return 0, nil
	})

	state := &sprayState{attempts: 2}
	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(*events) != 0 {
		t.Errorf("events = %v, want none", *events)
	}
	if state.attempts != 2 {
		t.Errorf("attempts = %d, want 2 (untouched)", state.attempts)
	}
}

func TestGateUnlimitedBudgetDoesNothing(t *testing.T) {
	g, events := newTestGate(0, false, false, nil)
	state := &sprayState{attempts: 1000}
	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(*events) != 0 {
		t.Errorf("events = %v, want none", *events)
	}
}

func TestGateSleepsAndResetsAtLimit(t *testing.T) {
	g, events := newTestGate(2, false, false, nil)
	state := &sprayState{attempts: 2}

	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if state.attempts != 0 {
		t.Errorf("attempts = %d, want 0 after sleep", state.attempts)
	}
	if n := countEvents(*events, "sleep"); n != 1 {
		t.Errorf("sleeps = %d, want 1", n)
	}
}

func TestGatePausesOnNewHits(t *testing.T) {
	g, events := newTestGate(1, true, true, func(current int) (int, error) {
		return current + 1, nil
	})
	state := &sprayState{attempts: 1, totalHits: 0}

	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if state.totalHits != 1 {
		t.Errorf("totalHits = %d, want 1", state.totalHits)
	}
	if n := countEvents(*events, "confirm"); n != 1 {
		t.Errorf("confirms = %d, want 1", n)
	}
}

func TestGateUpdatesHitsWithoutPausing(t *testing.T) {
	g, events := newTestGate(1, true, false, func(current int) (int, error) {
		return 5, nil
	})
	state := &sprayState{attempts: 1, totalHits: 2}

	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if state.totalHits != 5 {
		t.Errorf("totalHits = %d, want 5", state.totalHits)
	}
	if n := countEvents(*events, "confirm"); n != 0 {
		t.Errorf("confirms = %d, want 0 when pause disabled", n)
	}
}

func TestGateNoPauseWhenHitCountStable(t *testing.T) {
	g, events := newTestGate(1, true, true, func(current int) (int, error) {
		return current, nil
	})
	state := &sprayState{attempts: 1, totalHits: 3}

	if err := g.check(state); err != nil {
		t.Fatalf("check: %v", err)
	}
	if n := countEvents(*events, "confirm"); n != 0 {
		t.Errorf("confirms = %d, want 0 with no new hits", n)
	}
}

func TestGateQuietKeepsScreenSilent(t *testing.T) {
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	g, _ := newTestGate(1, true, true, func(current int) (int, error) {
		return current + 1, nil
	})
	state := &sprayState{attempts: 1}
	checkErr := g.check(state)

	os.Stdout = old
	w.Close()
	out, readErr := io.ReadAll(r)
	r.Close()
	if readErr != nil {
		t.Fatal(readErr)
	}

	if checkErr != nil {
		t.Fatalf("check: %v", checkErr)
	}
	if len(out) != 0 {
		t.Errorf("screen output while quiet: %q", out)
	}
}

func TestGateAnalyzerFailureAbortsRun(t *testing.T) {
	wantErr := errors.New("artifact unreadable")
	g, events := newTestGate(1, true, true, func(int) (int, error) {
		return 0, wantErr
	})
	state := &sprayState{attempts: 1}

	err := g.check(state)
	if !errors.Is(err, wantErr) {
		t.Fatalf("check error = %v, want wrapped %v", err, wantErr)
	}
	// The run aborts before sleeping or resetting.
	if n := countEvents(*events, "sleep"); n != 0 {
		t.Errorf("sleeps = %d, want 0", n)
	}
	if state.attempts != 1 {
		t.Errorf("attempts = %d, want 1 (unreset)", state.attempts)
	}
}
