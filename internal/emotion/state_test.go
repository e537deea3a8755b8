package emotion

import (
	"testing"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/types"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultTuning().Emotion, time.Unix(0, 0))
}

func TestApplyDecayPullsTowardBaseline(t *testing.T) {
	engine := newTestEngine()
	engine.Restore(State{Valence: 0.8, Arousal: 0.9})

	engine.ApplyDecay(2*time.Hour, time.Unix(0, 0).Add(2*time.Hour))

	got := engine.Snapshot()
	if got.Valence >= 0.8 || got.Valence < 0 {
		t.Fatalf("valence should move toward 0 without overshooting, got %v", got.Valence)
	}
	if got.Arousal >= 0.9 || got.Arousal < 0.5 {
		t.Fatalf("arousal should move toward 0.5 without overshooting, got %v", got.Arousal)
	}
}

func TestApplyDecayNeverOvershoots(t *testing.T) {
	engine := newTestEngine()
	engine.Restore(State{Valence: 0.01, Arousal: 0.51})

	engine.ApplyDecay(24*time.Hour, time.Unix(0, 0).Add(24*time.Hour))

	got := engine.Snapshot()
	if got.Valence != 0 {
		t.Fatalf("expected valence to settle at 0, got %v", got.Valence)
	}
	if got.Arousal != 0.5 {
		t.Fatalf("expected arousal to settle at 0.5, got %v", got.Arousal)
	}
}

func TestApplyDecayZeroElapsedIsNoop(t *testing.T) {
	engine := newTestEngine()
	engine.Restore(State{Valence: -0.4, Arousal: 0.7})
	before := engine.Snapshot()

	engine.ApplyDecay(0, time.Unix(0, 0))
	engine.ApplyDecay(-time.Hour, time.Unix(0, 0))

	got := engine.Snapshot()
	if got.Valence != before.Valence || got.Arousal != before.Arousal {
		t.Fatalf("expected no change, got %+v", got)
	}
}

func TestApplyDecayClampsElapsedTo24Hours(t *testing.T) {
	a := newTestEngine()
	b := newTestEngine()
	a.Restore(State{Valence: 0.9, Arousal: 0.9})
	b.Restore(State{Valence: 0.9, Arousal: 0.9})

	a.ApplyDecay(24*time.Hour, time.Unix(0, 0))
	b.ApplyDecay(1000*time.Hour, time.Unix(0, 0))

	if a.Snapshot() != b.Snapshot() {
		t.Fatalf("elapsed beyond 24h must decay like 24h: %+v vs %+v", a.Snapshot(), b.Snapshot())
	}
}

func TestInteractionImpactDampedByIntimacy(t *testing.T) {
	perception := types.PerceptionResult{SurfaceEmotion: "joy", Confidence: 1}

	distant := newTestEngine()
	bonded := newTestEngine()
	distant.ApplyInteractionImpact(perception, 0, time.Unix(0, 0))
	bonded.ApplyInteractionImpact(perception, 1, time.Unix(0, 0))

	if bonded.Snapshot().Valence >= distant.Snapshot().Valence {
		t.Fatalf("high intimacy must dampen the swing: bonded=%v distant=%v",
			bonded.Snapshot().Valence, distant.Snapshot().Valence)
	}
}

func TestInteractionImpactRaisesResentment(t *testing.T) {
	engine := newTestEngine()
	engine.ApplyInteractionImpact(types.PerceptionResult{
		SurfaceEmotion: "anger",
		Offensiveness:  8,
		Confidence:     1,
	}, 0.2, time.Unix(0, 0))

	if engine.Snapshot().Resentment <= 0 {
		t.Fatalf("offensive input should raise resentment")
	}
}

func TestApplyShiftClamps(t *testing.T) {
	engine := newTestEngine()
	engine.ApplyShift(5, 5, time.Unix(0, 0))

	got := engine.Snapshot()
	if got.Valence != 1 || got.Arousal != 1 {
		t.Fatalf("expected clamped state, got %+v", got)
	}
}

func TestIsMeltdown(t *testing.T) {
	engine := newTestEngine()
	if engine.IsMeltdown() {
		t.Fatalf("neutral state must not be meltdown")
	}

	engine.Restore(State{Valence: -0.8, Arousal: 0.95})
	if !engine.IsMeltdown() {
		t.Fatalf("high arousal + strongly negative valence must be meltdown")
	}

	engine.Restore(State{Valence: -0.8, Arousal: 0.5})
	if engine.IsMeltdown() {
		t.Fatalf("low arousal must not be meltdown")
	}
}

func TestFatigueCurve(t *testing.T) {
	day := func(hour, min int) time.Time {
		return time.Date(2026, 3, 1, hour, min, 0, 0, time.UTC)
	}

	if got := Fatigue(day(14, 0)); got != 0 {
		t.Fatalf("midday fatigue should be 0, got %v", got)
	}
	if got := Fatigue(day(3, 0)); got != 0.9 {
		t.Fatalf("overnight fatigue should hold at 0.9, got %v", got)
	}
	if got := Fatigue(day(22, 30)); got <= 0 || got >= 0.9 {
		t.Fatalf("late evening fatigue should be ramping, got %v", got)
	}
	if got := Fatigue(day(7, 30)); got <= 0 || got >= 0.9 {
		t.Fatalf("early morning fatigue should be recovering, got %v", got)
	}
}

func TestToleranceModifiers(t *testing.T) {
	base := Tolerance(0.2, false, 0)
	support := Tolerance(0.2, true, 0)
	repeats := Tolerance(0.2, false, 5)

	if support >= base || repeats >= base {
		t.Fatalf("modifiers must reduce tolerance: base=%v support=%v repeats=%v", base, support, repeats)
	}
	if Tolerance(0.9, true, 10) != 0 {
		t.Fatalf("tolerance must clamp at 0")
	}
}
