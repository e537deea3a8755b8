package intimacy

import (
	"testing"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultTuning().Intimacy, t0)
}

func TestUpdateGrowsIntimacy(t *testing.T) {
	engine := newTestEngine()
	before := engine.Snapshot()

	delta := engine.Update(1.2, 0.5, t0.Add(time.Minute))

	got := engine.Snapshot()
	if delta <= 0 || got.Intimacy <= before.Intimacy {
		t.Fatalf("positive interaction must grow intimacy, delta=%v", delta)
	}
	if got.TotalInteractions != 1 {
		t.Fatalf("expected interaction counted, got %d", got.TotalInteractions)
	}
}

func TestUpdateNeverExceedsCap(t *testing.T) {
	tuning := config.DefaultTuning().Intimacy
	tuning.BaseCoefficient = 10 // force a huge raw step
	engine := NewEngine(tuning, t0)

	delta := engine.Update(1.5, 1, t0.Add(time.Minute))
	if delta > tuning.PerUpdateCap {
		t.Fatalf("delta %v exceeds per-update cap %v", delta, tuning.PerUpdateCap)
	}
}

func TestUpdateSlowsAsIntimacyRises(t *testing.T) {
	low := newTestEngine()
	high := newTestEngine()
	high.Restore(State{Intimacy: 0.9, GrowthCoefficient: 1, LastInteraction: t0})

	dLow := low.Update(1, 0, t0.Add(time.Minute))
	dHigh := high.Update(1, 0, t0.Add(time.Minute))
	if dHigh >= dLow {
		t.Fatalf("growth must slow at high intimacy: low=%v high=%v", dLow, dHigh)
	}
}

func TestApplyNegativeFeedbackNeverIncreases(t *testing.T) {
	for _, severity := range []float64{0, 0.2, 0.5, 1} {
		engine := newTestEngine()
		engine.Restore(State{Intimacy: 0.6, GrowthCoefficient: 0.8, LastInteraction: t0})
		before := engine.Snapshot()

		engine.ApplyNegativeFeedback(severity, t0)

		got := engine.Snapshot()
		if got.Intimacy > before.Intimacy {
			t.Fatalf("severity %v increased intimacy", severity)
		}
		if got.GrowthCoefficient > before.GrowthCoefficient {
			t.Fatalf("severity %v increased growth coefficient", severity)
		}
	}
}

func TestNegativeFeedbackOpensCooldown(t *testing.T) {
	engine := newTestEngine()
	engine.ApplyNegativeFeedback(1, t0)

	got := engine.Snapshot()
	if got.CoolingUntil == nil {
		t.Fatalf("expected cooldown to open")
	}
	want := t0.Add(8 * time.Hour) // 2 + 1*6 hours
	if !got.CoolingUntil.Equal(want) {
		t.Fatalf("expected cooldown until %v, got %v", want, got.CoolingUntil)
	}
}

func TestCooldownPenalizesGrowth(t *testing.T) {
	normal := newTestEngine()
	cooled := newTestEngine()
	cooled.ApplyNegativeFeedback(0.5, t0)
	cooledState := cooled.Snapshot()
	// Put both engines at the same closeness and coefficient so only the
	// cooldown differs.
	normal.Restore(State{Intimacy: cooledState.Intimacy, GrowthCoefficient: cooledState.GrowthCoefficient, LastInteraction: t0})

	dNormal := normal.Update(1, 0.5, t0.Add(time.Minute))
	dCooled := cooled.Update(1, 0.5, t0.Add(time.Minute))
	if dCooled >= dNormal {
		t.Fatalf("cooldown must shrink growth: normal=%v cooled=%v", dNormal, dCooled)
	}
}

func TestGrowthCoefficientRecoversOnPositiveUpdate(t *testing.T) {
	engine := newTestEngine()
	engine.ApplyNegativeFeedback(1, t0)
	reduced := engine.Snapshot().GrowthCoefficient

	engine.Update(1.2, 0.5, t0.Add(10*time.Hour))

	got := engine.Snapshot().GrowthCoefficient
	if got <= reduced {
		t.Fatalf("positive update must recover growth coefficient: %v -> %v", reduced, got)
	}
	if got > reduced+0.011 {
		t.Fatalf("recovery must be a small fixed increment, got %v -> %v", reduced, got)
	}
}

func TestNaturalRegressionGatedToOneHour(t *testing.T) {
	engine := newTestEngine()
	engine.Restore(State{Intimacy: 0.9, GrowthCoefficient: 1, LastInteraction: t0})

	if moved := engine.ApplyNaturalRegression(t0.Add(30 * time.Minute)); moved != 0 {
		t.Fatalf("regression under one hour must be a no-op, moved %v", moved)
	}
}

func TestNaturalRegressionAfterLongAbsence(t *testing.T) {
	engine := newTestEngine()
	engine.Restore(State{Intimacy: 0.9, GrowthCoefficient: 1, LastInteraction: t0})

	moved := engine.ApplyNaturalRegression(t0.Add(48 * time.Hour))

	// 0.002/hour * 48h = 0.096
	if moved <= 0 {
		t.Fatalf("expected regression after 48h")
	}
	if diff := moved - 0.096; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected bounded computable regression 0.096, got %v", moved)
	}
	if got := engine.Snapshot().Intimacy; got >= 0.9 {
		t.Fatalf("intimacy must strictly decrease, got %v", got)
	}
}

func TestNaturalRegressionAmplifiedWhileCooling(t *testing.T) {
	normal := newTestEngine()
	cooled := newTestEngine()
	normal.Restore(State{Intimacy: 0.9, GrowthCoefficient: 1, LastInteraction: t0})
	until := t0.Add(100 * time.Hour)
	cooled.Restore(State{Intimacy: 0.9, GrowthCoefficient: 1, LastInteraction: t0, CoolingUntil: &until})

	mNormal := normal.ApplyNaturalRegression(t0.Add(5 * time.Hour))
	mCooled := cooled.ApplyNaturalRegression(t0.Add(5 * time.Hour))
	if mCooled <= mNormal {
		t.Fatalf("cooling must amplify regression: normal=%v cooled=%v", mNormal, mCooled)
	}
}

func TestIntimacyNeverBelowFloor(t *testing.T) {
	engine := newTestEngine()
	for i := 0; i < 20; i++ {
		engine.ApplyNegativeFeedback(1, t0)
	}
	if got := engine.Snapshot().Intimacy; got < 0.1 {
		t.Fatalf("intimacy below floor: %v", got)
	}
	if got := engine.Snapshot().GrowthCoefficient; got < 0.1 {
		t.Fatalf("growth coefficient below floor: %v", got)
	}
}
