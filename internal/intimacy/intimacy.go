// Package intimacy maintains the relationship closeness scalar and its
// non-linear growth, cooldown and regression dynamics.
package intimacy

import (
	"math"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
)

// State is the persisted intimacy snapshot. Intimacy ∈ [floor,1],
// GrowthCoefficient ∈ [0.1,1].
type State struct {
	Intimacy          float64    `json:"intimacy"`
	GrowthCoefficient float64    `json:"growth_coefficient"`
	CoolingUntil      *time.Time `json:"cooling_until,omitempty"`
	LastInteraction   time.Time  `json:"last_interaction"`
	TotalInteractions int        `json:"total_interactions"`
}

// Engine owns the intimacy state. Mutations are atomic; the regression
// schedule and the pipeline share the instance.
type Engine struct {
	mu     sync.Mutex
	state  State
	tuning config.IntimacyTuning
}

// NewEngine returns an engine starting at the configured floor.
func NewEngine(tuning config.IntimacyTuning, now time.Time) *Engine {
	return &Engine{
		state: State{
			Intimacy:          tuning.Floor,
			GrowthCoefficient: 1,
			LastInteraction:   now,
		},
		tuning: tuning,
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Restore replaces the current state, clamping scalars.
func (e *Engine) Restore(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.clamped(state)
}

// Update applies the growth law for one interaction:
//
//	ΔI = Q · E · T · B(I) · coolingPenalty
//
// Q is interaction quality in [0.5,1.5], E scales with current valence,
// T shrinks with the gap since the last interaction (floored), B(I) makes
// growth harder as closeness rises, and an active cooldown multiplies the
// whole step down. The step is capped per call. A positive step also recovers
// the growth coefficient by one small fixed increment.
func (e *Engine) Update(quality, valence float64, now time.Time) float64 {
	quality = clamp(quality, 0.5, 1.5)

	e.mu.Lock()
	defer e.mu.Unlock()

	gap := now.Sub(e.state.LastInteraction)
	timeFactor := 1.0
	if gap > 0 {
		// Halves roughly every three days away, floored.
		timeFactor = math.Max(e.tuning.TimeFactorFloor, 1-gap.Hours()/144)
	}

	emotionFactor := 1 + 0.3*clamp(valence, -1, 1)
	bonding := math.Sqrt(1-e.state.Intimacy) * e.tuning.BaseCoefficient * e.state.GrowthCoefficient

	penalty := 1.0
	if e.cooling(now) {
		penalty = e.tuning.CoolingPenalty
	}

	delta := quality * emotionFactor * timeFactor * bonding * penalty
	if delta > e.tuning.PerUpdateCap {
		delta = e.tuning.PerUpdateCap
	}

	e.state.Intimacy += delta
	if delta > 0 {
		e.state.GrowthCoefficient += e.tuning.GrowthRecoveryStep
	}
	e.state.LastInteraction = now
	e.state.TotalInteractions++
	e.state = e.clamped(e.state)
	return delta
}

// ApplyNegativeFeedback reacts to a hurtful interaction: an immediate bounded
// drop, a reduced growth coefficient, and a cooldown window of
// 2 + severity·6 hours during which growth is penalized.
func (e *Engine) ApplyNegativeFeedback(severity float64, now time.Time) {
	severity = clamp(severity, 0, 1)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Intimacy -= 0.05 * severity
	e.state.GrowthCoefficient -= 0.2 * severity

	hours := e.tuning.CooldownBaseHours + severity*e.tuning.CooldownSpanHours
	until := now.Add(time.Duration(hours * float64(time.Hour)))
	e.state.CoolingUntil = &until
	e.state = e.clamped(e.state)
}

// ApplyNaturalRegression pulls intimacy toward the floor by a small constant
// hourly amount, amplified while cooling. Gated to run only when at least one
// hour has passed since the last interaction.
func (e *Engine) ApplyNaturalRegression(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	gap := now.Sub(e.state.LastInteraction)
	if gap < time.Hour {
		return 0
	}

	step := e.tuning.RegressionPerHour * gap.Hours()
	if e.cooling(now) {
		step *= e.tuning.CoolingRegression
	}

	before := e.state.Intimacy
	e.state.Intimacy -= step
	e.state = e.clamped(e.state)
	return before - e.state.Intimacy
}

func (e *Engine) cooling(now time.Time) bool {
	return e.state.CoolingUntil != nil && now.Before(*e.state.CoolingUntil)
}

func (e *Engine) clamped(s State) State {
	s.Intimacy = clamp(s.Intimacy, e.tuning.Floor, 1)
	s.GrowthCoefficient = clamp(s.GrowthCoefficient, e.tuning.GrowthFloor, 1)
	return s
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
