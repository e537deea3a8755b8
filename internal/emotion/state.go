// Package emotion maintains the continuous valence/arousal/resentment state.
package emotion

import (
	"math"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/types"
)

// State is the current affect snapshot. Valence ∈ [-1,1], arousal and
// resentment ∈ [0,1].
type State struct {
	Valence     float64   `json:"valence"`
	Arousal     float64   `json:"arousal"`
	Resentment  float64   `json:"resentment"`
	LastUpdated time.Time `json:"last_updated"`
}

// Engine owns the emotion state. All mutations are atomic: background decay
// and the pipeline share the same instance, last write wins.
type Engine struct {
	mu     sync.Mutex
	state  State
	tuning config.EmotionTuning
}

// NewEngine returns an engine with a neutral starting state.
func NewEngine(tuning config.EmotionTuning, now time.Time) *Engine {
	return &Engine{
		state: State{
			Valence:     0,
			Arousal:     tuning.ArousalBaseline,
			Resentment:  0,
			LastUpdated: now,
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

// Restore replaces the current state, clamping all fields.
func (e *Engine) Restore(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = clampState(state)
}

// ApplyDecay pulls valence toward 0 and arousal toward the baseline at the
// configured per-hour rates. Elapsed time is clamped to 24 hours so a long
// absence cannot swing the state past neutral; zero or negative elapsed is a
// no-op. Decay never overshoots the baseline.
func (e *Engine) ApplyDecay(elapsed time.Duration, now time.Time) {
	if elapsed <= 0 {
		return
	}
	if elapsed > 24*time.Hour {
		elapsed = 24 * time.Hour
	}
	hours := elapsed.Hours()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Valence = decayToward(e.state.Valence, 0, e.tuning.ValenceDecayPerHour*hours)
	e.state.Arousal = decayToward(e.state.Arousal, e.tuning.ArousalBaseline, e.tuning.ArousalDecayPerHour*hours)
	e.state.LastUpdated = now
	e.state = clampState(e.state)
}

// ApplyInteractionImpact nudges the state toward the perceived surface
// emotion. High intimacy dampens the swing: a close companion is harder to
// rattle. A softening term prevents valence from pinning near the maximum.
func (e *Engine) ApplyInteractionImpact(perception types.PerceptionResult, intimacy float64, now time.Time) {
	targetValence, targetArousal := emotionTarget(perception.SurfaceEmotion)

	damping := 1 - intimacy*e.tuning.BufferFactor
	if damping < 0 {
		damping = 0
	}
	rate := e.tuning.ImpactRate * damping * perception.Confidence

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Valence += (targetValence - e.state.Valence) * rate
	e.state.Arousal += (targetArousal - e.state.Arousal) * rate

	// Boundary softening: sustained near-maximum valence drifts back.
	if e.state.Valence > e.tuning.SofteningThreshold {
		excess := e.state.Valence - e.tuning.SofteningThreshold
		e.state.Valence = e.tuning.SofteningThreshold + excess*0.5
	}

	if perception.Offensiveness >= 5 {
		e.state.Resentment += float64(perception.Offensiveness) / 50
	}

	e.state.LastUpdated = now
	e.state = clampState(e.state)
}

// ApplyShift adds the decision stage's own inferred emotion delta, closing
// the feedback loop between strategy and state.
func (e *Engine) ApplyShift(dValence, dArousal float64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Valence += dValence
	e.state.Arousal += dArousal
	e.state.LastUpdated = now
	e.state = clampState(e.state)
}

// EaseResentment lowers resentment after a positive interaction.
func (e *Engine) EaseResentment(amount float64, now time.Time) {
	if amount <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Resentment -= amount
	e.state.LastUpdated = now
	e.state = clampState(e.state)
}

// IsMeltdown reports the derived crisis-adjacent state: very high arousal
// combined with strongly negative valence.
func (e *Engine) IsMeltdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Arousal > e.tuning.MeltdownArousal && e.state.Valence < e.tuning.MeltdownValence
}

func decayToward(value, baseline, step float64) float64 {
	if math.Abs(value-baseline) <= step {
		return baseline
	}
	if value > baseline {
		return value - step
	}
	return value + step
}

func emotionTarget(surface string) (valence, arousal float64) {
	switch surface {
	case "joy":
		return 0.8, 0.7
	case "calm":
		return 0.4, 0.3
	case "sadness":
		return -0.6, 0.3
	case "anger":
		return -0.7, 0.9
	case "anxiety":
		return -0.4, 0.8
	default:
		return 0, 0.5
	}
}

func clampState(s State) State {
	s.Valence = clamp(s.Valence, -1, 1)
	s.Arousal = clamp(s.Arousal, 0, 1)
	s.Resentment = clamp(s.Resentment, 0, 1)
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
