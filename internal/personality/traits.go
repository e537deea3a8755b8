// Package personality maintains the Big-Five trait vector, its feedback-driven
// drift, and the reaction compass.
package personality

import (
	"math"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/types"
)

// Trait indexes into an activation vector.
const (
	Openness = iota
	Conscientiousness
	Extraversion
	Agreeableness
	Neuroticism
	traitCount
)

// Traits is the Big-Five vector plus plasticity bookkeeping. All trait values
// live in [0,1].
type Traits struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
	Plasticity        float64 `json:"plasticity"`
	TotalInteractions int     `json:"total_interactions"`
}

// Engine owns the drifting trait vector. The genesis baseline is recorded at
// construction and never mutated, so the drift is always measurable.
type Engine struct {
	mu           sync.Mutex
	current      Traits
	genesis      Traits
	tuning       config.PersonalityTuning
	lastFeedback time.Time
}

// NewEngine records the genesis baseline and starts the drifting copy from it.
func NewEngine(genesis Traits, tuning config.PersonalityTuning) *Engine {
	genesis = clampTraits(genesis)
	return &Engine{
		current: genesis,
		genesis: genesis,
		tuning:  tuning,
	}
}

// Snapshot returns a copy of the current drifting vector.
func (e *Engine) Snapshot() Traits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Genesis returns the immutable baseline recorded at construction.
func (e *Engine) Genesis() Traits {
	return e.genesis
}

// Restore replaces the drifting vector (the genesis baseline is untouched).
func (e *Engine) Restore(traits Traits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = clampTraits(traits)
}

// ApplyFeedback drifts the trait vector in response to one interaction.
// direction is +1 or -1; activation weights which traits the event touches;
// intensity ∈ [0,1]. The whole event is rejected inside the cooldown window,
// and each per-trait step is clamped. Effective plasticity shrinks with
// accumulated interactions, so a long-lived companion stabilizes.
func (e *Engine) ApplyFeedback(direction float64, activation [5]float64, intensity float64, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cooldown := time.Duration(e.tuning.CooldownMinutes * float64(time.Minute))
	if !e.lastFeedback.IsZero() && now.Sub(e.lastFeedback) < cooldown {
		return false
	}

	plasticity := e.effectivePlasticity()
	intensity = clamp(intensity, 0, 1)
	if direction > 0 {
		direction = 1
	} else {
		direction = -1
	}

	values := [5]*float64{
		&e.current.Openness,
		&e.current.Conscientiousness,
		&e.current.Extraversion,
		&e.current.Agreeableness,
		&e.current.Neuroticism,
	}
	for i, target := range values {
		delta := direction * e.tuning.SeverityMultiplier * activation[i] * intensity * plasticity
		delta = clamp(delta, -e.tuning.PerEventClamp, e.tuning.PerEventClamp)
		*target = clamp(*target+delta, 0, 1)
	}

	e.current.TotalInteractions++
	e.lastFeedback = now
	return true
}

// EffectivePlasticity exposes the decayed plasticity for inspection.
func (e *Engine) EffectivePlasticity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectivePlasticity()
}

func (e *Engine) effectivePlasticity() float64 {
	decayed := e.current.Plasticity *
		math.Pow(1-e.tuning.PlasticityDecayRate, float64(e.current.TotalInteractions)/100)
	return math.Max(decayed, e.tuning.PlasticityFloor)
}

// EffectiveTraits returns the vector as modulated by closeness: a close
// companion is more outgoing, more agreeable, and also more emotionally
// exposed.
func (e *Engine) EffectiveTraits(intimacy float64) Traits {
	e.mu.Lock()
	traits := e.current
	e.mu.Unlock()

	intimacy = clamp(intimacy, 0, 1)
	traits.Extraversion = clamp(traits.Extraversion+0.2*intimacy, 0, 1)
	traits.Agreeableness = clamp(traits.Agreeableness+0.15*intimacy, 0, 1)
	traits.Neuroticism = clamp(traits.Neuroticism+0.1*intimacy, 0, 1)
	return traits
}

// EffectiveTraitsWithFatigue additionally suppresses the energetic traits in
// proportion to fatigue. Safety override: when the companion's valence is
// strongly negative or the conversation intent is crisis-tagged, fatigue is
// forced to zero — tiredness must never suppress support during a crisis.
func (e *Engine) EffectiveTraitsWithFatigue(intimacy, fatigue, valence float64, intent string) Traits {
	if valence < -0.5 || intent == types.IntentCrisis {
		fatigue = 0
	}
	fatigue = clamp(fatigue, 0, 1)

	traits := e.EffectiveTraits(intimacy)
	traits.Openness = clamp(traits.Openness*(1-0.5*fatigue), 0, 1)
	traits.Conscientiousness = clamp(traits.Conscientiousness*(1-0.4*fatigue), 0, 1)
	traits.Extraversion = clamp(traits.Extraversion*(1-0.6*fatigue), 0, 1)
	return traits
}

func clampTraits(t Traits) Traits {
	t.Openness = clamp(t.Openness, 0, 1)
	t.Conscientiousness = clamp(t.Conscientiousness, 0, 1)
	t.Extraversion = clamp(t.Extraversion, 0, 1)
	t.Agreeableness = clamp(t.Agreeableness, 0, 1)
	t.Neuroticism = clamp(t.Neuroticism, 0, 1)
	t.Plasticity = clamp(t.Plasticity, 0, 1)
	return t
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
