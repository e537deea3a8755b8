package config

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Tuning collects the numeric constants of the state engines. The zero config
// is never used directly: DefaultTuning supplies every value, and a JSON file
// may override individual fields. These numbers are tunable calibration, not
// fixed law.
type Tuning struct {
	Emotion     EmotionTuning     `json:"emotion"`
	Intimacy    IntimacyTuning    `json:"intimacy"`
	Personality PersonalityTuning `json:"personality"`
	Memory      MemoryTuning      `json:"memory"`
	Fact        FactTuning        `json:"fact"`
}

// EmotionTuning controls decay and interaction impact.
type EmotionTuning struct {
	ValenceDecayPerHour float64 `json:"valence_decay_per_hour"`
	ArousalDecayPerHour float64 `json:"arousal_decay_per_hour"`
	ArousalBaseline     float64 `json:"arousal_baseline"`
	ImpactRate          float64 `json:"impact_rate"`
	BufferFactor        float64 `json:"buffer_factor"`
	SofteningThreshold  float64 `json:"softening_threshold"`
	MeltdownArousal     float64 `json:"meltdown_arousal"`
	MeltdownValence     float64 `json:"meltdown_valence"`
}

// IntimacyTuning controls the growth law and its penalties.
type IntimacyTuning struct {
	BaseCoefficient    float64 `json:"base_coefficient"`
	PerUpdateCap       float64 `json:"per_update_cap"`
	Floor              float64 `json:"floor"`
	TimeFactorFloor    float64 `json:"time_factor_floor"`
	CoolingPenalty     float64 `json:"cooling_penalty"`
	CooldownBaseHours  float64 `json:"cooldown_base_hours"`
	CooldownSpanHours  float64 `json:"cooldown_span_hours"`
	GrowthRecoveryStep float64 `json:"growth_recovery_step"`
	GrowthFloor        float64 `json:"growth_floor"`
	RegressionPerHour  float64 `json:"regression_per_hour"`
	CoolingRegression  float64 `json:"cooling_regression_multiplier"`
}

// PersonalityTuning controls trait plasticity.
type PersonalityTuning struct {
	PlasticityDecayRate float64 `json:"plasticity_decay_rate"`
	PlasticityFloor     float64 `json:"plasticity_floor"`
	PerEventClamp       float64 `json:"per_event_clamp"`
	CooldownMinutes     float64 `json:"cooldown_minutes"`
	SeverityMultiplier  float64 `json:"severity_multiplier"`
}

// MemoryTuning controls retention and retrieval weighting.
type MemoryTuning struct {
	ImportanceThreshold float64 `json:"importance_threshold"`
	KeywordWeight       float64 `json:"keyword_weight"`
	RecencyWeight       float64 `json:"recency_weight"`
	ImportanceWeight    float64 `json:"importance_weight"`
}

// FactTuning controls conflict resolution.
type FactTuning struct {
	ConfidenceDecayRate float64 `json:"confidence_decay_rate"`
	ExpiryWindowDays    float64 `json:"expiry_window_days"`
}

// DefaultTuning returns the hard in-code defaults.
func DefaultTuning() Tuning {
	return Tuning{
		Emotion: EmotionTuning{
			ValenceDecayPerHour: 0.05,
			ArousalDecayPerHour: 0.08,
			ArousalBaseline:     0.5,
			ImpactRate:          0.25,
			BufferFactor:        0.5,
			SofteningThreshold:  0.85,
			MeltdownArousal:     0.85,
			MeltdownValence:     -0.6,
		},
		Intimacy: IntimacyTuning{
			BaseCoefficient:    0.02,
			PerUpdateCap:       0.05,
			Floor:              0.1,
			TimeFactorFloor:    0.2,
			CoolingPenalty:     0.3,
			CooldownBaseHours:  2,
			CooldownSpanHours:  6,
			GrowthRecoveryStep: 0.01,
			GrowthFloor:        0.1,
			RegressionPerHour:  0.002,
			CoolingRegression:  1.5,
		},
		Personality: PersonalityTuning{
			PlasticityDecayRate: 0.1,
			PlasticityFloor:     0.05,
			PerEventClamp:       0.02,
			CooldownMinutes:     30,
			SeverityMultiplier:  1.0,
		},
		Memory: MemoryTuning{
			ImportanceThreshold: 0.3,
			KeywordWeight:       0.6,
			RecencyWeight:       0.2,
			ImportanceWeight:    0.2,
		},
		Fact: FactTuning{
			ConfidenceDecayRate: 0.5,
			ExpiryWindowDays:    90,
		},
	}
}

// LoadTuning reads a tuning override file on top of the defaults. Any error
// keeps the defaults; configuration problems are never fatal.
func LoadTuning(path string) Tuning {
	tuning := DefaultTuning()
	if path == "" {
		return tuning
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("tuning file unreadable, using defaults", "path", path, "error", err)
		return tuning
	}
	if err := json.Unmarshal(data, &tuning); err != nil {
		slog.Warn("tuning file malformed, using defaults", "path", path, "error", err)
		return DefaultTuning()
	}
	return tuning
}
