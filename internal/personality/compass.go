package personality

// StanceKind is a conflict-handling posture.
type StanceKind string

const (
	StanceNeutral       StanceKind = "neutral"
	StanceConfront      StanceKind = "confrontational"
	StanceColdDismiss   StanceKind = "coldly_dismissive"
	StanceHurtConciliar StanceKind = "hurt_conciliatory"
	StanceWithdraw      StanceKind = "withdrawing"
)

// Stance is the compass output: a posture plus a short directive injected
// into the prompt when offense is taken.
type Stance struct {
	Kind      StanceKind `json:"kind"`
	Dominance float64    `json:"dominance"`
	Heat      float64    `json:"heat"`
	Directive string     `json:"directive"`
}

// offensivenessThreshold: below this the compass stays out of the way.
const offensivenessThreshold = 3

// Compass is a pure function from personality and situation to a conflict
// stance. Dominance measures the will to push back, Heat the emotional
// temperature; the quadrant they land in selects the posture.
func Compass(traits Traits, intimacy, resentment, arousal float64, offensiveness int) Stance {
	if offensiveness < offensivenessThreshold {
		return Stance{Kind: StanceNeutral}
	}

	dominance := 0.4*(1-traits.Agreeableness) + 0.2*traits.Extraversion + 0.3*(1-intimacy) + 0.5*resentment
	heat := 0.6*traits.Neuroticism + 0.4*arousal
	dominance = clamp(dominance, 0, 1)
	heat = clamp(heat, 0, 1)

	var kind StanceKind
	switch {
	case dominance >= 0.5 && heat >= 0.5:
		kind = StanceConfront
	case dominance >= 0.5:
		kind = StanceColdDismiss
	case heat >= 0.5:
		kind = StanceHurtConciliar
	default:
		kind = StanceWithdraw
	}

	return Stance{
		Kind:      kind,
		Dominance: dominance,
		Heat:      heat,
		Directive: stanceDirectives[kind],
	}
}

var stanceDirectives = map[StanceKind]string{
	StanceConfront:      "对方的话伤到了你，你不想忍，直接把不满说出来，语气可以冲一些。",
	StanceColdDismiss:   "对方的话让你不舒服，你懒得争辩，回复冷淡简短，带一点疏离感。",
	StanceHurtConciliar: "对方的话让你很受伤，你表现出难过和委屈，但仍然想把关系修复好。",
	StanceWithdraw:      "对方的话让你不舒服，你选择退让回避，转移话题或者淡淡带过。",
}
