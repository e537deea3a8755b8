// Package types holds the shared value objects passed between pipeline stages.
package types

import "time"

// FactSource describes where a fact came from.
type FactSource string

const (
	FactSourceManual    FactSource = "manual"
	FactSourceInferred  FactSource = "inferred"
	FactSourceConfirmed FactSource = "confirmed"
)

// FactStatus is the lifecycle state of a stored fact.
type FactStatus string

const (
	FactStatusActive   FactStatus = "active"
	FactStatusVerified FactStatus = "verified"
	FactStatusRejected FactStatus = "rejected"
)

// FactEntry is a durable, canonical piece of user-attributed information.
// Distinct from conversational Memory: facts survive indefinitely and are
// consulted on every turn.
type FactEntry struct {
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Source     FactSource `json:"source"`
	Confidence float64    `json:"confidence"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Status     FactStatus `json:"status"`
}

// MemoryEntry is an ephemeral conversational memory.
type MemoryEntry struct {
	ID         int       `json:"id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance"`
}

// ChatMessage is one persisted turn of the conversation.
type ChatMessage struct {
	ID         int       `json:"id"`
	Content    string    `json:"content"`
	IsUser     bool      `json:"is_user"`
	CreatedAt  time.Time `json:"created_at"`
	TokensUsed int       `json:"tokens_used"`
}

// OutgoingMessage carries a reply chunk and its presentation delay.
type OutgoingMessage struct {
	Content string        `json:"content"`
	Delay   time.Duration `json:"delay"`
}

// PerceptionResult is the structured reading of one user utterance.
// Ephemeral: produced by the perception stage, consumed within the turn.
type PerceptionResult struct {
	SurfaceEmotion     string  `json:"surface_emotion"`
	UnderlyingNeed     string  `json:"underlying_need"`
	SubtextInference   string  `json:"subtext_inference,omitempty"`
	ConversationIntent string  `json:"conversation_intent"`
	HasEmoji           bool    `json:"has_emoji"`
	Offensiveness      int     `json:"offensiveness"`
	Confidence         float64 `json:"confidence"`
}

// Conversation intents the pipeline reacts to specially.
const (
	IntentCrisis   = "crisis"
	IntentTerminal = "terminal"
	IntentChat     = "chat"
)

// Underlying needs recognized by the decision fallback table.
const (
	NeedVent      = "vent"
	NeedSupport   = "support"
	NeedShare     = "share"
	NeedAdvice    = "advice"
	NeedCompanion = "companionship"
)

// DecisionResult is the response strategy for one turn.
type DecisionResult struct {
	InnerMonologue    string  `json:"inner_monologue"`
	ResponseStrategy  string  `json:"response_strategy"`
	EmotionalTone     string  `json:"emotional_tone"`
	RecommendedLength float64 `json:"recommended_length"`
	UseEmoji          bool    `json:"use_emoji"`
	ShouldAskQuestion bool    `json:"should_ask_question"`
	MicroEmotion      string  `json:"micro_emotion,omitempty"`
	ValenceShift      float64 `json:"valence_shift"`
	ArousalShift      float64 `json:"arousal_shift"`
	PacingStrategy    string  `json:"pacing_strategy"`
	TopicDepth        string  `json:"topic_depth"`
}

// ConversationContext feeds the generation policy. Pure value object.
type ConversationContext struct {
	Intimacy       float64
	EmotionValence float64
	EmotionArousal float64
	MessageLength  int
	IsProactive    bool
}

// SamplingParams are the tunable generation parameters for one call.
type SamplingParams struct {
	Temperature   float64
	TopP          float64
	MaxTokens     int
	HistoryWindow int
}

// Profile is the companion's static persona card, kept alongside the
// drifting state objects.
type Profile struct {
	Name            string `json:"name"`
	Persona         string `json:"persona"`
	Scenario        string `json:"scenario"`
	ExampleDialogue string `json:"example_dialogue"`
}
