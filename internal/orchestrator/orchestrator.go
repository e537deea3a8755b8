// Package orchestrator 驱动整条对话流水线：感知、加载状态、决策、执行，
// 以及三条后台节律任务。
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/decision"
	"github.com/easeaico/companion-engine/internal/emotion"
	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/intimacy"
	"github.com/easeaico/companion-engine/internal/personality"
	"github.com/easeaico/companion-engine/internal/policy"
	"github.com/easeaico/companion-engine/internal/prompt"
	"github.com/easeaico/companion-engine/internal/types"
)

// Perceiver reads one utterance into structured signals.
type Perceiver interface {
	Analyze(ctx context.Context, text string, profile types.Profile, trend string, now time.Time, lastReply string, recent []types.ChatMessage) types.PerceptionResult
}

// Decider produces the per-turn response strategy.
type Decider interface {
	Decide(ctx context.Context, in decision.Input) types.DecisionResult
}

// MemoryBank is the slice of the memory manager the pipeline uses.
type MemoryBank interface {
	Add(ctx context.Context, content string, importance float64, now time.Time) bool
	RetrieveWeighted(query string, n int, now time.Time) []types.MemoryEntry
	RecentForIntimacy(intimacy float64) []types.MemoryEntry
	SearchSimilar(ctx context.Context, query string, topK int, threshold float64) ([]types.MemoryEntry, error)
}

// FactBank is the slice of the fact store the pipeline uses.
type FactBank interface {
	IngestMessage(ctx context.Context, text string, now time.Time) int
	ListActive(ctx context.Context) ([]types.FactEntry, error)
}

// MessageRepo persists the chat transcript.
type MessageRepo interface {
	Append(ctx context.Context, msg types.ChatMessage) error
	Recent(ctx context.Context, limit int) ([]types.ChatMessage, error)
}

// StateStore persists engine-state snapshots between sessions.
type StateStore interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, target any) (bool, error)
}

// StateSnapshot is what observers receive after each pipeline run.
type StateSnapshot struct {
	Emotion  emotion.State
	Intimacy intimacy.State
	Traits   personality.Traits
}

// StateObserver is notified after state-changing runs. Presentation concern;
// the pipeline never depends on what observers do.
type StateObserver func(snapshot StateSnapshot)

// Deps wires the orchestrator. Every field except the engines may be nil;
// the pipeline degrades rather than fails.
type Deps struct {
	Profile      types.Profile
	Perceiver    Perceiver
	Decider      Decider
	Gen          genservice.Client
	Emotion      *emotion.Engine
	Intimacy     *intimacy.Engine
	Personality  *personality.Engine
	Memory       MemoryBank
	Facts        FactBank
	Messages     MessageRepo
	States       StateStore
	Prompt       *prompt.Builder
	Triggers     []config.Trigger
	HistoryLimit int
	Observer     StateObserver
	Clock        func() time.Time
	Rand         func() float64
}

// Orchestrator runs one conversation. One pipeline run at a time;
// overlapping input waits. Background tasks share the same engines and rely
// on each engine's own atomic updates.
type Orchestrator struct {
	pipeline sync.Mutex

	profile      types.Profile
	perceiver    Perceiver
	decider      Decider
	gen          genservice.Client
	emotions     *emotion.Engine
	bond         *intimacy.Engine
	character    *personality.Engine
	memories     MemoryBank
	facts        FactBank
	messages     MessageRepo
	states       StateStore
	builder      *prompt.Builder
	triggers     []config.Trigger
	historyLimit int
	observer     StateObserver
	clock        func() time.Time
	rand         func() float64

	// Conversational load, guarded by the pipeline mutex. supportStreak
	// counts consecutive support/vent turns, needRepeats counts how often
	// the same need has repeated; both wear down tolerance.
	supportStreak int
	needRepeats   int
	lastNeed      string

	queueMu   sync.Mutex
	proactive []types.OutgoingMessage
	lastFired map[string]time.Time
	lastDecay time.Time
}

// New builds an Orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	random := deps.Rand
	if random == nil {
		random = defaultRand
	}
	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	return &Orchestrator{
		profile:      deps.Profile,
		perceiver:    deps.Perceiver,
		decider:      deps.Decider,
		gen:          deps.Gen,
		emotions:     deps.Emotion,
		bond:         deps.Intimacy,
		character:    deps.Personality,
		memories:     deps.Memory,
		facts:        deps.Facts,
		messages:     deps.Messages,
		states:       deps.States,
		builder:      deps.Prompt,
		triggers:     deps.Triggers,
		historyLimit: limit,
		observer:     deps.Observer,
		clock:        clock,
		rand:         random,
		lastFired:    make(map[string]time.Time),
		lastDecay:    clock(),
	}
}

// ProcessUserMessage runs the four-phase pipeline for one user message and
// returns the paced outgoing messages. Remote failures degrade internally;
// the caller always gets a reply.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, text string) []types.OutgoingMessage {
	o.pipeline.Lock()
	defer o.pipeline.Unlock()

	now := o.clock()
	// History is loaded before the new message is appended so the current
	// turn never shows up twice in downstream prompts.
	history := o.recentHistory(ctx)
	o.appendMessage(ctx, types.ChatMessage{Content: text, IsUser: true, CreatedAt: now})

	// 感知。
	emoState := o.emotions.Snapshot()
	trend := prompt.MoodWords(emoState.Valence, emoState.Arousal)
	perceived := o.perceiver.Analyze(ctx, text, o.profile, trend, now, lastAssistantReply(history), history)

	// 危机短路：固定回应，不经过人格、疲惫或任何后续阶段。
	if perceived.ConversationIntent == types.IntentCrisis {
		return o.deliver(ctx, safetyReply, fixedReplyDelay, now)
	}

	// 加载状态并吸收这条消息的冲击。
	bondState := o.bond.Snapshot()
	o.emotions.ApplyInteractionImpact(perceived, bondState.Intimacy, now)
	o.absorbFeedback(perceived, now)

	emoState = o.emotions.Snapshot()
	bondState = o.bond.Snapshot()
	o.trackLoad(perceived)
	fatigue := emotion.Fatigue(now)
	tolerance := emotion.Tolerance(fatigue, o.supportStreak >= 3, o.needRepeats)
	traits := o.character.EffectiveTraitsWithFatigue(bondState.Intimacy, fatigue, emoState.Valence, perceived.ConversationIntent)
	stance := personality.Compass(traits, bondState.Intimacy, emoState.Resentment, emoState.Arousal, perceived.Offensiveness)

	// 决策。
	decided := o.decider.Decide(ctx, decision.Input{
		Perception: perceived,
		Valence:    emoState.Valence,
		Arousal:    emoState.Arousal,
		Intimacy:   bondState.Intimacy,
		Fatigue:    fatigue,
		Tolerance:  tolerance,
		History:    history,
	})

	// 执行。决策自带的情绪偏移先落地，再看是否已经压垮。
	o.emotions.ApplyShift(decided.ValenceShift, decided.ArousalShift, now)
	if o.emotions.IsMeltdown() {
		reply := collapseReplies[int(o.rand()*float64(len(collapseReplies)))%len(collapseReplies)]
		o.afterTurn(ctx, text, perceived, now)
		return o.deliver(ctx, reply, fixedReplyDelay, now)
	}

	reply, tokens := o.generateReply(ctx, text, perceived, decided, traits, stance, history, now)
	emoState = o.emotions.Snapshot()
	msgs := policy.SplitPaced(reply, emoState.Arousal)

	o.afterTurn(ctx, text, perceived, now)
	o.appendMessage(ctx, types.ChatMessage{Content: reply, IsUser: false, CreatedAt: now, TokensUsed: tokens})
	return msgs
}

// trackLoad updates the streak counters behind the tolerance signal.
func (o *Orchestrator) trackLoad(p types.PerceptionResult) {
	switch p.UnderlyingNeed {
	case types.NeedSupport, types.NeedVent:
		o.supportStreak++
	default:
		o.supportStreak = 0
	}
	if p.UnderlyingNeed != "" && p.UnderlyingNeed == o.lastNeed {
		o.needRepeats++
	} else {
		o.needRepeats = 0
	}
	o.lastNeed = p.UnderlyingNeed
}

// absorbFeedback routes offensiveness into the slower state models.
func (o *Orchestrator) absorbFeedback(p types.PerceptionResult, now time.Time) {
	if p.Offensiveness >= 5 {
		severity := float64(p.Offensiveness) / 10
		o.bond.ApplyNegativeFeedback(severity, now)
		o.character.ApplyFeedback(-1, [5]float64{0, 0, 0.2, 0.8, 0.6}, severity, now)
		return
	}
	emoState := o.emotions.Snapshot()
	o.bond.Update(interactionQuality(p), emoState.Valence, now)
	if p.SurfaceEmotion == "joy" {
		o.emotions.EaseResentment(0.05, now)
	}
}

// generateReply builds the layered prompt and calls the backend, returning
// the reply text and its completion-token estimate; any failure yields the
// plain fallback line.
func (o *Orchestrator) generateReply(ctx context.Context, text string, perceived types.PerceptionResult, decided types.DecisionResult, traits personality.Traits, stance personality.Stance, history []types.ChatMessage, now time.Time) (string, int) {
	if o.gen == nil || o.builder == nil {
		return fallbackReply, 0
	}

	emoState := o.emotions.Snapshot()
	bondState := o.bond.Snapshot()

	params := policy.Sampling(types.ConversationContext{
		Intimacy:       bondState.Intimacy,
		EmotionValence: emoState.Valence,
		EmotionArousal: emoState.Arousal,
		MessageLength:  len(text),
	})

	var facts []types.FactEntry
	if o.facts != nil {
		listed, err := o.facts.ListActive(ctx)
		if err != nil {
			slog.Warn("failed to list facts for prompt", "error", err)
		} else {
			facts = listed
		}
	}
	var memories []types.MemoryEntry
	if o.memories != nil {
		// 低置信度的感知不走关键词检索，避免噪声查询污染上下文；
		// 先试语义检索，没有嵌入器或没有结果时退回最近记忆。
		if perceived.Confidence >= 0.5 {
			memories = o.memories.RetrieveWeighted(text, 5, now)
		} else {
			semantic, err := o.memories.SearchSimilar(ctx, text, 5, 0.5)
			if err != nil {
				slog.Warn("semantic memory search failed", "error", err)
			}
			if len(semantic) > 0 {
				memories = semantic
			} else {
				memories = o.memories.RecentForIntimacy(bondState.Intimacy)
			}
		}
	}
	if len(history) > params.HistoryWindow {
		history = history[len(history)-params.HistoryWindow:]
	}

	system, err := o.builder.Build(prompt.BuildContext{
		Profile:  o.profile,
		Valence:  emoState.Valence,
		Arousal:  emoState.Arousal,
		Intimacy: bondState.Intimacy,
		Traits:   traits,
		Stance:   stance,
		Facts:    facts,
		Memories: memories,
		History:  history,
		Strategy: decided,
		Now:      now,
	})
	if err != nil {
		slog.Warn("prompt assembly failed", "error", err)
		return fallbackReply, 0
	}

	resp, err := o.gen.Generate(ctx, &genservice.Request{
		Messages: []genservice.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Params: params,
	})
	if err != nil || resp == nil || !resp.Success || strings.TrimSpace(resp.Content) == "" {
		slog.Warn("reply generation failed, using fallback", "error", err)
		return fallbackReply, 0
	}
	return strings.TrimSpace(resp.Content), resp.CompletionTokens
}

// afterTurn runs the write-behind work: memory, facts, state persistence,
// observer. All failures are logged, none surface.
func (o *Orchestrator) afterTurn(ctx context.Context, text string, perceived types.PerceptionResult, now time.Time) {
	if o.memories != nil {
		o.memories.Add(ctx, text, memoryImportance(perceived, text), now)
	}
	if o.facts != nil {
		o.facts.IngestMessage(ctx, text, now)
	}
	o.persistState(ctx)
	o.notifyObserver()
}

func (o *Orchestrator) deliver(ctx context.Context, reply string, delay time.Duration, now time.Time) []types.OutgoingMessage {
	o.recordReply(ctx, reply, now)
	return []types.OutgoingMessage{{Content: reply, Delay: delay}}
}

func (o *Orchestrator) recordReply(ctx context.Context, reply string, now time.Time) {
	o.appendMessage(ctx, types.ChatMessage{Content: reply, IsUser: false, CreatedAt: now})
}

func (o *Orchestrator) appendMessage(ctx context.Context, msg types.ChatMessage) {
	if o.messages == nil {
		return
	}
	if err := o.messages.Append(ctx, msg); err != nil {
		slog.Warn("failed to persist message", "error", err)
	}
}

func (o *Orchestrator) recentHistory(ctx context.Context) []types.ChatMessage {
	if o.messages == nil {
		return nil
	}
	history, err := o.messages.Recent(ctx, o.historyLimit)
	if err != nil {
		slog.Warn("failed to load history", "error", err)
		return nil
	}
	return history
}

func lastAssistantReply(history []types.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsUser {
			return history[i].Content
		}
	}
	return ""
}

// interactionQuality maps perception onto the growth law's Q in [0.5, 1.5].
func interactionQuality(p types.PerceptionResult) float64 {
	quality := 1.0
	switch p.UnderlyingNeed {
	case types.NeedShare:
		quality = 1.3
	case types.NeedVent, types.NeedSupport:
		// 被信任地倾诉也是亲近的表现。
		quality = 1.2
	case types.NeedAdvice:
		quality = 1.1
	}
	if p.SurfaceEmotion == "joy" {
		quality += 0.1
	}
	quality -= 0.1 * float64(p.Offensiveness)
	if quality < 0.5 {
		quality = 0.5
	}
	if quality > 1.5 {
		quality = 1.5
	}
	return quality
}

// memoryImportance scores whether this turn is worth remembering. Neutral
// small talk lands below the storage threshold.
func memoryImportance(p types.PerceptionResult, text string) float64 {
	importance := 0.2 + 0.3*p.Confidence
	if p.SurfaceEmotion != "neutral" && p.SurfaceEmotion != "" {
		importance += 0.2
	}
	if len([]rune(text)) > 40 {
		importance += 0.1
	}
	if importance > 1 {
		importance = 1
	}
	return importance
}
