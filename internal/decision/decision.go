// Package decision 根据感知信号与当前状态产出本轮的回应策略。
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/types"
	"github.com/easeaico/companion-engine/internal/utils"
)

// monologueLimit bounds salvaged free text carried into the prompt.
const monologueLimit = 500

// Input is everything the stage may consult for one turn.
type Input struct {
	Perception types.PerceptionResult
	Valence    float64
	Arousal    float64
	Intimacy   float64
	Fatigue    float64
	Tolerance  float64
	History    []types.ChatMessage
}

// Engine produces a DecisionResult per turn: the structured path asks the
// generation backend, the fallback path is a deterministic table keyed by
// the user's underlying need. Decide always returns a usable strategy.
type Engine struct {
	gen        genservice.Client
	schemaJSON string
}

var resultSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"inner_monologue":     {Type: "string"},
		"response_strategy":   {Type: "string"},
		"emotional_tone":      {Type: "string"},
		"recommended_length":  {Type: "number", Minimum: boundPtr(0), Maximum: boundPtr(1)},
		"use_emoji":           {Type: "boolean"},
		"should_ask_question": {Type: "boolean"},
		"micro_emotion":       {Type: "string"},
		"valence_shift":       {Type: "number", Minimum: boundPtr(-0.3), Maximum: boundPtr(0.3)},
		"arousal_shift":       {Type: "number", Minimum: boundPtr(-0.3), Maximum: boundPtr(0.3)},
		"pacing_strategy":     {Type: "string", Enum: []any{"slow", "normal", "eager"}},
		"topic_depth":         {Type: "string", Enum: []any{"surface", "medium", "deep"}},
	},
	Required: []string{"response_strategy", "emotional_tone", "recommended_length", "pacing_strategy", "topic_depth"},
}

func boundPtr(v float64) *float64 {
	return &v
}

// NewEngine returns an Engine. gen may be nil; every call then takes the
// rule table.
func NewEngine(gen genservice.Client) *Engine {
	raw, err := json.Marshal(resultSchema)
	if err != nil {
		raw = []byte("{}")
	}
	return &Engine{gen: gen, schemaJSON: string(raw)}
}

const decidePrompt = `你是回应策划器。基于感知结果和伙伴当前状态，决定这一轮该怎么回。

感知结果：
- 表层情绪：%s
- 深层需求：%s
- 潜台词：%s
- 对话意图：%s
- 冒犯程度：%d/10

伙伴状态：
- 情绪效价：%.2f（-1 最差，1 最好）
- 唤醒度：%.2f
- 亲密度：%.2f
- 疲惫度：%.2f
- 耐心值：%.2f（低于 0.4 代表耐心不足，回复要更短更克制）

%s输出一个 JSON 对象，严格符合以下 schema，不要输出任何其他内容：
%s`

// Decide returns the strategy for this turn. Remote or parse failure
// degrades to the rule table; a parse failure still salvages the raw text
// as inner monologue so nothing the backend said is thrown away.
func (e *Engine) Decide(ctx context.Context, in Input) types.DecisionResult {
	if e == nil || e.gen == nil {
		return e.finalize(ruleDecide(in.Perception), in)
	}

	historyPart := ""
	if len(in.History) > 0 {
		var sb strings.Builder
		sb.WriteString("最近对话：\n")
		for _, msg := range in.History {
			speaker := "伙伴"
			if msg.IsUser {
				speaker = "用户"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, msg.Content)
		}
		sb.WriteString("\n")
		historyPart = sb.String()
	}

	prompt := fmt.Sprintf(decidePrompt,
		in.Perception.SurfaceEmotion, in.Perception.UnderlyingNeed,
		in.Perception.SubtextInference, in.Perception.ConversationIntent,
		in.Perception.Offensiveness,
		in.Valence, in.Arousal, in.Intimacy, in.Fatigue, in.Tolerance,
		historyPart, e.schemaJSON)

	resp, err := e.gen.Generate(ctx, &genservice.Request{
		Messages: []genservice.Message{{Role: "user", Content: prompt}},
		Params:   types.SamplingParams{Temperature: 0.4, MaxTokens: 400},
	})
	if err != nil || resp == nil || !resp.Success {
		slog.Warn("decision call failed, using rule table", "error", err)
		return e.finalize(ruleDecide(in.Perception), in)
	}

	var result types.DecisionResult
	if err := utils.ParseJSONInto(resp.Content, &result); err != nil || result.ResponseStrategy == "" {
		slog.Warn("decision response unparseable, salvaging as monologue", "error", err)
		salvaged := ruleDecide(in.Perception)
		salvaged.InnerMonologue = utils.TruncateRunes(strings.TrimSpace(resp.Content), monologueLimit)
		return e.finalize(salvaged, in)
	}

	result.InnerMonologue = utils.TruncateRunes(result.InnerMonologue, monologueLimit)
	return e.finalize(clampResult(result), in)
}

// finalize applies the cross-path invariants, whichever path produced the
// strategy. A terminal intent always shortens the reply and drops follow-up
// questions; worn-down tolerance caps length and stops the probing.
func (e *Engine) finalize(result types.DecisionResult, in Input) types.DecisionResult {
	if in.Tolerance < 0.4 {
		if result.RecommendedLength > 0.4 {
			result.RecommendedLength = 0.4
		}
		result.ShouldAskQuestion = false
	}
	if in.Perception.ConversationIntent == types.IntentTerminal {
		if result.RecommendedLength > 0.2 {
			result.RecommendedLength = 0.2
		}
		result.ShouldAskQuestion = false
		result.PacingStrategy = "slow"
	}
	return result
}

// ruleDecide is the deterministic fallback keyed by underlying need.
func ruleDecide(p types.PerceptionResult) types.DecisionResult {
	switch p.UnderlyingNeed {
	case types.NeedVent:
		return types.DecisionResult{
			ResponseStrategy:  "倾听陪伴，不急着给建议",
			EmotionalTone:     "温柔",
			RecommendedLength: 0.3,
			ShouldAskQuestion: false,
			PacingStrategy:    "slow",
			TopicDepth:        "surface",
		}
	case types.NeedSupport:
		return types.DecisionResult{
			ResponseStrategy:  "安抚和肯定，站在用户这边",
			EmotionalTone:     "温暖坚定",
			RecommendedLength: 0.5,
			ShouldAskQuestion: true,
			PacingStrategy:    "slow",
			TopicDepth:        "medium",
		}
	case types.NeedShare:
		return types.DecisionResult{
			ResponseStrategy:  "积极回应，分享对方的情绪",
			EmotionalTone:     "轻快",
			RecommendedLength: 0.5,
			UseEmoji:          true,
			ShouldAskQuestion: true,
			PacingStrategy:    "normal",
			TopicDepth:        "medium",
		}
	case types.NeedAdvice:
		return types.DecisionResult{
			ResponseStrategy:  "先共情再给具体建议",
			EmotionalTone:     "认真",
			RecommendedLength: 0.7,
			ShouldAskQuestion: false,
			PacingStrategy:    "normal",
			TopicDepth:        "deep",
		}
	default:
		return types.DecisionResult{
			ResponseStrategy:  "自然闲聊，顺着话题走",
			EmotionalTone:     "放松",
			RecommendedLength: 0.4,
			ShouldAskQuestion: true,
			PacingStrategy:    "normal",
			TopicDepth:        "surface",
		}
	}
}

func clampResult(r types.DecisionResult) types.DecisionResult {
	r.RecommendedLength = clamp(r.RecommendedLength, 0, 1)
	r.ValenceShift = clamp(r.ValenceShift, -0.3, 0.3)
	r.ArousalShift = clamp(r.ArousalShift, -0.3, 0.3)
	switch r.PacingStrategy {
	case "slow", "normal", "eager":
	default:
		r.PacingStrategy = "normal"
	}
	switch r.TopicDepth {
	case "surface", "medium", "deep":
	default:
		r.TopicDepth = "surface"
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
