// Package perception 把用户的一句话解析为结构化的情绪与意图信号。
package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/types"
	"github.com/easeaico/companion-engine/internal/utils"
)

// Analyzer reads one user utterance into a PerceptionResult. The structured
// path goes through the generation backend; any failure there degrades to
// the rule-based quick path. Analyze has no persistent side effects.
type Analyzer struct {
	gen        genservice.Client
	schemaJSON string
}

// resultSchema is the output contract sent to the backend verbatim.
var resultSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"surface_emotion": {
			Type: "string",
			Enum: []any{"joy", "sadness", "anger", "anxiety", "calm", "neutral"},
		},
		"underlying_need": {
			Type: "string",
			Enum: []any{types.NeedVent, types.NeedSupport, types.NeedShare, types.NeedAdvice, types.NeedCompanion},
		},
		"subtext_inference": {Type: "string"},
		"conversation_intent": {
			Type: "string",
			Enum: []any{types.IntentChat, types.IntentTerminal, types.IntentCrisis},
		},
		"has_emoji":     {Type: "boolean"},
		"offensiveness": {Type: "integer", Minimum: boundPtr(0), Maximum: boundPtr(10)},
		"confidence":    {Type: "number", Minimum: boundPtr(0), Maximum: boundPtr(1)},
	},
	Required: []string{"surface_emotion", "underlying_need", "conversation_intent", "offensiveness", "confidence"},
}

func boundPtr(v float64) *float64 {
	return &v
}

// NewAnalyzer returns an Analyzer. gen may be nil; every call then takes the
// quick path.
func NewAnalyzer(gen genservice.Client) *Analyzer {
	raw, err := json.Marshal(resultSchema)
	if err != nil {
		raw = []byte("{}")
	}
	return &Analyzer{gen: gen, schemaJSON: string(raw)}
}

const analyzePrompt = `你是对话感知器，负责读懂用户这句话背后的情绪与需求。

伙伴人设：%s
近期情绪走向：%s
当前时间：%s
%s%s用户这句话：%s

输出一个 JSON 对象，严格符合以下 schema，不要输出任何其他内容：
%s`

// Analyze produces a PerceptionResult for text. trend is a short free-text
// summary of the recent emotional direction; lastReply and recent give the
// backend conversational grounding and may be empty.
func (a *Analyzer) Analyze(ctx context.Context, text string, profile types.Profile, trend string, now time.Time, lastReply string, recent []types.ChatMessage) types.PerceptionResult {
	if a == nil || a.gen == nil || strings.TrimSpace(text) == "" {
		return QuickAnalyze(text)
	}

	lastPart := ""
	if lastReply != "" {
		lastPart = fmt.Sprintf("我的上一条回复：%s\n", lastReply)
	}
	historyPart := ""
	if len(recent) > 0 {
		var sb strings.Builder
		sb.WriteString("最近对话：\n")
		for _, msg := range recent {
			speaker := profile.Name
			if msg.IsUser {
				speaker = "用户"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, msg.Content)
		}
		historyPart = sb.String()
	}

	prompt := fmt.Sprintf(analyzePrompt,
		profile.Persona, trend, now.Format("2006-01-02 15:04"),
		historyPart, lastPart, text, a.schemaJSON)

	resp, err := a.gen.Generate(ctx, &genservice.Request{
		Messages: []genservice.Message{{Role: "user", Content: prompt}},
		Params:   types.SamplingParams{Temperature: 0.2, MaxTokens: 300},
	})
	if err != nil || resp == nil || !resp.Success {
		slog.Warn("perception call failed, using quick analyze", "error", err)
		return QuickAnalyze(text)
	}

	var result types.PerceptionResult
	if err := utils.ParseJSONInto(resp.Content, &result); err != nil {
		slog.Warn("perception response unparseable, using quick analyze", "error", err)
		return QuickAnalyze(text)
	}
	if !validResult(result) {
		slog.Warn("perception response outside contract, using quick analyze")
		return QuickAnalyze(text)
	}

	// Local signals the model tends to get wrong stay rule-derived.
	result.HasEmoji = hasEmoji(text)
	if crisisSignal(text) {
		result.ConversationIntent = types.IntentCrisis
	}
	return clampResult(result)
}

func validResult(r types.PerceptionResult) bool {
	if r.SurfaceEmotion == "" || r.UnderlyingNeed == "" {
		return false
	}
	switch r.ConversationIntent {
	case types.IntentChat, types.IntentTerminal, types.IntentCrisis:
		return true
	}
	return false
}

func clampResult(r types.PerceptionResult) types.PerceptionResult {
	if r.Offensiveness < 0 {
		r.Offensiveness = 0
	}
	if r.Offensiveness > 10 {
		r.Offensiveness = 10
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return r
}
