// Package prompt assembles the layered system prompt. Pure string
// composition: everything it needs arrives in the BuildContext.
package prompt

import (
	"bytes"
	"fmt"
	"log/slog"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/easeaico/companion-engine/internal/personality"
	"github.com/easeaico/companion-engine/internal/types"
	"github.com/easeaico/companion-engine/internal/utils"
)

// defaultBudget bounds the assembled prompt in runes. History is dropped
// first, then memories, before hard truncation.
const defaultBudget = 6000

// BuildContext contains all inputs for prompt assembly.
type BuildContext struct {
	Profile  types.Profile
	Valence  float64
	Arousal  float64
	Intimacy float64
	Traits   personality.Traits
	Stance   personality.Stance
	Facts    []types.FactEntry
	Memories []types.MemoryEntry
	History  []types.ChatMessage
	Strategy types.DecisionResult
	Now      time.Time
}

type historyLine struct {
	Speaker string
	Content string
}

type templateData struct {
	Profile         types.Profile
	Now             string
	Mood            string
	Intimacy        float64
	TraitLine       string
	StanceDirective string
	Facts           []types.FactEntry
	Memories        []types.MemoryEntry
	History         []historyLine
	Strategy        types.DecisionResult
	LengthHint      string
}

// Builder renders the system prompt. An external template override replaces
// the built-in layout; it sees the same named fields.
type Builder struct {
	tmpl   *template.Template
	budget int
}

// NewBuilder creates a Builder. overrideText may be empty; a malformed
// override falls back to the built-in template.
func NewBuilder(overrideText string, budget int) *Builder {
	if budget <= 0 {
		budget = defaultBudget
	}
	tmpl := systemTemplate
	if overrideText != "" {
		parsed, err := template.New("system").Funcs(templateFuncs).Parse(overrideText)
		if err != nil {
			slog.Warn("prompt template override malformed, using built-in", "error", err)
		} else {
			tmpl = parsed
		}
	}
	return &Builder{tmpl: tmpl, budget: budget}
}

// Build renders the full system prompt.
func (b *Builder) Build(ctx BuildContext) (string, error) {
	data := templateData{
		Profile:         ctx.Profile,
		Now:             ctx.Now.Format("2006-01-02 15:04"),
		Mood:            MoodWords(ctx.Valence, ctx.Arousal),
		Intimacy:        ctx.Intimacy,
		TraitLine:       traitLine(ctx.Traits),
		StanceDirective: ctx.Stance.Directive,
		Facts:           ctx.Facts,
		Memories:        ctx.Memories,
		History:         historyLines(ctx.Profile.Name, ctx.History),
		Strategy:        ctx.Strategy,
		LengthHint:      lengthHint(ctx.Strategy.RecommendedLength),
	}

	rendered, err := b.render(data)
	if err != nil {
		return "", err
	}

	// Budget trim: drop history, then memories, then hard-cut.
	if utf8.RuneCountInString(rendered) > b.budget {
		data.History = nil
		rendered, err = b.render(data)
		if err != nil {
			return "", err
		}
	}
	if utf8.RuneCountInString(rendered) > b.budget {
		data.Memories = nil
		rendered, err = b.render(data)
		if err != nil {
			return "", err
		}
	}
	if utf8.RuneCountInString(rendered) > b.budget {
		rendered = utils.TruncateRunes(rendered, b.budget)
	}
	return rendered, nil
}

func (b *Builder) render(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}

// MoodWords turns the valence/arousal pair into a short mood description.
func MoodWords(valence, arousal float64) string {
	switch {
	case valence <= -0.6 && arousal >= 0.7:
		return "情绪激动，很不好受"
	case valence <= -0.6:
		return "低落，提不起劲"
	case valence <= -0.2 && arousal >= 0.7:
		return "烦躁不安"
	case valence <= -0.2:
		return "有点闷闷不乐"
	case valence >= 0.6 && arousal >= 0.7:
		return "兴奋雀跃"
	case valence >= 0.6:
		return "满足而平静"
	case valence >= 0.2:
		return "心情不错"
	case arousal >= 0.7:
		return "有些紧绷"
	case arousal <= 0.3:
		return "慵懒放松"
	default:
		return "平静"
	}
}

func traitLine(t personality.Traits) string {
	return fmt.Sprintf("开放 %.1f / 尽责 %.1f / 外向 %.1f / 宜人 %.1f / 敏感 %.1f",
		t.Openness, t.Conscientiousness, t.Extraversion, t.Agreeableness, t.Neuroticism)
}

func lengthHint(recommended float64) string {
	switch {
	case recommended <= 0.25:
		return "一两句话就好"
	case recommended <= 0.55:
		return "两三句话，点到为止"
	default:
		return "可以展开多聊几句"
	}
}

func historyLines(companionName string, history []types.ChatMessage) []historyLine {
	lines := make([]historyLine, 0, len(history))
	for _, msg := range history {
		speaker := companionName
		if msg.IsUser {
			speaker = "用户"
		}
		lines = append(lines, historyLine{Speaker: speaker, Content: msg.Content})
	}
	return lines
}
