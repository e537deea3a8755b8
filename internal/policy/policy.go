// Package policy maps conversation context to sampling parameters and
// presentation pacing. Pure functions, no external calls.
package policy

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/easeaico/companion-engine/internal/types"
)

// Baseline parameters before overrides and interpolation.
const (
	baseTemperature = 0.8
	baseTopP        = 0.9
	baseMaxTokens   = 100
	baseHistory     = 6
)

// Sampling derives the generation parameters for one call. Hard overrides
// come first: a shut-down mood forces terseness, extreme arousal loosens the
// ceiling, proactive messages stay conservative. Otherwise max length and
// history window grow monotonically with intimacy.
func Sampling(cc types.ConversationContext) types.SamplingParams {
	// 情绪极差时只会蹦出短句。
	if cc.EmotionValence <= -0.7 {
		return types.SamplingParams{
			Temperature:   0.5,
			TopP:          baseTopP,
			MaxTokens:     20,
			HistoryWindow: 4,
		}
	}

	if cc.IsProactive {
		return types.SamplingParams{
			Temperature:   0.7,
			TopP:          baseTopP,
			MaxTokens:     80,
			HistoryWindow: baseHistory,
		}
	}

	params := types.SamplingParams{
		Temperature:   baseTemperature,
		TopP:          baseTopP,
		MaxTokens:     baseMaxTokens + int(cc.Intimacy*200),
		HistoryWindow: baseHistory + int(cc.Intimacy*10),
	}

	if cc.EmotionArousal >= 0.9 {
		params.Temperature = baseTemperature + 0.2
		params.MaxTokens = params.MaxTokens * 3 / 2
	}

	return params
}

// PresentationDelay computes how long a message should appear to take to
// type. Longer content takes longer; high arousal types faster.
func PresentationDelay(content string, arousal float64) time.Duration {
	runes := utf8.RuneCountInString(content)
	if runes == 0 {
		return 0
	}
	speedFactor := 1.6 - arousal
	if speedFactor < 0.6 {
		speedFactor = 0.6
	}
	delay := time.Duration(float64(runes) * float64(50*time.Millisecond) * speedFactor)
	if delay < 500*time.Millisecond {
		delay = 500 * time.Millisecond
	}
	if delay > 8*time.Second {
		delay = 8 * time.Second
	}
	return delay
}

// SplitPaced breaks a reply on blank lines into separately delivered
// messages, each with its own presentation delay.
func SplitPaced(content string, arousal float64) []types.OutgoingMessage {
	var out []types.OutgoingMessage
	for _, part := range strings.Split(content, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, types.OutgoingMessage{
			Content: part,
			Delay:   PresentationDelay(part, arousal),
		})
	}
	return out
}
