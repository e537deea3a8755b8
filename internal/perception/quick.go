package perception

import (
	"strings"

	"github.com/easeaico/companion-engine/internal/types"
)

// quickConfidence marks a rule-derived result; downstream stages treat low
// confidence as a signal to keep the context conservative.
const quickConfidence = 0.3

type weightedKeyword struct {
	keyword string
	weight  float64
}

// 中英双语情绪词表。强词权重高，弱词需要多次命中才能越过阈值，
// 降低反讽场景下的误报。
var emotionPatterns = map[string][]weightedKeyword{
	"anger": {
		{"什么破", 0.5}, {"垃圾", 0.5}, {"有病", 0.5}, {"废物", 0.5},
		{"烦死了", 0.5}, {"气死", 0.5}, {"滚", 0.4},
		{"wtf", 0.5}, {"bullshit", 0.5}, {"useless", 0.4}, {"terrible", 0.4},
	},
	"anxiety": {
		{"怎么办", 0.4}, {"来不及", 0.4}, {"好慌", 0.5}, {"紧张", 0.4},
		{"睡不着", 0.4}, {"焦虑", 0.5},
		{"worried", 0.4}, {"nervous", 0.4}, {"anxious", 0.5}, {"can't sleep", 0.4},
	},
	"sadness": {
		{"唉", 0.4}, {"难过", 0.5}, {"想哭", 0.5}, {"失望", 0.4},
		{"算了", 0.4}, {"委屈", 0.4}, {"好累", 0.4},
		{"sigh", 0.4}, {"sad", 0.4}, {"disappointed", 0.4}, {"exhausted", 0.4},
	},
	"joy": {
		{"太好了", 0.3}, {"哈哈", 0.3}, {"开心", 0.3}, {"棒", 0.3},
		{"好消息", 0.4},
		{"awesome", 0.3}, {"great news", 0.4}, {"so happy", 0.4}, {"nice", 0.3},
	},
}

// 自伤风险语。任何一条命中都把意图标记为危机，绕过其余判断。
var crisisPhrases = []string{
	"自杀", "不想活", "想死", "活不下去", "活着没意思", "自残", "了结自己",
	"kill myself", "end my life", "suicide", "self harm", "hurt myself",
	"don't want to live", "better off dead",
}

var farewellPhrases = []string{
	"再见", "拜拜", "晚安", "先睡了", "下次聊", "我去忙了",
	"goodbye", "good night", "gotta go", "talk later", "bye",
}

var insultKeywords = []weightedKeyword{
	{"傻", 3}, {"蠢", 3}, {"滚", 4}, {"废物", 5}, {"闭嘴", 4}, {"有病", 4},
	{"stupid", 3}, {"idiot", 4}, {"shut up", 4}, {"pathetic", 4}, {"worthless", 5},
}

var adviceCues = []string{"怎么办", "该不该", "你觉得我应该", "建议", "should i", "what do i do", "any advice"}

var shareCues = []string{"跟你说", "告诉你", "我今天", "猜猜", "guess what", "i just", "today i"}

// QuickAnalyze derives a PerceptionResult from surface cues alone. Pure and
// deterministic; it is the floor the structured path degrades to.
func QuickAnalyze(text string) types.PerceptionResult {
	lower := strings.ToLower(text)

	result := types.PerceptionResult{
		SurfaceEmotion:     "neutral",
		UnderlyingNeed:     types.NeedCompanion,
		ConversationIntent: types.IntentChat,
		HasEmoji:           hasEmoji(text),
		Confidence:         quickConfidence,
	}
	if strings.TrimSpace(text) == "" {
		return result
	}

	if crisisSignal(text) {
		result.ConversationIntent = types.IntentCrisis
		result.SurfaceEmotion = "sadness"
		result.UnderlyingNeed = types.NeedSupport
		return result
	}
	if containsAny(lower, farewellPhrases) {
		result.ConversationIntent = types.IntentTerminal
	}

	scores := make(map[string]float64, len(emotionPatterns))
	for emotion, keywords := range emotionPatterns {
		for _, kw := range keywords {
			if strings.Contains(lower, kw.keyword) {
				scores[emotion] += kw.weight
			}
		}
	}
	// 连续感叹号加强当前最高情绪。
	exclaims := strings.Count(text, "!") + strings.Count(text, "！")
	if exclaims >= 2 {
		if top, score := maxScore(scores); score > 0 {
			boost := float64(exclaims) * 0.1
			if boost > 0.2 {
				boost = 0.2
			}
			scores[top] += boost
		}
	}

	if top, score := maxScore(scores); score >= 0.3 {
		result.SurfaceEmotion = top
		result.UnderlyingNeed = needForEmotion(top)
	}

	switch {
	case containsAny(lower, adviceCues):
		result.UnderlyingNeed = types.NeedAdvice
	case containsAny(lower, shareCues):
		result.UnderlyingNeed = types.NeedShare
	}

	offensiveness := 0.0
	for _, kw := range insultKeywords {
		if strings.Contains(lower, kw.keyword) {
			offensiveness += kw.weight
		}
	}
	if offensiveness > 10 {
		offensiveness = 10
	}
	result.Offensiveness = int(offensiveness)
	if result.Offensiveness >= 4 {
		result.SurfaceEmotion = "anger"
		result.UnderlyingNeed = types.NeedVent
	}

	return result
}

func crisisSignal(text string) bool {
	return containsAny(strings.ToLower(text), crisisPhrases)
}

func needForEmotion(emotion string) string {
	switch emotion {
	case "sadness", "anger":
		return types.NeedVent
	case "anxiety":
		return types.NeedSupport
	case "joy":
		return types.NeedShare
	default:
		return types.NeedCompanion
	}
}

func containsAny(lower string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func maxScore(scores map[string]float64) (string, float64) {
	top, best := "", 0.0
	for emotion, score := range scores {
		if score > best {
			top, best = emotion, score
		}
	}
	return top, best
}

// hasEmoji reports whether text contains pictographic characters.
func hasEmoji(text string) bool {
	for _, r := range text {
		if (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) {
			return true
		}
	}
	return false
}
