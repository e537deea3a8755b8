package fact

import (
	"regexp"
	"strings"
)

// Canonical fact keys. Preference keys carry a suffix: preference_like,
// preference_dislike.
const (
	KeyName          = "name"
	KeyRole          = "role"
	KeyOrigin        = "origin"
	KeyCurrentStatus = "current_status"
	KeyGoal          = "goal"
	KeyPrefLike      = "preference_like"
	KeyPrefDislike   = "preference_dislike"
)

// Confidence assigned to extracted facts. The disambiguation pass raises it;
// regex alone stays lower because the patterns misfire on quoted speech.
const (
	regexConfidence         = 0.6
	disambiguatedConfidence = 0.8
)

// Candidate is a key/value pair matched in raw text, before conflict
// resolution.
type Candidate struct {
	Key   string
	Value string
}

type pattern struct {
	key string
	re  *regexp.Regexp
}

// 中英双语自述句式。捕获组 1 为事实取值。
var patterns = []pattern{
	{KeyName, regexp.MustCompile(`(?:我叫|我的名字是|叫我)([\p{Han}A-Za-z]{1,12})`)},
	{KeyName, regexp.MustCompile(`(?i)(?:my name is|call me|i'm called)\s+([A-Za-z][A-Za-z\-']{0,24})`)},
	{KeyRole, regexp.MustCompile(`(?:我是一名|我是一个|我的职业是|我在做)([\p{Han}A-Za-z]{1,16})`)},
	{KeyRole, regexp.MustCompile(`(?i)i(?:'m| am) a(?:n)?\s+([a-z][a-z ]{1,30}?)(?:[.,!?]|$)`)},
	{KeyRole, regexp.MustCompile(`(?i)i work as a(?:n)?\s+([a-z][a-z ]{1,30}?)(?:[.,!?]|$)`)},
	{KeyOrigin, regexp.MustCompile(`(?:我来自|我老家在|我家在)([\p{Han}A-Za-z]{1,16})`)},
	{KeyOrigin, regexp.MustCompile(`(?i)i(?:'m| am) from\s+([A-Za-z][A-Za-z ]{1,30}?)(?:[.,!?]|$)`)},
	{KeyCurrentStatus, regexp.MustCompile(`(?:我最近在|我这阵子在|我目前在)([\p{Han}A-Za-z0-9]{1,20})`)},
	{KeyCurrentStatus, regexp.MustCompile(`(?i)(?:these days|lately) i(?:'m| am| have been)\s+([a-z][a-z ]{1,40}?)(?:[.,!?]|$)`)},
	{KeyGoal, regexp.MustCompile(`(?:我的目标是|我想成为|我希望能?)([\p{Han}A-Za-z0-9]{1,24})`)},
	{KeyGoal, regexp.MustCompile(`(?i)my goal is to\s+([a-z][a-z ]{1,40}?)(?:[.,!?]|$)`)},
	{KeyGoal, regexp.MustCompile(`(?i)i want to become\s+([a-z][a-z ]{1,40}?)(?:[.,!?]|$)`)},
	{KeyPrefLike, regexp.MustCompile(`(?:我喜欢|我超爱|我很爱)([\p{Han}A-Za-z0-9]{1,20})`)},
	{KeyPrefLike, regexp.MustCompile(`(?i)i (?:really )?(?:love|like|enjoy)\s+([a-z][a-z ]{1,30}?)(?:[.,!?]|$)`)},
	{KeyPrefDislike, regexp.MustCompile(`(?:我讨厌|我很烦|我受不了)([\p{Han}A-Za-z0-9]{1,20})`)},
	{KeyPrefDislike, regexp.MustCompile(`(?i)i (?:really )?(?:hate|can't stand|dislike)\s+([a-z][a-z ]{1,30}?)(?:[.,!?]|$)`)},
}

// Extract scans text for self-descriptive statements and returns at most one
// candidate per canonical key, first match wins.
func Extract(text string) []Candidate {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []Candidate
	for _, p := range patterns {
		if seen[p.key] {
			continue
		}
		match := p.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[1])
		if value == "" {
			continue
		}
		seen[p.key] = true
		out = append(out, Candidate{Key: p.key, Value: value})
	}
	return out
}
