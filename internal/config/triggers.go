package config

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Trigger is one row of the proactive-message table. Rule is a condition
// expression evaluated against the scheduler's context map (see internal/rules);
// Templates are candidate message bodies, one picked at random when the rule
// fires.
type Trigger struct {
	Name        string   `json:"name"`
	Rule        string   `json:"rule"`
	Templates   []string `json:"templates"`
	MinGapHours float64  `json:"min_gap_hours"`
}

// DefaultTriggers returns the built-in proactive trigger table.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Name:        "morning_greeting",
			Rule:        "hour >= 8 && hour <= 10 && hoursSinceLast >= 8",
			Templates:   []string{"早安，昨晚睡得好吗？", "新的一天开始啦，今天有什么安排？"},
			MinGapHours: 20,
		},
		{
			Name:        "evening_checkin",
			Rule:        "hour >= 21 && hour <= 23 && hoursSinceLast >= 6",
			Templates:   []string{"今天过得怎么样？", "忙了一天，记得早点休息。"},
			MinGapHours: 20,
		},
		{
			Name:        "absence_nudge",
			Rule:        "hoursSinceLast >= 48 && intimacy >= 0.3",
			Templates:   []string{"好久没聊了，最近还好吗？", "突然想起你，在忙什么呢？"},
			MinGapHours: 48,
		},
		{
			Name:        "random_thought",
			Rule:        "random < 0.05 && hoursSinceLast >= 4 && intimacy >= 0.5",
			Templates:   []string{"刚刚看到一个有趣的东西，想跟你分享。", "忽然想到上次你说的那件事。"},
			MinGapHours: 12,
		},
	}
}

// LoadTriggers reads a trigger table file, falling back to the defaults.
func LoadTriggers(path string) []Trigger {
	if path == "" {
		return DefaultTriggers()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("trigger file unreadable, using defaults", "path", path, "error", err)
		return DefaultTriggers()
	}
	var triggers []Trigger
	if err := json.Unmarshal(data, &triggers); err != nil || len(triggers) == 0 {
		slog.Warn("trigger file malformed, using defaults", "path", path, "error", err)
		return DefaultTriggers()
	}
	return triggers
}
