package utils

import "testing"

func TestExtractJSONObject(t *testing.T) {
	raw := "好的，分析结果如下：\n```json\n{\"a\": 1}\n```\n希望有帮助"
	obj, ok := ExtractJSONObject(raw)
	if !ok || obj != `{"a": 1}` {
		t.Fatalf("ExtractJSONObject = %q, %v", obj, ok)
	}

	if _, ok := ExtractJSONObject("no braces here"); ok {
		t.Fatal("expected no object")
	}
}

func TestParseJSONInto(t *testing.T) {
	var out struct {
		Mood string `json:"mood"`
	}
	if err := ParseJSONInto(`前缀 {"mood":"calm"} 后缀`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Mood != "calm" {
		t.Fatalf("mood = %q", out.Mood)
	}

	if err := ParseJSONInto(`{"mood": }`, &out); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("你好世界", 2); got != "你好" {
		t.Fatalf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("abc", 10); got != "abc" {
		t.Fatalf("TruncateRunes = %q", got)
	}
}
