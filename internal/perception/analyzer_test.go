package perception

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/types"
)

type fakeGen struct {
	reply string
	err   error
}

func (f *fakeGen) Generate(context.Context, *genservice.Request) (*genservice.Response, error) {
	if f.err != nil {
		return &genservice.Response{Success: false, Err: f.err.Error()}, f.err
	}
	return &genservice.Response{Content: f.reply, Success: true}, nil
}

func (f *fakeGen) GenerateStream(context.Context, *genservice.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {}
}

var testProfile = types.Profile{Name: "小满", Persona: "温柔、好奇的伙伴"}

func TestQuickAnalyzeCrisis(t *testing.T) {
	for _, text := range []string{"我真的不想活了", "sometimes i think about suicide"} {
		got := QuickAnalyze(text)
		if got.ConversationIntent != types.IntentCrisis {
			t.Errorf("QuickAnalyze(%q).intent = %q, want crisis", text, got.ConversationIntent)
		}
		if got.UnderlyingNeed != types.NeedSupport {
			t.Errorf("crisis need = %q, want support", got.UnderlyingNeed)
		}
	}
}

func TestQuickAnalyzeFarewell(t *testing.T) {
	got := QuickAnalyze("我先睡了，晚安")
	if got.ConversationIntent != types.IntentTerminal {
		t.Fatalf("intent = %q, want terminal", got.ConversationIntent)
	}
}

func TestQuickAnalyzeSadnessToVent(t *testing.T) {
	got := QuickAnalyze("唉，今天真的好累，有点难过")
	if got.SurfaceEmotion != "sadness" {
		t.Fatalf("emotion = %q, want sadness", got.SurfaceEmotion)
	}
	if got.UnderlyingNeed != types.NeedVent {
		t.Fatalf("need = %q, want vent", got.UnderlyingNeed)
	}
	if got.Confidence != quickConfidence {
		t.Fatalf("confidence = %v, want %v", got.Confidence, quickConfidence)
	}
}

func TestQuickAnalyzeAdviceCue(t *testing.T) {
	got := QuickAnalyze("工作上出了点事，你觉得我应该怎么办")
	if got.UnderlyingNeed != types.NeedAdvice {
		t.Fatalf("need = %q, want advice", got.UnderlyingNeed)
	}
}

func TestQuickAnalyzeOffensiveness(t *testing.T) {
	got := QuickAnalyze("你个废物，闭嘴")
	if got.Offensiveness < 4 || got.Offensiveness > 10 {
		t.Fatalf("offensiveness = %d, want within [4,10]", got.Offensiveness)
	}
	if got.SurfaceEmotion != "anger" || got.UnderlyingNeed != types.NeedVent {
		t.Fatalf("insults should read as anger/vent, got %q/%q", got.SurfaceEmotion, got.UnderlyingNeed)
	}
}

func TestQuickAnalyzeEmoji(t *testing.T) {
	if !QuickAnalyze("今天超开心 🎉").HasEmoji {
		t.Fatal("expected emoji detected")
	}
	if QuickAnalyze("今天超开心").HasEmoji {
		t.Fatal("expected no emoji")
	}
}

func TestQuickAnalyzeNeutralDefault(t *testing.T) {
	got := QuickAnalyze("今天吃了面条")
	if got.SurfaceEmotion != "neutral" || got.ConversationIntent != types.IntentChat {
		t.Fatalf("unexpected default: %+v", got)
	}
}

func TestAnalyzeStructuredPath(t *testing.T) {
	gen := &fakeGen{reply: `{"surface_emotion":"sadness","underlying_need":"vent",
		"subtext_inference":"白天积累的压力","conversation_intent":"chat",
		"has_emoji":true,"offensiveness":0,"confidence":0.9}`}
	a := NewAnalyzer(gen)

	got := a.Analyze(context.Background(), "今天被老板骂了", testProfile, "平稳", time.Now(), "", nil)
	if got.SurfaceEmotion != "sadness" || got.UnderlyingNeed != types.NeedVent {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", got.Confidence)
	}
	// Emoji detection stays local regardless of what the model claims.
	if got.HasEmoji {
		t.Fatal("text has no emoji, model claim must be overridden")
	}
}

func TestAnalyzeFallsBackOnFailure(t *testing.T) {
	a := NewAnalyzer(&fakeGen{err: errors.New("timeout")})

	got := a.Analyze(context.Background(), "唉，难过", testProfile, "", time.Now(), "", nil)
	if got.Confidence != quickConfidence {
		t.Fatalf("expected quick-path confidence %v, got %v", quickConfidence, got.Confidence)
	}
	if got.SurfaceEmotion != "sadness" {
		t.Fatalf("fallback emotion = %q, want sadness", got.SurfaceEmotion)
	}
}

func TestAnalyzeFallsBackOnGarbage(t *testing.T) {
	a := NewAnalyzer(&fakeGen{reply: "我也说不清楚呢"})

	got := a.Analyze(context.Background(), "随便聊聊", testProfile, "", time.Now(), "", nil)
	if got.Confidence != quickConfidence {
		t.Fatalf("expected quick fallback, got %+v", got)
	}
}

func TestAnalyzeCrisisOverridesModelIntent(t *testing.T) {
	gen := &fakeGen{reply: `{"surface_emotion":"sadness","underlying_need":"vent",
		"conversation_intent":"chat","has_emoji":false,"offensiveness":0,"confidence":0.8}`}
	a := NewAnalyzer(gen)

	got := a.Analyze(context.Background(), "我不想活了", testProfile, "", time.Now(), "", nil)
	if got.ConversationIntent != types.IntentCrisis {
		t.Fatalf("intent = %q, crisis phrases must win over the model", got.ConversationIntent)
	}
}

func TestAnalyzeClampsOutOfRange(t *testing.T) {
	gen := &fakeGen{reply: `{"surface_emotion":"anger","underlying_need":"vent",
		"conversation_intent":"chat","has_emoji":false,"offensiveness":99,"confidence":3.5}`}
	a := NewAnalyzer(gen)

	got := a.Analyze(context.Background(), "气死我了", testProfile, "", time.Now(), "", nil)
	if got.Offensiveness != 10 {
		t.Fatalf("offensiveness = %d, want clamped to 10", got.Offensiveness)
	}
	if got.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamped to 1", got.Confidence)
	}
}
