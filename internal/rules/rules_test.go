package rules

import "testing"

func TestParseAndEval(t *testing.T) {
	expr, err := Parse("hour >= 21 && hour <= 23 && hoursSinceLast >= 6")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctx := map[string]any{"hour": 22, "hoursSinceLast": 8.0}
	if !expr.Eval(ctx) {
		t.Fatalf("expected true for %v", ctx)
	}

	ctx["hour"] = 12
	if expr.Eval(ctx) {
		t.Fatalf("expected false for %v", ctx)
	}
}

func TestEvalOrAndParens(t *testing.T) {
	expr, err := Parse("(hour < 6 || hour > 22) && intimacy >= 0.5")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !expr.Eval(map[string]any{"hour": 23, "intimacy": 0.7}) {
		t.Fatalf("expected true")
	}
	if expr.Eval(map[string]any{"hour": 23, "intimacy": 0.2}) {
		t.Fatalf("expected false when intimacy too low")
	}
}

func TestEvalStringComparison(t *testing.T) {
	expr, err := Parse(`mood == 'sad' || mood == "angry"`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !expr.Eval(map[string]any{"mood": "sad"}) {
		t.Fatalf("expected true for sad")
	}
	if expr.Eval(map[string]any{"mood": "happy"}) {
		t.Fatalf("expected false for happy")
	}
}

func TestEvalMissingKeyIsFalse(t *testing.T) {
	expr, err := Parse("missing > 1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if expr.Eval(map[string]any{}) {
		t.Fatalf("missing key must evaluate false")
	}
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{"", "hour >", "hour ~ 3", "(hour > 1", "mood > 'sad'"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
	}
}

func TestParseCacheReturnsSameExpr(t *testing.T) {
	a, err := Parse("hour >= 1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := Parse("hour >= 1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a != b {
		t.Fatalf("expected cached expression to be reused")
	}
}
