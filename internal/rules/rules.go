// Package rules implements a small condition expression evaluator used by the
// proactive scheduler. Expressions compare identifiers from a context map
// against literals and combine comparisons with && and ||:
//
//	hour >= 21 && hour <= 23 && hoursSinceLast >= 6
//
// Parsed expressions are cached by their raw text.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Expr is a parsed condition. Eval never panics: a missing identifier or a
// type mismatch makes the enclosing comparison false.
type Expr interface {
	Eval(ctx map[string]any) bool
}

type andExpr struct{ left, right Expr }

func (e *andExpr) Eval(ctx map[string]any) bool {
	return e.left.Eval(ctx) && e.right.Eval(ctx)
}

type orExpr struct{ left, right Expr }

func (e *orExpr) Eval(ctx map[string]any) bool {
	return e.left.Eval(ctx) || e.right.Eval(ctx)
}

type cmpExpr struct {
	ident string
	op    string
	num   float64
	str   string
	isNum bool
}

func (e *cmpExpr) Eval(ctx map[string]any) bool {
	val, ok := ctx[e.ident]
	if !ok {
		return false
	}
	if e.isNum {
		num, ok := toFloat(val)
		if !ok {
			return false
		}
		switch e.op {
		case "<":
			return num < e.num
		case "<=":
			return num <= e.num
		case ">":
			return num > e.num
		case ">=":
			return num >= e.num
		case "==":
			return num == e.num
		case "!=":
			return num != e.num
		}
		return false
	}
	str, ok := val.(string)
	if !ok {
		return false
	}
	switch e.op {
	case "==":
		return str == e.str
	case "!=":
		return str != e.str
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

var cache sync.Map // raw expression text -> Expr

// Parse parses an expression, consulting the memo cache first.
func Parse(raw string) (Expr, error) {
	if cached, ok := cache.Load(raw); ok {
		return cached.(Expr), nil
	}
	p := &parser{tokens: tokenize(raw)}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	cache.Store(raw, expr)
	return expr, nil
}

func tokenize(raw string) []string {
	var tokens []string
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case strings.ContainsRune("<>=!&|", rune(c)):
			j := i + 1
			for j < len(raw) && strings.ContainsRune("<>=!&|", rune(raw[j])) {
				j++
			}
			tokens = append(tokens, raw[i:j])
			i = j
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(raw) && raw[j] != c {
				j++
			}
			if j < len(raw) {
				j++
			}
			tokens = append(tokens, raw[i:j])
			i = j
		default:
			j := i
			for j < len(raw) && !strings.ContainsRune(" \t()<>=!&|", rune(raw[j])) {
				j++
			}
			tokens = append(tokens, raw[i:j])
			i = j
		}
	}
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	if p.peek() == "(" {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	ident := p.next()
	if ident == "" {
		return nil, fmt.Errorf("expected identifier")
	}
	op := p.next()
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
	default:
		return nil, fmt.Errorf("expected comparison operator, got %q", op)
	}
	lit := p.next()
	if lit == "" {
		return nil, fmt.Errorf("expected literal after %q", op)
	}
	if len(lit) >= 2 && (lit[0] == '\'' || lit[0] == '"') {
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("operator %q not valid for strings", op)
		}
		return &cmpExpr{ident: ident, op: op, str: lit[1 : len(lit)-1]}, nil
	}
	num, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid literal %q: %w", lit, err)
	}
	return &cmpExpr{ident: ident, op: op, num: num, isNum: true}, nil
}
