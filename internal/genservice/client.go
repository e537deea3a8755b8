// Package genservice wraps the text-generation backends behind one small
// client. The pipeline never talks to a provider SDK directly: it builds a
// Request, gets a Response, and treats any failure as a signal to fall back
// to its rule-based path.
package genservice

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/companion-engine/internal/types"
)

// Message is one entry of the ordered conversation sent to the backend.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	Messages []Message
	Params   types.SamplingParams
}

// Response is the outcome of a generation call. Err is a plain description
// for logging; callers branch on Success, never on error text.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Success          bool
	Err              string
}

// Client is the Generation Service seen by the pipeline stages.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	// GenerateStream yields incremental text chunks. The sequence ends when
	// the backend signals completion; cancelling the context abandons the
	// stream with no other effect.
	GenerateStream(ctx context.Context, req *Request) iter.Seq2[string, error]
}

// llmClient adapts an ADK model.LLM to the Client interface.
type llmClient struct {
	llm     model.LLM
	timeout time.Duration
}

// NewClient wraps a model.LLM with a bounded per-call timeout.
func NewClient(llm model.LLM, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &llmClient{llm: llm, timeout: timeout}
}

func (c *llmClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if c == nil || c.llm == nil {
		return nil, fmt.Errorf("generation client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	llmReq := buildLLMRequest(req)
	seq := c.llm.GenerateContent(ctx, llmReq, false)

	var resp *model.LLMResponse
	var err error
	seq(func(r *model.LLMResponse, e error) bool {
		resp = r
		err = e
		return false
	})
	if err != nil {
		slog.Error("generation call failed", "error", err)
		return &Response{Success: false, Err: err.Error()}, err
	}

	content := extractText(resp)
	return &Response{
		Content:          content,
		PromptTokens:     estimateTokens(promptText(req)),
		CompletionTokens: estimateTokens(content),
		Success:          content != "",
	}, nil
}

func (c *llmClient) GenerateStream(ctx context.Context, req *Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c == nil || c.llm == nil {
			yield("", fmt.Errorf("generation client not configured"))
			return
		}

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		seq := c.llm.GenerateContent(ctx, buildLLMRequest(req), true)
		seq(func(r *model.LLMResponse, e error) bool {
			if e != nil {
				return yield("", e)
			}
			chunk := extractText(r)
			if chunk == "" {
				return true
			}
			return yield(chunk, nil)
		})
	}
}

func buildLLMRequest(req *Request) *model.LLMRequest {
	cfg := &genai.GenerateContentConfig{}

	// Gemini only accepts user/model content roles; system text rides on
	// the config's SystemInstruction instead.
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if system.Len() > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(system.String(), genai.RoleUser)
	}
	if req.Params.Temperature > 0 {
		temp := float32(req.Params.Temperature)
		cfg.Temperature = &temp
	}
	if req.Params.TopP > 0 {
		topP := float32(req.Params.TopP)
		cfg.TopP = &topP
	}
	if req.Params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Params.MaxTokens)
	}

	return &model.LLMRequest{
		Contents: contents,
		Config:   cfg,
	}
}

func extractText(resp *model.LLMResponse) string {
	if resp == nil || resp.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func promptText(req *Request) string {
	var sb strings.Builder
	for _, msg := range req.Messages {
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

// estimateTokens is a rough rune-based estimate; the backends do not expose
// exact usage through the shared interface.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return utf8.RuneCountInString(text)/3 + 1
}
