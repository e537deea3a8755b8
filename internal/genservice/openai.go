package genservice

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// openaiModel 封装 OpenAI 兼容的聊天客户端。
type openaiModel struct {
	client    *openai.Client
	name      string
	userAgent string
}

// NewOpenAICompatModel builds a model.LLM over any OpenAI-compatible endpoint.
// baseURL may be empty for the default OpenAI endpoint.
func NewOpenAICompatModel(modelName, apiKey, baseURL string) (model.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &openaiModel{
		name:   modelName,
		client: &client,
		userAgent: fmt.Sprintf("companion-engine go/%s",
			strings.TrimPrefix(runtime.Version(), "go")),
	}, nil
}

// NewGrokModel targets the x.ai endpoint.
func NewGrokModel(modelName, apiKey string) (model.LLM, error) {
	return NewOpenAICompatModel(modelName, apiKey, "https://api.x.ai/v1")
}

func (m *openaiModel) Name() string {
	return m.name
}

func (m *openaiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *openaiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := m.buildParams(req)

	resp, err := m.client.Chat.Completions.New(ctx, *params, option.WithHeader("user-agent", m.userAgent))
	if err != nil {
		slog.Error("failed to call chat completion API", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("failed to call chat completion API: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &model.LLMResponse{}, nil
	}

	message := resp.Choices[0].Message
	content := &genai.Content{Role: "model"}
	if message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: message.Content})
	}
	return &model.LLMResponse{Content: content, TurnComplete: true}, nil
}

func (m *openaiModel) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params := m.buildParams(req)

		stream := m.client.Chat.Completions.NewStreaming(ctx, *params, option.WithHeader("user-agent", m.userAgent))
		defer func() {
			if err := stream.Close(); err != nil {
				slog.Error("failed to close stream", "error", err.Error())
			}
		}()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content == "" && choice.FinishReason == "" {
				continue
			}

			resp := &model.LLMResponse{
				Partial:      choice.FinishReason == "",
				TurnComplete: choice.FinishReason != "",
			}
			if choice.Delta.Content != "" {
				resp.Content = &genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: choice.Delta.Content}},
				}
			}
			if !yield(resp, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				yield(nil, fmt.Errorf("context cancelled: %w", err))
				return
			}
			slog.Error("stream call failed", "model", m.name, "error", err.Error())
			yield(nil, fmt.Errorf("stream error: %w", err))
		}
	}
}

func (m *openaiModel) buildParams(req *model.LLMRequest) *openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{Model: req.Model}
	if params.Model == "" {
		params.Model = m.name
	}

	if req.Config != nil && req.Config.SystemInstruction != nil {
		var sb strings.Builder
		for _, part := range req.Config.SystemInstruction.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			params.Messages = append(params.Messages, openai.SystemMessage(sb.String()))
		}
	}

	for _, content := range req.Contents {
		var sb strings.Builder
		for _, part := range content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		text := sb.String()

		switch content.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(text))
		case "model":
			params.Messages = append(params.Messages, openai.AssistantMessage(text))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(text))
		}
	}

	if req.Config != nil {
		if req.Config.Temperature != nil {
			params.Temperature = openai.Float(float64(*req.Config.Temperature))
		}
		if req.Config.TopP != nil {
			params.TopP = openai.Float(float64(*req.Config.TopP))
		}
		if req.Config.MaxOutputTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.Config.MaxOutputTokens))
		}
	}

	return &params
}
