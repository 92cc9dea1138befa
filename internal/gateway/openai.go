package gateway

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
)

type OpenAIBackend struct {
	client    openai.Client
	maxTokens int64
}

type OpenAIOpts struct {
	APIKey    string
	BaseURL   string
	MaxTokens int64
}

func NewOpenAI(opts OpenAIOpts) *OpenAIBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIBackend{
		client:    openai.NewClient(reqOpts...),
		maxTokens: maxTokens,
	}
}

func (b *OpenAIBackend) Query(ctx context.Context, model catalog.Model, prompt string) (*Response, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model.ID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	return &Response{
		ModelID:      model.ID,
		Text:         completion.Choices[0].Message.Content,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}
