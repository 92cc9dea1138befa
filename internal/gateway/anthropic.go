package gateway

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
)

const defaultMaxTokens = 8192

type AnthropicBackend struct {
	client    anthropic.Client
	maxTokens int64
}

type AnthropicOpts struct {
	APIKey    string
	BaseURL   string
	MaxTokens int64
}

func NewAnthropic(opts AnthropicOpts) *AnthropicBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// Router owns retries.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(reqOpts...),
		maxTokens: maxTokens,
	}
}

func (b *AnthropicBackend) Query(ctx context.Context, model catalog.Model, prompt string) (*Response, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model.ID),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Response{
		ModelID:      model.ID,
		Text:         text.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
