package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider implements Provider for self-hosted OpenAI-compatible
// servers through langchaingo.
type LangchainProvider struct {
	client llms.Model
	model  string
}

// NewLangchainProvider creates a provider for the server at baseURL.
func NewLangchainProvider(baseURL, model, apiKey string) (*LangchainProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local provider requires a base URL")
	}
	if apiKey == "" {
		apiKey = "none"
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return &LangchainProvider{client: client, model: model}, nil
}

func (p *LangchainProvider) Name() string {
	return "local"
}

func (p *LangchainProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content = append(content, llms.MessageContent{
			Role:  chatMessageType(msg.Role),
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	opts = append(opts, llms.WithModel(model))

	resp, err := p.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("local completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("local server returned no choices")
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Content,
		Model:        model,
		FinishReason: choice.StopReason,
	}, nil
}

func chatMessageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
