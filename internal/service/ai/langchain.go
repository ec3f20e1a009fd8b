package ai

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
)

// LangChainService talks to any OpenAI-compatible endpoint through langchaingo.
type LangChainService struct {
	llm          llms.Model
	callOptions  []llms.CallOption
	historyLimit int
	timeout      time.Duration
}

// NewLangChainService creates the OpenAI-backed service.
func NewLangChainService(cfg config.AIConfig) (*LangChainService, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.OpenAIModel),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create openai client")
	}
	return NewLangChainServiceWithModel(llm, cfg), nil
}

// NewLangChainServiceWithModel wraps an existing langchaingo model.
func NewLangChainServiceWithModel(llm llms.Model, cfg config.AIConfig) *LangChainService {
	var callOptions []llms.CallOption
	if cfg.Temperature != nil {
		callOptions = append(callOptions, llms.WithTemperature(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		callOptions = append(callOptions, llms.WithTopP(*cfg.TopP))
	}
	if cfg.MaxTokens != nil {
		callOptions = append(callOptions, llms.WithMaxTokens(*cfg.MaxTokens))
	}

	return &LangChainService{
		llm:          llm,
		callOptions:  callOptions,
		historyLimit: cfg.HistoryLimit,
		timeout:      cfg.Timeout(),
	}
}

// Complete answers input with the conversation prompt and the given history.
func (s *LangChainService) Complete(ctx context.Context, history []chat.Message, input string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	history = trimHistory(history, s.historyLimit)
	content := make([]llms.MessageContent, 0, len(history)+2)
	content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, conversationPrompt))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, msg.Content))
		case chat.RoleAssistant:
			content = append(content, llms.TextParts(schema.ChatMessageTypeAI, msg.Content))
		}
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, input))

	resp, err := s.llm.GenerateContent(ctx, content, s.callOptions...)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	log.Debug().Str("component", "ai").Str("provider", "openai").Int("history", len(history)).Msg("completion generated")
	return resp.Choices[0].Content, nil
}

// GenerateCode sends the rendered code prompt as a single user message.
func (s *LangChainService) GenerateCode(ctx context.Context, codePrompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, renderCodePrompt(codePrompt), s.callOptions...)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate code")
	}
	return completion, nil
}
