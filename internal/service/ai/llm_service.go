package ai

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
)

// Service runs chat and code-generation chains on an eino chat model.
type Service struct {
	chatChain    compose.Runnable[map[string]any, *schema.Message]
	codeChain    compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
	timeout      time.Duration
}

// NewService creates the Ark-backed service.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat model")
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit, cfg.Timeout())
}

// NewServiceWithModel compiles both chains around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, historyLimit int, timeout time.Duration) (*Service, error) {
	chatTpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(conversationPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)
	chatChain, err := compileChain(ctx, chatTpl, chatModel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile chat chain")
	}

	codeTpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(codeSystemPrompt),
		schema.UserMessage(codeTemplate),
	)
	codeChain, err := compileChain(ctx, codeTpl, chatModel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile code chain")
	}

	return &Service{
		chatChain:    chatChain,
		codeChain:    codeChain,
		historyLimit: historyLimit,
		timeout:      timeout,
	}, nil
}

func compileChain(ctx context.Context, tpl prompt.ChatTemplate, chatModel model.BaseChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Complete answers input. A fresh context is built per call; history is
// only what the caller passes in.
func (s *Service) Complete(ctx context.Context, history []chat.Message, input string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.chatChain.Invoke(ctx, map[string]any{
		"history": s.buildHistoryMessages(history),
		"query":   input,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to run chat chain")
	}

	log.Debug().Str("component", "ai").Int("history", len(history)).Int("length", len(response.Content)).Msg("completion generated")
	return response.Content, nil
}

// GenerateCode runs the code-generation prompt.
func (s *Service) GenerateCode(ctx context.Context, codePrompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.codeChain.Invoke(ctx, map[string]any{"prompt": codePrompt})
	if err != nil {
		return "", errors.Wrap(err, "failed to run code chain")
	}
	return response.Content, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	messages = trimHistory(messages, s.historyLimit)
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
