package ai

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
)

// ErrUnavailable is returned when no model credentials were configured.
var ErrUnavailable = errors.New("ai service unavailable")

// Completer maps user text, plus optional prior transcript, onto a reply.
type Completer interface {
	Complete(ctx context.Context, history []chat.Message, input string) (string, error)
}

// CodeGenerator turns a natural-language prompt into source code.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, prompt string) (string, error)
}

// Backend is implemented by every provider.
type Backend interface {
	Completer
	CodeGenerator
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Backend, error) {
	if !cfg.Enabled() {
		return nil, ErrUnavailable
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewLangChainService(cfg)
	default:
		return NewService(ctx, cfg)
	}
}

// Unavailable answers every call with ErrUnavailable so the server can run
// without credentials; failures surface through the normal error paths.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, []chat.Message, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) GenerateCode(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

// withTimeout bounds one call; d <= 0 leaves ctx untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
