package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/handler"
	"github.com/zhouzirui/ai-chat/backend/internal/model/user"
	"github.com/zhouzirui/ai-chat/backend/internal/service/ai"
	"github.com/zhouzirui/ai-chat/backend/internal/service/auth"
	"github.com/zhouzirui/ai-chat/backend/internal/service/chat"
	"github.com/zhouzirui/ai-chat/backend/internal/service/connection"
	"github.com/zhouzirui/ai-chat/backend/internal/service/sentiment"
	"github.com/zhouzirui/ai-chat/backend/internal/service/vision"
)

type flags struct {
	configPath string
	addr       string
	logLevel   string
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "AI chat backend: WebSocket chat, sessions and analysis endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}
	rootCmd.Flags().StringVar(&f.configPath, "config", "", "path to a TOML config file (default $CONFIG_FILE or configs/config.toml)")
	rootCmd.Flags().StringVar(&f.addr, "addr", "", "listen address, overrides PORT")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, f flags) error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	policy, err := connection.ParseReconnectPolicy(cfg.Chat.ReconnectPolicy)
	if err != nil {
		return err
	}
	registry := connection.NewRegistry(connection.Options{
		Policy:       policy,
		Strict:       cfg.Chat.StrictLookups,
		WriteTimeout: cfg.Chat.WriteTimeout(),
	})
	sessions := chat.NewService(chat.Options{
		Strict:        cfg.Chat.StrictLookups,
		IdleTTL:       cfg.Chat.SessionIdleTTL(),
		SweepInterval: cfg.Chat.SweepInterval(),
	})

	authSvc := auth.NewService(user.NewMemoryStore(), cfg.Auth)
	if cfg.Auth.SeedDemoUser {
		if err := authSvc.SeedDemoUser(cfg.Auth.DemoUserPassword); err != nil {
			return err
		}
	}

	var backend ai.Backend
	backend, err = ai.New(ctx, cfg.AI)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("continuing without AI functionality, check the model credentials")
		backend = ai.Unavailable{}
	} else {
		log.Info().Str("provider", cfg.AI.Provider).Str("memory", cfg.AI.Memory).Msg("AI service initialized")
	}

	router := handler.NewRouter(handler.Deps{
		Registry:       registry,
		Sessions:       sessions,
		Auth:           authSvc,
		AI:             backend,
		Sentiment:      sentiment.NewService(nil),
		Vision:         vision.NewAnalyzer(),
		SessionMemory:  cfg.AI.Memory == config.MemorySession,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sessions.StartEvictionLoop(groupCtx)
		return nil
	})
	eg.Go(func() error {
		return runServer(groupCtx, srv, cfg.Server.ShutdownTimeout(), registry)
	})
	return eg.Wait()
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, registry *connection.Registry) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("AI chat backend listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		registry.CloseAll()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	}
}

func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
