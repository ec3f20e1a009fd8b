package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"

	MemoryStateless = "stateless"
	MemorySession   = "session"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig `toml:"server"`
	Auth   AuthConfig   `toml:"auth"`
	AI     AIConfig     `toml:"ai"`
	Chat   ChatConfig   `toml:"chat"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr                   string `toml:"addr"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	MaxUploadBytes         int64  `toml:"max_upload_bytes"`
}

// AuthConfig 描述令牌签发与演示账号。
type AuthConfig struct {
	JWTSecret        string `toml:"jwt_secret"`
	TokenTTLMinutes  int    `toml:"token_ttl_minutes"`
	SeedDemoUser     bool   `toml:"seed_demo_user"`
	DemoUserPassword string `toml:"demo_user_password"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider       string   `toml:"provider"`
	APIKey         string   `toml:"api_key"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	Model          string   `toml:"model"`
	BaseURL        string   `toml:"base_url"`
	Region         string   `toml:"region"`
	OpenAIAPIKey   string   `toml:"openai_api_key"`
	OpenAIBaseURL  string   `toml:"openai_base_url"`
	OpenAIModel    string   `toml:"openai_model"`
	Temperature    *float64 `toml:"temperature"`
	TopP           *float64 `toml:"top_p"`
	MaxTokens      *int     `toml:"max_tokens"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Memory         string   `toml:"memory"`
	HistoryLimit   int      `toml:"history_limit"`
}

// ChatConfig 描述会话存储与 WebSocket 注册表策略。
type ChatConfig struct {
	StrictLookups        bool   `toml:"strict_lookups"`
	ReconnectPolicy      string `toml:"reconnect_policy"`
	SessionIdleTTLMinute int    `toml:"session_idle_ttl_minutes"`
	SweepIntervalSeconds int    `toml:"sweep_interval_seconds"`
	WriteTimeoutSeconds  int    `toml:"write_timeout_seconds"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load 读取可选的 TOML 文件，然后用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = getEnvOrDefault("CONFIG_FILE", "configs/config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "decode config file %s", path)
		}
	}

	if err := overrideByEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	temperature := 0.7
	return &Config{
		Server: ServerConfig{
			Addr:                   ":8000",
			ShutdownTimeoutSeconds: 10,
			MaxUploadBytes:         10 << 20,
		},
		Auth: AuthConfig{
			JWTSecret:        "your-secret-key",
			TokenTTLMinutes:  30,
			SeedDemoUser:     true,
			DemoUserPassword: "secret",
		},
		AI: AIConfig{
			Provider:     ProviderArk,
			BaseURL:      "https://ark.cn-beijing.volces.com/api/v3",
			Region:       "cn-beijing",
			OpenAIModel:  "gpt-3.5-turbo",
			Temperature:  &temperature,
			Memory:       MemoryStateless,
			HistoryLimit: 10,
		},
		Chat: ChatConfig{
			ReconnectPolicy:      "close_previous",
			SweepIntervalSeconds: 60,
			WriteTimeoutSeconds:  10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func overrideByEnv(cfg *Config) error {
	addr, err := parseAddr(os.Getenv("PORT"), cfg.Server.Addr)
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(overrideInt("SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeoutSeconds))
	collect(overrideInt64("MAX_UPLOAD_BYTES", &cfg.Server.MaxUploadBytes))

	cfg.Auth.JWTSecret = getEnvOrDefault("SECRET_KEY", cfg.Auth.JWTSecret)
	collect(overrideInt("ACCESS_TOKEN_EXPIRE_MINUTES", &cfg.Auth.TokenTTLMinutes))
	collect(overrideBool("AUTH_SEED_DEMO_USER", &cfg.Auth.SeedDemoUser))
	cfg.Auth.DemoUserPassword = getEnvOrDefault("AUTH_DEMO_PASSWORD", cfg.Auth.DemoUserPassword)

	cfg.AI.Provider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", cfg.AI.Provider))
	cfg.AI.APIKey = getEnvOrDefault("ARK_API_KEY", cfg.AI.APIKey)
	cfg.AI.AccessKey = getEnvOrDefault("ARK_ACCESS_KEY", cfg.AI.AccessKey)
	cfg.AI.SecretKey = getEnvOrDefault("ARK_SECRET_KEY", cfg.AI.SecretKey)
	cfg.AI.Model = getEnvOrDefault("Model", cfg.AI.Model)
	cfg.AI.BaseURL = getEnvOrDefault("ARK_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Region = getEnvOrDefault("ARK_REGION", cfg.AI.Region)
	cfg.AI.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.AI.OpenAIAPIKey)
	cfg.AI.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.AI.OpenAIBaseURL)
	cfg.AI.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.AI.OpenAIModel)
	cfg.AI.Memory = strings.ToLower(getEnvOrDefault("CHAT_MEMORY", cfg.AI.Memory))
	collect(overrideInt("AI_HISTORY_LIMIT", &cfg.AI.HistoryLimit))
	collect(overrideInt("AI_TIMEOUT_SECONDS", &cfg.AI.TimeoutSeconds))

	if temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE"); err != nil {
		collect(err)
	} else if temperature != nil {
		cfg.AI.Temperature = temperature
	}
	if topP, err := parseOptionalFloatEnv("LLM_TOP_P"); err != nil {
		collect(err)
	} else if topP != nil {
		cfg.AI.TopP = topP
	}
	if maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS"); err != nil {
		collect(err)
	} else if maxTokens != nil {
		cfg.AI.MaxTokens = maxTokens
	}

	collect(overrideBool("STRICT_LOOKUPS", &cfg.Chat.StrictLookups))
	cfg.Chat.ReconnectPolicy = getEnvOrDefault("WS_RECONNECT_POLICY", cfg.Chat.ReconnectPolicy)
	collect(overrideInt("SESSION_IDLE_TTL_MINUTES", &cfg.Chat.SessionIdleTTLMinute))
	collect(overrideInt("SESSION_SWEEP_INTERVAL_SECONDS", &cfg.Chat.SweepIntervalSeconds))
	collect(overrideInt("WS_WRITE_TIMEOUT_SECONDS", &cfg.Chat.WriteTimeoutSeconds))

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case ProviderArk, ProviderOpenAI:
	default:
		return errors.Errorf("invalid LLM_PROVIDER value: %q", c.AI.Provider)
	}
	switch c.AI.Memory {
	case MemoryStateless, MemorySession:
	default:
		return errors.Errorf("invalid CHAT_MEMORY value: %q", c.AI.Memory)
	}
	if c.AI.HistoryLimit < 1 {
		c.AI.HistoryLimit = 1
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("SECRET_KEY must not be empty")
	}
	return nil
}

// ShutdownTimeout 返回优雅停机的等待时间。
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// TokenTTL 返回访问令牌的有效期。
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// SessionIdleTTL 返回会话空闲淘汰阈值，0 表示不淘汰。
func (c ChatConfig) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMinute) * time.Minute
}

// SweepInterval 返回淘汰循环的扫描间隔。
func (c ChatConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// WriteTimeout 返回单帧写超时。
func (c ChatConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// Timeout 返回单次补全调用的超时，0 表示不限制。
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// parseAddr 允许用户传入 "8080"、":8080" 或 "127.0.0.1:8080"。
func parseAddr(raw, fallback string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		return fallback, nil
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", errors.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func overrideBool(key string, dst *bool) error {
	val, err := parseBoolEnv(key, *dst)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func overrideInt(key string, dst *int) error {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return err
	}
	if val != nil {
		*dst = *val
	}
	return nil
}

func overrideInt64(key string, dst *int64) error {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return err
	}
	if val != nil {
		*dst = int64(*val)
	}
	return nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}
