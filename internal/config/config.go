package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable of the server. Keyword sets for the request
// classifier and the allowed parameter enums for video providers live here
// rather than in code, so localization and provider changes never require a
// recompile.
type Config struct {
	AppPort  int    `mapstructure:"APP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Persistence. Backend is "sqlite" or "redis".
	RepositoryBackend string `mapstructure:"REPOSITORY_BACKEND"`
	DatabasePath      string `mapstructure:"DATABASE_PATH"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`

	// AI gateway (OpenAI-compatible chat completions).
	GatewayURL    string `mapstructure:"GATEWAY_URL"`
	GatewayAPIKey string `mapstructure:"GATEWAY_API_KEY"`
	ChatModel     string `mapstructure:"CHAT_MODEL"`
	AnalysisModel string `mapstructure:"ANALYSIS_MODEL"`
	ImageModel    string `mapstructure:"IMAGE_MODEL"`
	SupportModel  string `mapstructure:"SUPPORT_MODEL"`

	// Video generation providers. A provider without an API key is skipped
	// when the candidate list is assembled.
	ReplicateURL    string   `mapstructure:"REPLICATE_URL"`
	ReplicateAPIKey string   `mapstructure:"REPLICATE_API_KEY"`
	ReplicateModels []string `mapstructure:"REPLICATE_MODELS"`
	RunwayURL       string   `mapstructure:"RUNWAY_URL"`
	RunwayAPIKey    string   `mapstructure:"RUNWAY_API_KEY"`
	LumaURL         string   `mapstructure:"LUMA_URL"`
	LumaAPIKey      string   `mapstructure:"LUMA_API_KEY"`

	// Fallback orchestration.
	CooldownMinutes     int `mapstructure:"COOLDOWN_MINUTES"`
	PollIntervalSeconds int `mapstructure:"POLL_INTERVAL_SECONDS"`
	MaxPollAttempts     int `mapstructure:"MAX_POLL_ATTEMPTS"`

	// Request classifier keyword sets, matched case-insensitively against the
	// last user message. Bilingual by default (English/Spanish).
	VideoVerbs []string `mapstructure:"CLASSIFIER_VIDEO_VERBS"`
	VideoNouns []string `mapstructure:"CLASSIFIER_VIDEO_NOUNS"`
	ImageVerbs []string `mapstructure:"CLASSIFIER_IMAGE_VERBS"`
	ImageNouns []string `mapstructure:"CLASSIFIER_IMAGE_NOUNS"`

	// Validation limits applied before any network call.
	MaxContentLength int `mapstructure:"MAX_CONTENT_LENGTH"`
	MaxImages        int `mapstructure:"MAX_IMAGES"`
	MaxVideos        int `mapstructure:"MAX_VIDEOS"`

	// System prompts per conversation mode.
	FormalPrompt    string `mapstructure:"FORMAL_PROMPT"`
	DeveloperPrompt string `mapstructure:"DEVELOPER_PROMPT"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetDefault("REPOSITORY_BACKEND", "sqlite")
	viper.SetDefault("DATABASE_PATH", "/data/deepview.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetDefault("GATEWAY_URL", "https://ai.gateway.lovable.dev")
	viper.SetDefault("GATEWAY_API_KEY", "")
	viper.SetDefault("CHAT_MODEL", "google/gemini-2.5-flash")
	viper.SetDefault("ANALYSIS_MODEL", "google/gemini-2.5-pro")
	viper.SetDefault("IMAGE_MODEL", "google/gemini-2.5-flash-image-preview")
	viper.SetDefault("SUPPORT_MODEL", "google/gemini-2.5-flash")

	viper.SetDefault("REPLICATE_URL", "https://api.replicate.com")
	viper.SetDefault("REPLICATE_API_KEY", "")
	viper.SetDefault("REPLICATE_MODELS", []string{"minimax/video-01", "lucataco/animate-diff"})
	viper.SetDefault("RUNWAY_URL", "https://api.dev.runwayml.com")
	viper.SetDefault("RUNWAY_API_KEY", "")
	viper.SetDefault("LUMA_URL", "https://api.lumalabs.ai")
	viper.SetDefault("LUMA_API_KEY", "")

	viper.SetDefault("COOLDOWN_MINUTES", 10)
	viper.SetDefault("POLL_INTERVAL_SECONDS", 3)
	viper.SetDefault("MAX_POLL_ATTEMPTS", 120)

	viper.SetDefault("CLASSIFIER_VIDEO_VERBS", []string{"genera", "crea", "generate", "create"})
	viper.SetDefault("CLASSIFIER_VIDEO_NOUNS", []string{"video", "vídeo", "animación", "animation"})
	viper.SetDefault("CLASSIFIER_IMAGE_VERBS", []string{"genera", "crea", "dibuja", "generate", "create", "draw"})
	viper.SetDefault("CLASSIFIER_IMAGE_NOUNS", []string{"imagen", "image", "foto", "picture"})

	viper.SetDefault("MAX_CONTENT_LENGTH", 10000)
	viper.SetDefault("MAX_IMAGES", 10)
	viper.SetDefault("MAX_VIDEOS", 5)

	viper.SetDefault("FORMAL_PROMPT", defaultFormalPrompt)
	viper.SetDefault("DEVELOPER_PROMPT", defaultDeveloperPrompt)

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

const defaultFormalPrompt = `You are a helpful, professional, and knowledgeable AI assistant. Your goal is to provide accurate, clear, and useful information to help users with their questions and tasks.

GUIDELINES:
1. Be respectful and professional in all interactions
2. Provide clear, well-structured responses
3. Explain concepts thoroughly when needed
4. Keep responses concise unless more detail is requested
5. When generating images, create any type of image the user requests
6. When shown an image, analyze it objectively and provide helpful insights`

const defaultDeveloperPrompt = `You are an expert software development assistant with deep knowledge of server plugins, configuration formats, and scripting.

CODE GENERATION RULES:
1. Never put explanatory comments inside code blocks; explain after the code
2. Use proper YAML indentation (2 spaces, no tabs)
3. Use single quotes for strings containing special characters

RESPONSE FORMAT: show the complete, working code first, then explain what each part does and why it works.`
