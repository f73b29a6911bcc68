// Package config loads process settings from a .env file, the environment and
// an optional TOML file with signal profiles and transcription keywords.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"github.com/joho/godotenv"
)

const (
	ProviderAuto    = "auto"
	ProviderNone    = "none"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"

	defaultAddr          = ":8080"
	defaultLogLevel      = "info"
	defaultMaxUploadMB   = 25
	bytesPerMB           = 1 << 20
	defaultShutdownGrace = 10
)

var (
	transcriberProviders = []string{ProviderOpenAI, ProviderGemini}
	feedbackProviders    = []string{ProviderOpenAI, ProviderGemini, ProviderBedrock, ProviderOllama}

	// Bedrock and Ollama are never picked automatically since neither needs an
	// API key that would signal intent.
	autoProviders = []string{ProviderOpenAI, ProviderGemini}
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	AudioModel string
}

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	AudioModel  string
	ProbeModels bool
}

type BedrockConfig struct {
	Model    string
	Endpoint string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// Config is the resolved process configuration.
type Config struct {
	Addr                   string
	LogLevel               string
	LogJSON                bool
	MaxUploadBytes         int64
	ShutdownTimeoutSeconds int
	Temperature            *float64

	// Transcriber and Feedback name the selected providers after "auto" has
	// been resolved. Either may be ProviderNone.
	Transcriber string
	Feedback    string

	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
	Bedrock BedrockConfig
	Ollama  OllamaConfig

	SignalsFile string
	Signals     SignalsConfig
}

// Load reads envFiles (or ./.env when none are given and it exists) without
// overriding variables already set, then builds and validates a Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, utils.WrapIfNotNil(err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:     envOr("PITCH_COACH_ADDR", defaultAddr),
		LogLevel: envOr("LOG_LEVEL", defaultLogLevel),
		LogJSON:  strings.EqualFold(env("LOG_FORMAT"), "json"),
		OpenAI: OpenAIConfig{
			APIKey:     env("OPENAI_API_KEY"),
			BaseURL:    env("OPENAI_BASE_URL"),
			Model:      env("OPENAI_MODEL"),
			AudioModel: env("OPENAI_AUDIO_MODEL"),
		},
		Gemini: GeminiConfig{
			APIKey:     envOr("GEMINI_KEY", env("GOOGLE_AI_API_KEY")),
			BaseURL:    env("GEMINI_BASE_URL"),
			Model:      env("GEMINI_MODEL"),
			AudioModel: env("GEMINI_AUDIO_MODEL"),
		},
		Bedrock: BedrockConfig{
			Model:    env("BEDROCK_MODEL"),
			Endpoint: env("BEDROCK_ENDPOINT"),
		},
		Ollama: OllamaConfig{
			BaseURL: env("OLLAMA_BASE_URL"),
			Model:   env("OLLAMA_MODEL"),
		},
		SignalsFile: env("PITCH_COACH_SIGNALS_FILE"),
	}

	maxUploadMB, err := envInt("PITCH_COACH_MAX_UPLOAD_MB", defaultMaxUploadMB)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if maxUploadMB <= 0 {
		return nil, utils.WrapIfNotNil(fmt.Errorf("PITCH_COACH_MAX_UPLOAD_MB must be positive, got %d", maxUploadMB))
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) * bytesPerMB

	if cfg.ShutdownTimeoutSeconds, err = envInt("PITCH_COACH_SHUTDOWN_SECONDS", defaultShutdownGrace); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if cfg.Gemini.ProbeModels, err = envBool("PITCH_COACH_PROBE_GEMINI", false); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if raw := env("PITCH_COACH_TEMPERATURE"); raw != "" {
		value, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return nil, utils.WrapIfNotNil(parseErr, "PITCH_COACH_TEMPERATURE")
		}
		cfg.Temperature = &value
	}

	if cfg.Transcriber, err = cfg.resolveProvider(env("PITCH_COACH_TRANSCRIBER"), transcriberProviders); err != nil {
		return nil, utils.WrapIfNotNil(err, "PITCH_COACH_TRANSCRIBER")
	}
	if cfg.Feedback, err = cfg.resolveProvider(env("PITCH_COACH_FEEDBACK"), feedbackProviders); err != nil {
		return nil, utils.WrapIfNotNil(err, "PITCH_COACH_FEEDBACK")
	}

	cfg.Signals = DefaultSignalsConfig()
	if cfg.SignalsFile != "" {
		if cfg.Signals, err = LoadSignalsFile(cfg.SignalsFile); err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
	}

	return cfg, nil
}

// resolveProvider validates an explicit choice or picks the first credentialed
// provider from allowed for "auto".
func (c *Config) resolveProvider(choice string, allowed []string) (string, error) {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" {
		choice = ProviderAuto
	}

	switch choice {
	case ProviderNone:
		return ProviderNone, nil
	case ProviderAuto:
		for _, candidate := range autoProviders {
			if slices.Contains(allowed, candidate) && c.hasCredentials(candidate) {
				return candidate, nil
			}
		}
		return ProviderNone, nil
	}

	if !slices.Contains(allowed, choice) {
		expected := append(slices.Clone(allowed), ProviderAuto, ProviderNone)
		return "", fmt.Errorf("unsupported provider %q, expected one of %s", choice, strings.Join(expected, ", "))
	}
	if !c.hasCredentials(choice) {
		return "", fmt.Errorf("provider %q selected but its API key is not set", choice)
	}
	return choice, nil
}

// hasCredentials reports whether an API key is configured. Bedrock resolves
// AWS credentials itself and Ollama needs none.
func (c *Config) hasCredentials(provider string) bool {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	default:
		return true
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if value := env(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := env(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := env(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

// Keywords is a convenience accessor for the transcription hint list.
func (c *Config) Keywords() []model.AudioKeyword {
	return c.Signals.Keywords
}

// ProfilesOrDefault never returns an empty profile set.
func (c *Config) ProfilesOrDefault() signals.Profiles {
	if len(c.Signals.Profiles) == 0 {
		return signals.DefaultProfiles()
	}
	return c.Signals.Profiles
}
