package main

import (
	"context"
	"errors"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentstarter/config"
	"github.com/hupe1980/agentstarter/model"
	"github.com/hupe1980/agentstarter/model/anthropic"
	"github.com/hupe1980/agentstarter/model/langchain"
	"github.com/hupe1980/agentstarter/model/openai"
)

var errMissingAPIKey = errors.New("model api key is not set (MODEL_API_KEY or the provider's own variable)")

// newModel builds the configured provider.
func newModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "mock":
		return model.NewMockModel(orDefault(cfg.Name, "mock"), "mock"), nil
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, errMissingAPIKey
		}
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, errMissingAPIKey
		}
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "googleai":
		if cfg.APIKey == "" {
			return nil, errMissingAPIKey
		}
		m, err := langchain.NewGoogleAI(ctx, cfg.APIKey, cfg.Name, func(o *langchain.Options) {
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
