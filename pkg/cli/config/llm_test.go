package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/cli/config"
)

func TestLLMConfig_LoadAndValidate(t *testing.T) {
	t.Run("Load valid YAML configuration", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/valid_providers.yaml",
			// Credentials for providers used in defaults/secondary
			GeminiProject:  "test-project",
			GeminiLocation: "us-central1",
			OpenAIAPIKey:   "test-openai-key",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err)
		gt.NotEqual(t, providersConfig, nil)

		gt.Equal(t, len(providersConfig.Providers), 3)

		openaiFromMap, hasOpenAI := providersConfig.Providers["openai"]
		gt.Equal(t, hasOpenAI, true)
		gt.Equal(t, openaiFromMap.DisplayName, "OpenAI")

		openai, exists := providersConfig.GetProvider("openai")
		gt.Equal(t, exists, true)
		gt.NotEqual(t, openai, nil)
		gt.Equal(t, len(openai.Models), 2)

		gt.Equal(t, providersConfig.Defaults.Provider, "gemini")
		gt.Equal(t, providersConfig.Defaults.Model, "gemini-2.0-flash")

		gt.Equal(t, providersConfig.Secondary.Enabled, true)
		gt.Equal(t, providersConfig.Secondary.Provider, "openai")
		gt.Equal(t, providersConfig.Secondary.Model, "gpt-4o-mini")
	})

	t.Run("Load non-existent file", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "/non/existent/file.yaml",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NotEqual(t, err, nil)
		gt.Equal(t, providersConfig, nil)
	})

	t.Run("Default config loads without a file", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ClaudeAPIKey:   "test-claude-key",
			GeminiProject:  "test-project",
			GeminiLocation: "us-central1",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err)
		gt.NotEqual(t, providersConfig, nil)
		gt.Equal(t, providersConfig.Defaults.Provider, "claude")
	})

	t.Run("Missing credentials for default provider", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile: "testdata/valid_providers.yaml",
			// Gemini is the default but no project is configured
			OpenAIAPIKey: "test-openai-key",
		}
		_, err := llmConfig.LoadAndValidate()
		gt.NotEqual(t, err, nil)
	})

	t.Run("Defaults override", func(t *testing.T) {
		llmConfig := &config.LLMConfig{
			ProvidersFile:   "testdata/valid_providers.yaml",
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4o",
			OpenAIAPIKey:    "test-openai-key",
		}
		providersConfig, err := llmConfig.LoadAndValidate()
		gt.NoError(t, err)
		gt.Equal(t, providersConfig.Defaults.Provider, "openai")
		gt.Equal(t, providersConfig.Defaults.Model, "gpt-4o")
		gt.True(t, providersConfig.ValidateProviderModel("openai", "gpt-4o"))
	})
}
