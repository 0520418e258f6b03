// Package ai adapts the OpenAI API to the scorer and synthesizer the
// conversation pipeline depends on.
package ai

import (
	openai "github.com/sashabaranov/go-openai"

	"whatsapp-concierge/internal/config"
)

// NewOpenAIClient builds a client honouring an optional base URL override.
func NewOpenAIClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
