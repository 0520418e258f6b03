package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"whatsapp-concierge/internal/validator"
)

// scoreTemperature must stay non-zero: go-openai omits a zero temperature and
// the API then samples at its default of 1.
const scoreTemperature = 0.3

const scorePrompt = "Rate the authenticity of this message on a scale of 0-1. Consider factors like emotional depth, personal connection, and genuine expression. Reply with the number only."

var numberPattern = regexp.MustCompile(`[0-9]*\.?[0-9]+`)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Scorer asks a chat model for an authenticity rating.
type Scorer struct {
	client  chatClient
	model   string
	timeout time.Duration
}

func NewScorer(client chatClient, model string, timeout time.Duration) *Scorer {
	if client == nil {
		panic("ai: chat client cannot be nil")
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scorer{client: client, model: model, timeout: timeout}
}

func (s *Scorer) Score(ctx context.Context, text string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scorePrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: scoreTemperature,
	})
	if err != nil {
		return 0, fmt.Errorf("ai: score completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("ai: score completion returned no choices")
	}
	return parseScore(resp.Choices[0].Message.Content)
}

// parseScore takes the first number in the answer and clamps it to [0,1].
func parseScore(answer string) (float64, error) {
	match := numberPattern.FindString(answer)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", validator.ErrScoreUnparsable, answer)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", validator.ErrScoreUnparsable, answer)
	}
	switch {
	case score < 0:
		return 0, nil
	case score > 1:
		return 1, nil
	}
	return score, nil
}
