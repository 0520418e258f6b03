package ai

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type speechClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Synthesizer turns reply text into mp3 audio.
type Synthesizer struct {
	client  speechClient
	model   string
	timeout time.Duration
}

func NewSynthesizer(client speechClient, model string, timeout time.Duration) *Synthesizer {
	if client == nil {
		panic("ai: speech client cannot be nil")
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{client: client, model: model, timeout: timeout}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := s.client.CreateSpeech(callCtx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: speech synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("ai: read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ai: speech synthesis returned no audio")
	}
	return audio, nil
}
