package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/validator"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		answer string
		want   float64
	}{
		{"0.8", 0.8},
		{"Score: 0.35", 0.35},
		{".7", 0.7},
		{"1", 1},
		{"7", 1},
	}
	for _, tt := range tests {
		got, err := parseScore(tt.answer)
		require.NoError(t, err, tt.answer)
		assert.InDelta(t, tt.want, got, 1e-9, tt.answer)
	}

	_, err := parseScore("I cannot rate this")
	assert.ErrorIs(t, err, validator.ErrScoreUnparsable)
}

func newTestServer(t *testing.T) (*openai.Client, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/chat/completions":
			var req openai.ChatCompletionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "score-model", req.Model)
			assert.InDelta(t, 0.3, req.Temperature, 1e-6)
			if assert.Len(t, req.Messages, 2) {
				assert.Equal(t, "my genuine message", req.Messages[1].Content)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "0.75"}}},
			})
		case "/audio/speech":
			var req openai.CreateSpeechRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, openai.SpeechVoice("nova"), req.Voice)
			assert.Equal(t, openai.SpeechResponseFormatMp3, req.ResponseFormat)
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-audio"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient(&config.Config{OpenAIKey: "test", OpenAIBaseURL: srv.URL})
	return client, &paths
}

func TestScorerAgainstAPI(t *testing.T) {
	client, paths := newTestServer(t)
	s := NewScorer(client, "score-model", time.Second)

	score, err := s.Score(context.Background(), "my genuine message")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score, 1e-9)
	assert.Equal(t, []string{"/chat/completions"}, *paths)
}

func TestSynthesizerAgainstAPI(t *testing.T) {
	client, _ := newTestServer(t)
	s := NewSynthesizer(client, "tts-1", time.Second)

	audio, err := s.Synthesize(context.Background(), "hello there", "nova", 1.0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
}

type failingChat struct{}

func (failingChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, errors.New("boom")
}

func TestScorerWrapsClientError(t *testing.T) {
	_, err := NewScorer(failingChat{}, "", 0).Score(context.Background(), "text")
	assert.ErrorContains(t, err, "boom")
}
