package dispatch

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-concierge/internal/media"
	"whatsapp-concierge/internal/quota"
	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/internal/whatsapp"
	"whatsapp-concierge/pkg/logging"
	"whatsapp-concierge/pkg/models"
)

type fakeGateway struct {
	mu       sync.Mutex
	sent     []whatsapp.OutboundMessage
	presence []string
	labels   [][]string
	metadata [][]models.MetadataEntry
	sendErr  error
	labelErr error
}

func (g *fakeGateway) SendMessage(_ context.Context, msg whatsapp.OutboundMessage) (*whatsapp.SentMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sent = append(g.sent, msg)
	return &whatsapp.SentMessage{WaID: "wa-" + string(rune('0'+len(g.sent))), CreatedAt: time.Now()}, nil
}

func (g *fakeGateway) SendTypingState(_ context.Context, _, _, action string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presence = append(g.presence, action)
	return nil
}

func (g *fakeGateway) UpdateChatLabels(_ context.Context, _, _ string, labels []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.labels = append(g.labels, labels)
	return g.labelErr
}

func (g *fakeGateway) UpdateChatMetadata(_ context.Context, _, _ string, metadata []models.MetadataEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metadata = append(g.metadata, metadata)
	return nil
}

func (g *fakeGateway) presenceActions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.presence...)
}

type fakeSynth struct {
	audio []byte
	err   error
	calls int
}

func (s *fakeSynth) Synthesize(context.Context, string, string, float64) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

type fixture struct {
	gateway *fakeGateway
	synth   *fakeSynth
	files   *media.Store
	dir     string
	mem     *store.MemoryStore
	d       *Dispatcher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	files, err := media.NewStore(dir)
	require.NoError(t, err)
	mem := store.NewMemoryStore()
	f := &fixture{
		gateway: &fakeGateway{},
		synth:   &fakeSynth{audio: []byte("mp3")},
		files:   files,
		dir:     dir,
		mem:     mem,
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = "https://bot.example.com/webhook"
	}
	if cfg.MaxAudioChars == 0 {
		cfg.MaxAudioChars = 4096
	}
	f.d = New(Deps{
		Gateway: f.gateway,
		Synth:   f.synth,
		Files:   files,
		Counter: quota.NewTracker(mem, 500, time.Hour),
		History: mem,
		Logger:  logging.Discard(),
	}, cfg)
	return f
}

func event() models.InboundEvent {
	return models.InboundEvent{
		Chat: models.Chat{
			ID:         "34600000001@c.us",
			FromNumber: "34600000001",
			Type:       models.ChatTypeDirect,
			Labels:     []string{"bot", "vip"},
			Contact:    models.Contact{Phone: "+34600000001"},
		},
		Device: models.Device{ID: "dev-1", Phone: "34600000000"},
	}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTextReplyRecordsHistoryAndQuota(t *testing.T) {
	f := newFixture(t, Config{HistoryLimit: 20})
	ctx := context.Background()

	sent, err := f.d.Dispatch(ctx, event(), TextReply{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "wa-1", sent.WaID)

	require.Len(t, f.gateway.sent, 1)
	msg := f.gateway.sent[0]
	assert.Equal(t, "+34600000001", msg.Phone)
	assert.Equal(t, "dev-1", msg.Device)
	assert.Equal(t, "hello", msg.Message)
	assert.Nil(t, msg.Media)
	assert.Equal(t, whatsapp.Reference, msg.Reference)

	history, err := f.mem.History(ctx, "34600000001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "wa-1", history[0].ID)
	assert.Equal(t, "hello", history[0].Body)

	stat, err := f.mem.GetStat(ctx, "34600000001")
	require.NoError(t, err)
	assert.Equal(t, 1, stat.MessageCount)

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{whatsapp.PresenceTyping}, f.gateway.presenceActions())
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, listFiles(t, f.dir))
}

func TestAudioReplyRoundTrip(t *testing.T) {
	f := newFixture(t, Config{AudioOutput: true, AudioOnly: true})

	_, err := f.d.Dispatch(context.Background(), event(), TextReply{Text: "a voice note"})
	require.NoError(t, err)

	files := listFiles(t, f.dir)
	require.Len(t, files, 1)
	id := files[0]

	require.Len(t, f.gateway.sent, 1)
	msg := f.gateway.sent[0]
	assert.Empty(t, msg.Message)
	require.NotNil(t, msg.Media)
	assert.Equal(t, "https://bot.example.com/files/"+id, msg.Media.URL)
	assert.Equal(t, "ptt", msg.Media.Format)

	file, err := f.files.Claim(id)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "mp3", string(data))

	_, err = f.files.Claim(id)
	assert.ErrorIs(t, err, media.ErrNotFound)
	assert.Empty(t, listFiles(t, f.dir))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{whatsapp.PresenceRecording}, f.gateway.presenceActions())
	}, time.Second, 10*time.Millisecond)
}

func TestAudioEligibility(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		reply TextReply
		audio bool
	}{
		{"feature off", Config{AudioOnly: true}, TextReply{Text: "hi", Voice: true}, false},
		{"per-call voice", Config{AudioOutput: true}, TextReply{Text: "hi", Voice: true}, true},
		{"neither voice nor audio-only", Config{AudioOutput: true}, TextReply{Text: "hi"}, false},
		{"forced text", Config{AudioOutput: true, AudioOnly: true}, TextReply{Text: "hi", TextOnly: true}, false},
		{"too long", Config{AudioOutput: true, AudioOnly: true, MaxAudioChars: 3}, TextReply{Text: "four"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.cfg)
			_, err := f.d.Dispatch(context.Background(), event(), tt.reply)
			require.NoError(t, err)
			require.Len(t, f.gateway.sent, 1)
			assert.Equal(t, tt.audio, f.gateway.sent[0].Media != nil)
			assert.Equal(t, tt.audio, f.synth.calls == 1)
		})
	}
}

func TestSynthesisFailureFallsBackToText(t *testing.T) {
	f := newFixture(t, Config{AudioOutput: true, AudioOnly: true})
	f.synth.err = errors.New("tts down")

	_, err := f.d.Dispatch(context.Background(), event(), TextReply{Text: "still delivered"})
	require.NoError(t, err)

	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "still delivered", f.gateway.sent[0].Message)
	assert.Nil(t, f.gateway.sent[0].Media)
	assert.Empty(t, listFiles(t, f.dir))
}

func TestSendFailureSkipsBookkeeping(t *testing.T) {
	f := newFixture(t, Config{AudioOutput: true, AudioOnly: true, Labels: []string{"bot"}})
	f.gateway.sendErr = errors.New("gateway down")
	ctx := context.Background()

	_, err := f.d.Dispatch(ctx, event(), TextReply{Text: "lost"})
	require.Error(t, err)

	history, err := f.mem.History(ctx, "34600000001")
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = f.mem.GetStat(ctx, "34600000001")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.gateway.labels)
	assert.Empty(t, listFiles(t, f.dir), "unsent audio is removed")
}

func TestLabelsAndMetadataAreBestEffort(t *testing.T) {
	f := newFixture(t, Config{
		Labels:   []string{"bot", "missing"},
		Metadata: []models.MetadataEntry{{Key: "bot", Value: "on"}, {Key: "empty"}, {Value: "orphan"}},
	})
	f.gateway.labelErr = errors.New("labels rejected")

	_, err := f.d.Dispatch(context.Background(), event(), TextReply{Text: "hi"})
	require.NoError(t, err)

	require.Len(t, f.gateway.labels, 1)
	assert.Equal(t, []string{"bot"}, f.gateway.labels[0])
	require.Len(t, f.gateway.metadata, 1)
	assert.Equal(t, []models.MetadataEntry{{Key: "bot", Value: "on"}}, f.gateway.metadata[0])
}

func TestNoLabelUpdateWithoutOverlap(t *testing.T) {
	f := newFixture(t, Config{Labels: []string{"other"}})
	_, err := f.d.Dispatch(context.Background(), event(), TextReply{Text: strings.Repeat("x", 3)})
	require.NoError(t, err)
	assert.Empty(t, f.gateway.labels)
	assert.Empty(t, f.gateway.metadata)
}

func TestPrebuiltAudioReply(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.d.Dispatch(context.Background(), event(), AudioReply{Audio: []byte("ogg"), Transcript: "note"})
	require.NoError(t, err)
	require.Len(t, f.gateway.sent, 1)
	assert.NotNil(t, f.gateway.sent[0].Media)
	assert.Len(t, listFiles(t, f.dir), 1)
	assert.Equal(t, 0, f.synth.calls)
}
