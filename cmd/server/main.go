package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"whatsapp-concierge/internal/ai"
	"whatsapp-concierge/internal/api"
	"whatsapp-concierge/internal/automation"
	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/contacts"
	"whatsapp-concierge/internal/conversation"
	"whatsapp-concierge/internal/database"
	"whatsapp-concierge/internal/dispatch"
	"whatsapp-concierge/internal/eligibility"
	"whatsapp-concierge/internal/media"
	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/internal/quota"
	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/internal/validator"
	"whatsapp-concierge/internal/webhook"
	"whatsapp-concierge/internal/whatsapp"
	"whatsapp-concierge/internal/ws"
	"whatsapp-concierge/pkg/logging"
	"whatsapp-concierge/pkg/models"
)

func main() {
	if err := run(); err != nil {
		logging.Default().Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	profiles, err := config.LoadProfile(cfg.ProfilePath, logger.With("component", "profile"))
	if err != nil {
		return err
	}
	profiles.Watch()

	files, err := media.NewStore(cfg.TempPath)
	if err != nil {
		return err
	}

	m := metrics.New(nil)
	hub := ws.NewHub(logger.With("component", "ws"))
	go hub.Run(ctx)

	gateway := whatsapp.NewClient(cfg)
	llm := ai.NewOpenAIClient(cfg)

	v := validator.New(ai.NewScorer(llm, cfg.ScoreModel, cfg.ScoreTimeout), validator.Config{
		MinLength: cfg.MinLength,
		Threshold: cfg.AuthenticityThreshold,
		FailOpen:  cfg.ScoreFailurePolicy == config.ScoreFailOpen,
	}, logger.With("component", "validator"))

	tracker := quota.NewTracker(st, cfg.MaxMessagesPerChat, cfg.QuotaWindow)

	var synth dispatch.Synthesizer
	if cfg.AudioOutput {
		synth = ai.NewSynthesizer(llm, cfg.TTSModel, cfg.TTSTimeout)
	}
	replier := dispatch.New(dispatch.Deps{
		Gateway: gateway,
		Synth:   synth,
		Files:   files,
		Counter: tracker,
		History: st,
		Metrics: m,
		Logger:  logger.With("component", "dispatch"),
	}, dispatch.Config{
		AudioOutput:   cfg.AudioOutput,
		AudioOnly:     cfg.AudioOnly,
		MaxAudioChars: cfg.MaxAudioChars,
		Voice:         cfg.Voice,
		VoiceSpeed:    cfg.VoiceSpeed,
		WebhookURL:    cfg.WebhookURL,
		HistoryLimit:  cfg.ChatHistoryLimit,
		Labels:        cfg.SetLabelsOnBotChats,
		Metadata:      metadataEntries(cfg.SetMetadataOnBotChats),
	})

	engine := automation.NewEngine(automation.Deps{
		Filter: eligibility.NewFilter(eligibility.Rules{
			Whitelist:         cfg.NumbersWhitelist,
			Blacklist:         cfg.NumbersBlacklist,
			SkipLabels:        cfg.SkipChatWithLabels,
			SkipArchivedChats: cfg.SkipArchivedChats,
		}),
		Classifier:   contacts.NewClassifier(profiles),
		Quota:        tracker,
		Machine:      conversation.NewMachine(st, v, profiles, m, logger.With("component", "conversation")),
		Replier:      replier,
		Gateway:      gateway,
		History:      st,
		Notifier:     hub,
		Metrics:      m,
		Logger:       logger.With("component", "engine"),
		HistoryLimit: cfg.ChatHistoryLimit,
	})

	device := models.Device{ID: cfg.DeviceID, Phone: cfg.DevicePhone}
	router := api.NewRouter(api.Routes{
		Webhook:   webhook.NewHandler(engine, device, cfg.TurnTimeout, m, logger.With("component", "webhook")),
		WhatsApp:  api.NewWhatsAppHandler(gateway, cfg.DeviceID, cfg.DevicePhone, logger.With("component", "api")),
		Files:     api.NewFilesHandler(files, logger.With("component", "files")),
		Dashboard: api.NewDashboardHandler(st, logger.With("component", "dashboard")),
		Hub:       hub,
		Metrics:   m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "backend", cfg.StateBackend, "audio", cfg.AudioOutput)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, logger *logging.Logger) (store.Store, error) {
	switch cfg.StateBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis: ping %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("using redis state store", "addr", cfg.RedisAddr)
		return store.NewRedisStore(client, "concierge"), nil
	case config.BackendGorm:
		db, err := database.Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db, logger); err != nil {
			return nil, err
		}
		logger.Info("using database state store", "driver", cfg.DBDriver)
		return store.NewGormStore(db), nil
	default:
		logger.Warn("using in-memory state store; state is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func metadataEntries(in []config.MetadataEntry) []models.MetadataEntry {
	out := make([]models.MetadataEntry, 0, len(in))
	for _, e := range in {
		out = append(out, models.MetadataEntry{Key: e.Key, Value: e.Value})
	}
	return out
}
