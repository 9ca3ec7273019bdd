package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"calmiverse/internal/domain/jsoncfg"
	"calmiverse/internal/infra"
	"calmiverse/internal/infra/credentials"
	"calmiverse/internal/providers/tts"
	"calmiverse/internal/sqlinline"
	"calmiverse/internal/storage"
)

const storyPollInterval = 2 * time.Second

// story is the claimed row the worker fulfills.
type story struct {
	ID        string
	UserID    string
	Title     string
	Objective string
	Language  string
	ChildIDs  []string
	Prompt    json.RawMessage
}

type storyWorker struct {
	ctx    context.Context
	runner *infra.SQLRunner
	logger infra.Logger
	tts    *tts.Client
	store  *storage.FileStore
}

var errNoStoryAvailable = errors.New("no story available")

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	ttsAPIKey := strings.TrimSpace(cfg.ElevenLabsAPIKey)
	if ttsAPIKey == "" {
		credStore := credentials.NewStore(runner)
		keyFromStore, err := credStore.ElevenLabsAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load elevenlabs api key from store")
		} else {
			ttsAPIKey = keyFromStore
		}
	}

	ttsClient := tts.NewClient(tts.Options{
		APIKey:     ttsAPIKey,
		BaseURL:    cfg.ElevenLabsBaseURL,
		Voice:      cfg.ElevenLabsVoice,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Logger:     &logger,
	})
	if ttsAPIKey == "" {
		logger.Warn().Str("voice", ttsClient.Voice()).Msg("worker: elevenlabs api key missing, using synthetic narration")
	}

	worker := &storyWorker{
		ctx:    ctx,
		runner: runner,
		logger: logger,
		tts:    ttsClient,
		store:  fileStore,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *storyWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		s, err := w.claimStory()
		if err != nil {
			if errors.Is(err, errNoStoryAvailable) {
				time.Sleep(storyPollInterval)
				continue
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim story")
			time.Sleep(storyPollInterval)
			continue
		}

		w.handleStory(s)
	}
}

func (w *storyWorker) claimStory() (story, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QWorkerClaimStory)
	var s story
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Objective, &s.Language, &s.ChildIDs, &s.Prompt); err != nil {
		if infra.IsNoRows(err) {
			return story{}, errNoStoryAvailable
		}
		return story{}, err
	}
	// Ensure prompt bytes are not aliased.
	s.Prompt = append(json.RawMessage(nil), s.Prompt...)
	return s, nil
}

func (w *storyWorker) handleStory(s story) {
	w.logger.Info().Str("story_id", s.ID).Str("objective", s.Objective).Msg("worker: picked story")

	if err := w.fulfill(s); err != nil {
		w.logger.Error().Err(err).Str("story_id", s.ID).Msg("worker: story failed")
		if _, execErr := w.runner.Exec(w.ctx, sqlinline.QFailStory, s.ID, err.Error()); execErr != nil {
			w.logger.Error().Err(execErr).Str("story_id", s.ID).Msg("worker: failed to record error")
		}
	}
}

// fulfill composes the story text, synthesizes narration, stores the audio
// asset, and writes the terminal row. The final update fires the
// story_events trigger the API's watcher listens on.
func (w *storyWorker) fulfill(s story) error {
	var prompt jsoncfg.PromptJSON
	if err := json.Unmarshal(s.Prompt, &prompt); err != nil {
		return fmt.Errorf("decode prompt: %w", err)
	}

	title, content := composeStory(prompt)

	narration, err := w.tts.Synthesize(w.ctx, tts.SpeechRequest{
		Text:      content,
		Locale:    prompt.Extras.Locale,
		Voice:     prompt.Extras.Voice,
		RequestID: s.ID,
	})
	if err != nil {
		return fmt.Errorf("narration: %w", err)
	}

	audioKey, err := w.store.Write(w.ctx, narration.StorageKey, narration.Data)
	if err != nil {
		return fmt.Errorf("store narration: %w", err)
	}

	if _, err := w.runner.Exec(w.ctx, sqlinline.QCompleteStory, s.ID, title, content, audioKey); err != nil {
		return fmt.Errorf("complete story: %w", err)
	}

	w.logger.Info().
		Str("story_id", s.ID).
		Str("audio_key", audioKey).
		Int("seconds", narration.Seconds).
		Msg("worker: story completed")
	return nil
}
