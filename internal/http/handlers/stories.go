package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"calmiverse/internal/domain"
	"calmiverse/internal/domain/jsoncfg"
	"calmiverse/internal/middleware"
	"calmiverse/internal/queue"
	"calmiverse/internal/webhook"
	"calmiverse/pkg/epub"
)

// dispatchTimeout bounds the background generation kick, retries included.
const dispatchTimeout = 5 * time.Minute

type createStoryRequest struct {
	Objective string   `json:"objective"`
	ChildIDs  []string `json:"child_ids"`
	Duration  string   `json:"duration,omitempty"`
	Voice     string   `json:"voice,omitempty"`
	Language  string   `json:"language,omitempty"`
	Tone      string   `json:"tone,omitempty"`
}

type storyView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Objective string    `json:"objective"`
	ChildIDs  []string  `json:"child_ids"`
	Language  string    `json:"language"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	HasAudio  bool      `json:"has_audio"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateStory validates the request, persists a pending story row, tracks it
// in the local queue, and kicks the generation webhook in the background.
func (a *App) CreateStory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	usage, err := a.Users.GetDailyUsage(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if user.QuotaDaily > 0 && usage >= user.QuotaDaily {
		a.domainError(w, domain.ErrQuotaExceeded)
		return
	}

	prompt, err := a.buildPrompt(r, req)
	if err != nil {
		a.domainError(w, fmt.Errorf("%w: %v", domain.ErrInvalidPrompt, err))
		return
	}

	payload := jsoncfg.MustMarshal(prompt)
	story := &domain.Story{
		ID:        uuid.NewString(),
		UserID:    userID,
		Objective: prompt.Objective,
		ChildIDs:  req.ChildIDs,
		Language:  prompt.Extras.Locale,
		Status:    domain.StoryStatusPending,
		Prompt:    payload,
	}
	if err := a.Stories.Create(r.Context(), story); err != nil {
		a.domainError(w, err)
		return
	}
	jobID, err := a.Queue.Enqueue(queue.Input{
		ID:      story.ID,
		OwnerID: userID,
		Payload: payload,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	// Without a configured webhook the row stays pending for the worker to
	// claim; erroring it here would shadow the built-in pipeline.
	if a.Webhook.Configured() {
		go a.dispatchGeneration(story, payload)
	}

	job, _ := a.Queue.Get(jobID)
	a.json(w, http.StatusAccepted, map[string]any{
		"story_id": story.ID,
		"job":      job,
	})
}

// buildPrompt loads the referenced children and assembles the canonical
// prompt contract.
func (a *App) buildPrompt(r *http.Request, req createStoryRequest) (*jsoncfg.PromptJSON, error) {
	userID := a.currentUserID(r)
	now := time.Now()

	characters := make([]jsoncfg.StoryCharacter, 0, len(req.ChildIDs))
	for _, childID := range req.ChildIDs {
		child, err := a.Children.GetByID(r.Context(), childID)
		if err != nil {
			return nil, fmt.Errorf("child %s: %v", childID, err)
		}
		if child.UserID != userID {
			return nil, fmt.Errorf("child %s: not found", childID)
		}
		characters = append(characters, jsoncfg.StoryCharacter{
			ChildID:   child.ID,
			Name:      child.Name,
			Age:       child.AgeAt(now),
			Interests: child.Interests,
			TeddyName: child.TeddyName,
		})
	}

	prompt := &jsoncfg.PromptJSON{
		Objective:  strings.TrimSpace(req.Objective),
		Characters: characters,
		Tone:       req.Tone,
		Extras: jsoncfg.ExtrasConfig{
			Locale:   req.Language,
			Duration: req.Duration,
			Voice:    req.Voice,
		},
	}
	prompt.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := prompt.Validate(); err != nil {
		return nil, err
	}
	return prompt, nil
}

// dispatchGeneration kicks the external pipeline. Failures are written to the
// story row only; the resulting push event flows back through the watcher,
// which updates the local job and notifies the user exactly once.
func (a *App) dispatchGeneration(story *domain.Story, payload json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	client := a.Webhook.WithOnRetry(func(attempt int, err error) {
		a.Queue.RecordRetry(story.ID)
	})
	workflowID, err := client.StartGeneration(ctx, webhook.GenerationRequest{
		StoryID:   story.ID,
		Owner:     story.UserID,
		Children:  story.ChildIDs,
		Objective: story.Objective,
		Prompt:    payload,
		Language:  story.Language,
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", story.ID).Msg("stories: generation dispatch failed")
		msg := "generation pipeline unavailable"
		dbErr := a.Stories.UpdateStatus(ctx, story.ID, domain.StoryStatusError, &msg)
		switch {
		case errors.Is(dbErr, domain.ErrDuplicateOperation):
			// The story finished while we were retrying; keep the result.
			a.Logger.Debug().Str("story_id", story.ID).Msg("stories: story already terminal, dispatch error dropped")
		case dbErr != nil:
			a.Logger.Error().Err(dbErr).Str("story_id", story.ID).Msg("stories: failed to record dispatch error")
		}
		return
	}
	if err := a.Stories.SetWorkflowID(ctx, story.ID, workflowID); err != nil {
		a.Logger.Warn().Err(err).Str("story_id", story.ID).Msg("stories: failed to record workflow id")
	}
}

// ListStories returns the user's library, newest first.
func (a *App) ListStories(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	stories, err := a.Stories.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.domainError(w, err)
		return
	}

	views := make([]storyView, 0, len(stories))
	for i := range stories {
		views = append(views, viewStory(&stories[i], false))
	}
	a.json(w, http.StatusOK, map[string]any{"stories": views})
}

// GetStory returns one story with its full text.
func (a *App) GetStory(w http.ResponseWriter, r *http.Request) {
	story, ok := a.ownedStory(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, viewStory(story, true))
}

// DownloadEPUB renders a completed story as an EPUB document.
func (a *App) DownloadEPUB(w http.ResponseWriter, r *http.Request) {
	story, ok := a.ownedStory(w, r)
	if !ok {
		return
	}
	if story.Status != domain.StoryStatusCompleted || story.Content == "" {
		a.error(w, http.StatusConflict, "not_ready", "story is not completed yet")
		return
	}

	data, err := epub.Build(epub.Book{
		ID:       "urn:calmiverse:" + story.ID,
		Title:    story.Title,
		Language: story.Language,
		Chapters: []epub.Chapter{{Title: story.Title, Text: story.Content}},
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", story.ID+".epub"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadAudio streams the narration asset for a completed story.
func (a *App) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	story, ok := a.ownedStory(w, r)
	if !ok {
		return
	}
	if story.AudioKey == "" {
		a.error(w, http.StatusConflict, "not_ready", "narration is not available yet")
		return
	}

	data, err := a.Store.Read(r.Context(), story.AudioKey)
	if err != nil {
		a.domainError(w, err)
		return
	}

	contentType := "audio/mpeg"
	if strings.HasSuffix(story.AudioKey, ".wav") {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ownedStory loads the story in the URL and enforces ownership. A foreign
// story is indistinguishable from a missing one.
func (a *App) ownedStory(w http.ResponseWriter, r *http.Request) (*domain.Story, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	story, err := a.Stories.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return nil, false
	}
	if story.UserID != userID {
		a.domainError(w, domain.ErrNotFound)
		return nil, false
	}
	return story, true
}

func viewStory(s *domain.Story, includeContent bool) storyView {
	v := storyView{
		ID:        s.ID,
		Title:     s.Title,
		Objective: s.Objective,
		ChildIDs:  s.ChildIDs,
		Language:  s.Language,
		Status:    string(s.Status),
		Error:     s.ErrorMessage,
		HasAudio:  s.AudioKey != "",
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if includeContent {
		v.Content = s.Content
	}
	return v
}
