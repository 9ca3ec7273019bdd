// Package remotesync bridges authoritative story state in Postgres into the
// local job queue. Push is primary; a poll loop is the safety net for events
// missed across listener reconnect gaps.
package remotesync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"calmiverse/internal/domain"
	"calmiverse/internal/notify"
	"calmiverse/internal/queue"
)

const defaultPollInterval = 2 * time.Minute

// pollFetchLimit bounds how many terminal stories a reconciliation fetches.
const pollFetchLimit = 20

// PushChannel delivers server-side story change events.
type PushChannel interface {
	Start(ctx context.Context) (<-chan domain.StoryEvent, error)
}

// Watcher reconciles remote story truth into the local queue manager and
// dispatches user notifications on terminal transitions.
type Watcher struct {
	channel    PushChannel
	stories    domain.StoryRepository
	manager    *queue.Manager
	dispatcher *notify.Dispatcher
	logger     zerolog.Logger

	pollInterval time.Duration

	mu       sync.Mutex
	running  bool
	ownerID  string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	baseline int
}

// NewWatcher wires a watcher. A zero pollInterval falls back to the default.
func NewWatcher(channel PushChannel, stories domain.StoryRepository, manager *queue.Manager, dispatcher *notify.Dispatcher, logger zerolog.Logger, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Watcher{
		channel:      channel,
		stories:      stories,
		manager:      manager,
		dispatcher:   dispatcher,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Start begins watching for the given owner. An empty ownerID watches every
// owner. Starting while already running is a no-op.
func (w *Watcher) Start(ctx context.Context, ownerID string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := w.channel.Start(runCtx)
	if err != nil {
		cancel()
		w.mu.Unlock()
		return err
	}

	w.running = true
	w.ownerID = ownerID
	w.cancel = cancel
	if count, err := w.stories.CountTerminalByUser(runCtx, ownerID); err == nil {
		w.baseline = count
	} else {
		w.baseline = 0
		w.logger.Warn().Err(err).Msg("remotesync: baseline count failed")
	}
	w.wg.Add(2)
	w.mu.Unlock()

	go w.consume(runCtx, events)
	go w.poll(runCtx)

	w.logger.Info().Str("owner_id", ownerID).Msg("remotesync: started")
	return nil
}

// Stop releases the push channel and halts polling. Stopping an idle watcher
// is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info().Msg("remotesync: stopped")
}

func (w *Watcher) consume(ctx context.Context, events <-chan domain.StoryEvent) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.apply(ctx, ev)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile compares the server-side terminal count against the last known
// baseline and replays recent terminal stories through the same apply path as
// push events. Idempotent by the manager's monotonic-transition invariant.
func (w *Watcher) reconcile(ctx context.Context) {
	count, err := w.stories.CountTerminalByUser(ctx, w.ownerID)
	if err != nil {
		w.logger.Warn().Err(err).Msg("remotesync: poll count failed")
		return
	}
	if count <= w.baseline {
		return
	}
	stories, err := w.stories.ListRecentTerminal(ctx, w.ownerID, pollFetchLimit)
	if err != nil {
		w.logger.Warn().Err(err).Msg("remotesync: poll fetch failed")
		return
	}
	w.baseline = count
	for _, s := range stories {
		w.apply(ctx, domain.StoryEvent{
			ID:     s.ID,
			UserID: s.UserID,
			Status: s.Status,
			Title:  s.Title,
			Error:  s.ErrorMessage,
		})
	}
}

// apply reconciles one remote event into the local queue. Events for foreign
// owners, untracked stories, or non-terminal statuses are ignored.
func (w *Watcher) apply(ctx context.Context, ev domain.StoryEvent) {
	if w.ownerID != "" && ev.UserID != "" && ev.UserID != w.ownerID {
		return
	}
	if !ev.Status.IsTerminal() {
		return
	}
	job, tracked := w.manager.Get(ev.ID)
	if !tracked {
		return
	}
	if job.Status.IsTerminal() {
		// Already reconciled; the second producer loses quietly.
		return
	}

	if ev.Title != "" {
		w.manager.Rename(ev.ID, ev.Title)
	}
	w.manager.UpdateStatus(ev.ID, queue.Status(ev.Status), ev.Error)

	title := ev.Title
	if title == "" {
		title = job.Title
	}
	owner := ev.UserID
	if owner == "" {
		owner = job.OwnerID
	}
	kind := notify.KindReady
	if ev.Status == domain.StoryStatusError {
		kind = notify.KindError
	}
	w.dispatcher.Notify(ctx, kind, owner, title, ev.ID)
}
