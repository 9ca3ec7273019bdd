package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultCapacity bounds the number of tracked jobs.
	DefaultCapacity = 50
	// DefaultMaxRetries bounds automatic resubmission of a single job.
	DefaultMaxRetries = 3

	// maxProcessing limits how many jobs are flagged processing at once.
	maxProcessing = 3

	defaultRemoveDelay    = 5 * time.Second
	terminalRetention     = 24 * time.Hour
	terminalIdleRetention = 5 * time.Minute
)

var (
	errOwnerRequired   = errors.New("queue: owner is required")
	errPayloadRequired = errors.New("queue: payload is required")
)

// Subscriber is a zero-argument change listener.
type Subscriber func()

// Config tunes a Manager. Zero values fall back to defaults.
type Config struct {
	Capacity    int
	RemoveDelay time.Duration
	Offline     bool
}

// Manager is the single in-process authority over job lifecycle transitions.
// All mutations run to completion under one mutex; subscriber callbacks and
// snapshot writes happen outside it.
type Manager struct {
	mu      sync.Mutex
	jobs    []Job
	subs    []subscription
	nextSub int
	timers  map[string]*time.Timer
	online  bool

	capacity    int
	removeDelay time.Duration
	store       Store
	logger      zerolog.Logger
}

type subscription struct {
	id int
	fn Subscriber
}

// NewManager constructs a manager seeded from the store snapshot.
func NewManager(store Store, logger zerolog.Logger, cfg Config) *Manager {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.RemoveDelay <= 0 {
		cfg.RemoveDelay = defaultRemoveDelay
	}
	m := &Manager{
		timers:      make(map[string]*time.Timer),
		online:      !cfg.Offline,
		capacity:    cfg.Capacity,
		removeDelay: cfg.RemoveDelay,
		store:       store,
		logger:      logger,
	}
	if store != nil {
		m.jobs = append(m.jobs, store.Load()...)
	}
	return m
}

// Enqueue registers a new job and returns its id. Submitting an id that is
// already tracked is a no-op returning the existing id.
func (m *Manager) Enqueue(input Input) (string, error) {
	if input.OwnerID == "" {
		return "", errOwnerRequired
	}
	if len(input.Payload) == 0 {
		return "", errPayloadRequired
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if existing := m.find(id); existing != nil {
		m.mu.Unlock()
		m.logger.Debug().Str("job_id", id).Msg("queue: duplicate enqueue ignored")
		return id, nil
	}

	m.evictForCapacityLocked()

	now := time.Now()
	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	title := input.Title
	if title == "" {
		title = "Histoire en cours"
	}
	m.jobs = append(m.jobs, Job{
		ID:         id,
		Title:      title,
		OwnerID:    input.OwnerID,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		Payload:    input.Payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if m.online {
		m.promotePendingLocked()
	}
	m.commitLocked()

	m.logger.Info().Str("job_id", id).Str("owner_id", input.OwnerID).Msg("queue: job enqueued")
	return id, nil
}

// UpdateStatus applies a lifecycle transition. Transitions out of a terminal
// state are warning-logged no-ops; reaching a terminal state schedules removal
// after the configured grace delay.
func (m *Manager) UpdateStatus(id string, status Status, errMsg string) {
	m.mu.Lock()
	job := m.find(id)
	if job == nil {
		m.mu.Unlock()
		m.logger.Warn().Str("job_id", id).Msg("queue: update for unknown job ignored")
		return
	}
	if job.Status.IsTerminal() {
		m.mu.Unlock()
		m.logger.Warn().
			Str("job_id", id).
			Str("from", string(job.Status)).
			Str("to", string(status)).
			Msg("queue: transition out of terminal state ignored")
		return
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	if status.IsTerminal() {
		m.scheduleRemovalLocked(id)
	}
	m.commitLocked()

	m.logger.Info().Str("job_id", id).Str("status", string(status)).Msg("queue: job transitioned")
}

// Rename updates the display title of a tracked job, typically when the
// server supplies the final story title.
func (m *Manager) Rename(id, title string) {
	if title == "" {
		return
	}
	m.mu.Lock()
	job := m.find(id)
	if job == nil {
		m.mu.Unlock()
		return
	}
	job.Title = title
	job.UpdatedAt = time.Now()
	m.commitLocked()
}

// RecordRetry increments the retry counter and returns the new count.
func (m *Manager) RecordRetry(id string) int {
	m.mu.Lock()
	job := m.find(id)
	if job == nil {
		m.mu.Unlock()
		return 0
	}
	job.RetryCount++
	job.UpdatedAt = time.Now()
	count := job.RetryCount
	m.commitLocked()
	return count
}

// Remove drops a job from tracking.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	kept := m.jobs[:0]
	removed := false
	for _, j := range m.jobs {
		if j.ID == id {
			removed = true
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	if !removed {
		m.mu.Unlock()
		return
	}
	m.commitLocked()
}

// Cleanup sweeps terminal records that outlived their retention. Active jobs
// are exempt; the snapshot envelope TTL caps their age across restarts. The
// composition root invokes this on a fixed interval.
func (m *Manager) Cleanup() {
	now := time.Now()
	m.mu.Lock()
	kept := m.jobs[:0]
	changed := false
	for _, j := range m.jobs {
		if j.Status.IsTerminal() &&
			(now.Sub(j.UpdatedAt) > terminalIdleRetention || now.Sub(j.CreatedAt) > terminalRetention) {
			changed = true
			if t, ok := m.timers[j.ID]; ok {
				t.Stop()
				delete(m.timers, j.ID)
			}
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	if !changed {
		m.mu.Unlock()
		return
	}
	m.commitLocked()
}

// SetOnline toggles connectivity. Going online promotes pending jobs to
// processing up to the concurrency bound.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	if online {
		m.promotePendingLocked()
	}
	m.commitLocked()
}

// Subscribe registers a change listener and returns its handle. Listeners
// fire in registration order after each accepted mutation.
func (m *Manager) Subscribe(fn Subscriber) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	m.subs = append(m.subs, subscription{id: m.nextSub, fn: fn})
	return m.nextSub
}

// Unsubscribe removes a previously registered listener.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subs[:0]
	for _, s := range m.subs {
		if s.id == id {
			continue
		}
		kept = append(kept, s)
	}
	m.subs = kept
}

// Get returns a copy of one job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.find(id); j != nil {
		return *j, true
	}
	return Job{}, false
}

// All returns a copy of every tracked job in insertion order.
func (m *Manager) All() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Pending returns jobs awaiting processing.
func (m *Manager) Pending() []Job {
	return m.filter(StatusPending)
}

// Processing returns jobs flagged as in flight.
func (m *Manager) Processing() []Job {
	return m.filter(StatusProcessing)
}

func (m *Manager) filter(status Status) []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out
}

func (m *Manager) find(id string) *Job {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return &m.jobs[i]
		}
	}
	return nil
}

// promotePendingLocked flags pending jobs as processing up to the bound. The
// actual remote work is driven elsewhere; this only reflects activity to
// readers.
func (m *Manager) promotePendingLocked() {
	active := 0
	for _, j := range m.jobs {
		if j.Status == StatusProcessing {
			active++
		}
	}
	for i := range m.jobs {
		if active >= maxProcessing {
			return
		}
		if m.jobs[i].Status == StatusPending {
			m.jobs[i].Status = StatusProcessing
			m.jobs[i].UpdatedAt = time.Now()
			active++
		}
	}
}

// evictForCapacityLocked makes room for one more job, dropping the oldest
// terminal records first and the oldest record outright as a last resort.
func (m *Manager) evictForCapacityLocked() {
	for len(m.jobs) >= m.capacity {
		victim := -1
		for i, j := range m.jobs {
			if j.Status.IsTerminal() {
				victim = i
				break
			}
		}
		if victim == -1 {
			victim = 0
		}
		id := m.jobs[victim].ID
		if t, ok := m.timers[id]; ok {
			t.Stop()
			delete(m.timers, id)
		}
		m.jobs = append(m.jobs[:victim], m.jobs[victim+1:]...)
		m.logger.Debug().Str("job_id", id).Msg("queue: evicted for capacity")
	}
}

func (m *Manager) scheduleRemovalLocked(id string) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.timers[id] = time.AfterFunc(m.removeDelay, func() {
		m.Remove(id)
	})
}

// commitLocked snapshots state, releases the lock, then persists and fans out
// notifications. Callers must hold the lock; it is released on return.
func (m *Manager) commitLocked() {
	snapshot := make([]Job, len(m.jobs))
	copy(snapshot, m.jobs)
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if m.store != nil {
		m.store.Save(snapshot)
	}
	for _, s := range subs {
		m.invoke(s)
	}
}

// invoke isolates one subscriber so a panicking listener cannot starve the
// others.
func (m *Manager) invoke(s subscription) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Interface("panic", r).Int("subscriber", s.id).Msg("queue: subscriber panicked")
		}
	}()
	s.fn()
}
