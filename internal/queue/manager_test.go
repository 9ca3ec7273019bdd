package queue

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	seed  []Job
	saved [][]Job
}

func (f *fakeStore) Load() []Job { return f.seed }

func (f *fakeStore) Save(jobs []Job) {
	f.saved = append(f.saved, jobs)
}

func testInput(id string) Input {
	return Input{
		ID:      id,
		Title:   "Histoire en cours",
		OwnerID: "parent-1",
		Payload: json.RawMessage(`{"objective":"sleep"}`),
	}
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	return NewManager(store, zerolog.Nop(), cfg), store
}

func TestEnqueueValidatesInput(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	if _, err := m.Enqueue(Input{Payload: json.RawMessage(`{}`)}); err == nil {
		t.Fatalf("Enqueue without owner should fail")
	}
	if _, err := m.Enqueue(Input{OwnerID: "parent-1"}); err == nil {
		t.Fatalf("Enqueue without payload should fail")
	}
}

func TestEnqueueDedupesByID(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	id, err := m.Enqueue(testInput("job-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	again, err := m.Enqueue(testInput("job-1"))
	if err != nil {
		t.Fatalf("Enqueue duplicate: %v", err)
	}
	if again != id {
		t.Fatalf("duplicate enqueue returned %q, want %q", again, id)
	}
	if got := len(m.All()); got != 1 {
		t.Fatalf("len(All()) = %d, want 1", got)
	}
}

func TestEnqueueGeneratesID(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	id, err := m.Enqueue(Input{OwnerID: "parent-1", Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatalf("Enqueue returned empty id")
	}
	if _, ok := m.Get(id); !ok {
		t.Fatalf("Get(%q) not found", id)
	}
}

func TestMonotonicTransitions(t *testing.T) {
	m, _ := newTestManager(t, Config{RemoveDelay: time.Hour})

	id, _ := m.Enqueue(testInput("job-1"))
	m.UpdateStatus(id, StatusCompleted, "")

	m.UpdateStatus(id, StatusError, "boom")
	m.UpdateStatus(id, StatusPending, "")

	job, ok := m.Get(id)
	if !ok {
		t.Fatalf("job missing after terminal transition")
	}
	if job.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", job.Status, StatusCompleted)
	}
	if job.Error != "" {
		t.Fatalf("Error = %q, want empty", job.Error)
	}
}

func TestUpdateStatusUnknownJobIsNoOp(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	m.UpdateStatus("missing", StatusCompleted, "")
	if got := len(m.All()); got != 0 {
		t.Fatalf("len(All()) = %d, want 0", got)
	}
}

func TestCapacityBoundEvictsTerminalFirst(t *testing.T) {
	m, _ := newTestManager(t, Config{Capacity: 3, RemoveDelay: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := m.Enqueue(testInput(fmt.Sprintf("job-%d", i))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	m.UpdateStatus("job-1", StatusError, "failed")

	if _, err := m.Enqueue(testInput("job-3")); err != nil {
		t.Fatalf("Enqueue over capacity: %v", err)
	}
	if got := len(m.All()); got != 3 {
		t.Fatalf("len(All()) = %d, want 3", got)
	}
	if _, ok := m.Get("job-1"); ok {
		t.Fatalf("terminal job-1 should have been evicted")
	}
	if _, ok := m.Get("job-0"); !ok {
		t.Fatalf("active job-0 should have been retained")
	}
}

func TestCapacityBoundEvictsOldestWhenAllActive(t *testing.T) {
	m, _ := newTestManager(t, Config{Capacity: 2})

	m.Enqueue(testInput("job-0"))
	m.Enqueue(testInput("job-1"))
	m.Enqueue(testInput("job-2"))

	if got := len(m.All()); got != 2 {
		t.Fatalf("len(All()) = %d, want 2", got)
	}
	if _, ok := m.Get("job-0"); ok {
		t.Fatalf("oldest job-0 should have been evicted")
	}
}

func TestPromotePendingBounded(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	for i := 0; i < 5; i++ {
		m.Enqueue(testInput(fmt.Sprintf("job-%d", i)))
	}
	if got := len(m.Processing()); got != maxProcessing {
		t.Fatalf("len(Processing()) = %d, want %d", got, maxProcessing)
	}
	if got := len(m.Pending()); got != 5-maxProcessing {
		t.Fatalf("len(Pending()) = %d, want %d", got, 5-maxProcessing)
	}
}

func TestOfflineEnqueueStaysPendingUntilOnline(t *testing.T) {
	m, _ := newTestManager(t, Config{Offline: true})

	m.Enqueue(testInput("job-0"))
	if got := len(m.Processing()); got != 0 {
		t.Fatalf("len(Processing()) = %d, want 0 while offline", got)
	}

	m.SetOnline(true)
	if got := len(m.Processing()); got != 1 {
		t.Fatalf("len(Processing()) = %d, want 1 after going online", got)
	}
}

func TestTerminalJobRemovedAfterGraceDelay(t *testing.T) {
	m, _ := newTestManager(t, Config{RemoveDelay: 10 * time.Millisecond})

	id, _ := m.Enqueue(testInput("job-1"))
	m.UpdateStatus(id, StatusCompleted, "")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := m.Get(id); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still present after grace delay")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCleanupSweepsStaleTerminalKeepsActive(t *testing.T) {
	old := time.Now().Add(-25 * time.Hour)
	store := &fakeStore{seed: []Job{
		{ID: "done-old", OwnerID: "parent-1", Status: StatusCompleted, CreatedAt: old, UpdatedAt: old},
		{ID: "pending-old", OwnerID: "parent-1", Status: StatusPending, CreatedAt: old, UpdatedAt: old},
		{ID: "done-fresh", OwnerID: "parent-1", Status: StatusCompleted, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}
	m := NewManager(store, zerolog.Nop(), Config{})

	m.Cleanup()

	if _, ok := m.Get("done-old"); ok {
		t.Fatalf("stale terminal job should be swept")
	}
	if _, ok := m.Get("pending-old"); !ok {
		t.Fatalf("active job should survive the hard-age sweep")
	}
	if _, ok := m.Get("done-fresh"); !ok {
		t.Fatalf("fresh terminal job should survive")
	}
}

func TestCleanupSweepsIdleTerminal(t *testing.T) {
	idle := time.Now().Add(-10 * time.Minute)
	store := &fakeStore{seed: []Job{
		{ID: "done-idle", OwnerID: "parent-1", Status: StatusError, CreatedAt: idle, UpdatedAt: idle},
	}}
	m := NewManager(store, zerolog.Nop(), Config{})

	m.Cleanup()

	if _, ok := m.Get("done-idle"); ok {
		t.Fatalf("idle terminal job should be swept")
	}
}

func TestSubscriberIsolation(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	var secondCalled bool
	m.Subscribe(func() { panic("first subscriber blew up") })
	m.Subscribe(func() { secondCalled = true })

	if _, err := m.Enqueue(testInput("job-1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !secondCalled {
		t.Fatalf("second subscriber not invoked after first panicked")
	}
}

func TestSubscribersFireInRegistrationOrder(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	var order []int
	m.Subscribe(func() { order = append(order, 1) })
	m.Subscribe(func() { order = append(order, 2) })
	m.Subscribe(func() { order = append(order, 3) })

	m.Enqueue(testInput("job-1"))

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("notification order = %v, want [1 2 3]", order)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	calls := 0
	id := m.Subscribe(func() { calls++ })

	m.Enqueue(testInput("job-1"))
	m.Unsubscribe(id)
	m.Enqueue(testInput("job-2"))

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRecordRetry(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	id, _ := m.Enqueue(testInput("job-1"))
	if got := m.RecordRetry(id); got != 1 {
		t.Fatalf("RecordRetry = %d, want 1", got)
	}
	if got := m.RecordRetry(id); got != 2 {
		t.Fatalf("RecordRetry = %d, want 2", got)
	}
	job, _ := m.Get(id)
	if job.RetryCount != 2 {
		t.Fatalf("RetryCount = %d, want 2", job.RetryCount)
	}
}

func TestEveryMutationPersists(t *testing.T) {
	m, store := newTestManager(t, Config{RemoveDelay: time.Hour})

	id, _ := m.Enqueue(testInput("job-1"))
	m.UpdateStatus(id, StatusProcessing, "")
	m.Remove(id)

	if got := len(store.saved); got != 3 {
		t.Fatalf("store.Save called %d times, want 3", got)
	}
	if last := store.saved[len(store.saved)-1]; len(last) != 0 {
		t.Fatalf("final snapshot has %d jobs, want 0", len(last))
	}
}
