package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	sent []Payload
	fail bool
}

func (s *recordingSender) Send(ctx context.Context, p Payload) error {
	if s.fail {
		return errors.New("sender unavailable")
	}
	s.sent = append(s.sent, p)
	return nil
}

func TestNotifyPrefersFirstSender(t *testing.T) {
	primary := &recordingSender{}
	fallback := &recordingSender{}
	d := NewDispatcher(zerolog.Nop(), primary, fallback)

	d.Notify(context.Background(), KindReady, "user-1", "Le Petit Renard", "story-1")

	if len(primary.sent) != 1 {
		t.Fatalf("primary sent %d, want 1", len(primary.sent))
	}
	if len(fallback.sent) != 0 {
		t.Fatalf("fallback sent %d, want 0", len(fallback.sent))
	}
	p := primary.sent[0]
	if p.Owner != "user-1" {
		t.Fatalf("Owner = %q", p.Owner)
	}
	if p.Title != "Le Petit Renard" {
		t.Fatalf("Title = %q", p.Title)
	}
	if p.Data.ContextID != "story-1" {
		t.Fatalf("ContextID = %q", p.Data.ContextID)
	}
	if p.Tag != "ready:story-1" {
		t.Fatalf("Tag = %q", p.Tag)
	}
}

func TestNotifyFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &recordingSender{fail: true}
	fallback := &recordingSender{}
	d := NewDispatcher(zerolog.Nop(), primary, fallback)

	d.Notify(context.Background(), KindError, "user-1", "Le Petit Renard", "story-1")

	if len(fallback.sent) != 1 {
		t.Fatalf("fallback sent %d, want 1", len(fallback.sent))
	}
}

func TestNotifyAllSendersFailingIsSwallowed(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), &recordingSender{fail: true}, &recordingSender{fail: true})
	// Must not panic or propagate.
	d.Notify(context.Background(), KindGeneralUpdate, "user-1", "Calmiverse", "story-1")
}

func TestNotifyDeduplicatesReadyPerContext(t *testing.T) {
	sink := &recordingSender{}
	d := NewDispatcher(zerolog.Nop(), sink)

	d.Notify(context.Background(), KindReady, "user-1", "Le Petit Renard", "story-1")
	d.Notify(context.Background(), KindReady, "user-1", "Le Petit Renard", "story-1")
	d.Notify(context.Background(), KindReady, "user-1", "La Lune Bleue", "story-2")

	if len(sink.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sink.sent))
	}
}

func TestNotifyErrorKindNotDeduplicated(t *testing.T) {
	sink := &recordingSender{}
	d := NewDispatcher(zerolog.Nop(), sink)

	d.Notify(context.Background(), KindError, "user-1", "Histoire", "story-1")
	d.Notify(context.Background(), KindError, "user-1", "Histoire", "story-1")

	if len(sink.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sink.sent))
	}
}

func TestPushSenderPostsPayload(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewPushSender(srv.URL, srv.Client())
	if err := s.Send(context.Background(), Payload{Title: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPushSenderUnconfiguredFails(t *testing.T) {
	s := NewPushSender("", nil)
	if err := s.Send(context.Background(), Payload{}); err == nil {
		t.Fatalf("Send should fail without a webhook URL")
	}
}

func TestFeedBoundedNewestFirst(t *testing.T) {
	f := NewFeed(2)
	for _, id := range []string{"a", "b", "c"} {
		if err := f.Send(context.Background(), Payload{Data: PayloadData{ContextID: id}}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	items := f.Recent("", 10)
	if len(items) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(items))
	}
	if items[0].Payload.Data.ContextID != "c" || items[1].Payload.Data.ContextID != "b" {
		t.Fatalf("Recent order = [%s %s], want [c b]", items[0].Payload.Data.ContextID, items[1].Payload.Data.ContextID)
	}
}

func TestFeedScopedByOwner(t *testing.T) {
	f := NewFeed(10)
	for _, p := range []Payload{
		{Owner: "user-1", Data: PayloadData{ContextID: "s1"}},
		{Owner: "user-2", Data: PayloadData{ContextID: "s2"}},
		{Owner: "user-1", Data: PayloadData{ContextID: "s3"}},
	} {
		if err := f.Send(context.Background(), p); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	items := f.Recent("user-1", 10)
	if len(items) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Payload.Owner != "user-1" {
			t.Fatalf("leaked item for owner %q", it.Payload.Owner)
		}
	}
	if items[0].Payload.Data.ContextID != "s3" || items[1].Payload.Data.ContextID != "s1" {
		t.Fatalf("Recent order = [%s %s], want [s3 s1]", items[0].Payload.Data.ContextID, items[1].Payload.Data.ContextID)
	}
	if got := len(f.Recent("user-3", 10)); got != 0 {
		t.Fatalf("Recent for unknown owner = %d items, want 0", got)
	}
}
