package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// PushSender posts payloads to a notification webhook (the push-delivery
// service in front of the mobile/web clients).
type PushSender struct {
	url        string
	httpClient *http.Client
}

// NewPushSender builds a push sender. An empty URL yields a sender that
// always fails, pushing delivery down the fallback chain.
func NewPushSender(url string, httpClient *http.Client) *PushSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PushSender{url: url, httpClient: httpClient}
}

func (s *PushSender) Send(ctx context.Context, p Payload) error {
	if s.url == "" {
		return errors.New("notify: push webhook not configured")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: push webhook status %d", resp.StatusCode)
	}
	return nil
}

// FeedItem is one in-app notification.
type FeedItem struct {
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed is the in-app toast fallback: a bounded in-memory list the API exposes
// so clients without push delivery still see terminal transitions.
type Feed struct {
	mu    sync.Mutex
	items []FeedItem
	limit int
}

// NewFeed creates a feed retaining at most limit items.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{limit: limit}
}

func (f *Feed) Send(ctx context.Context, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, FeedItem{Payload: p, CreatedAt: time.Now()})
	if len(f.items) > f.limit {
		f.items = f.items[len(f.items)-f.limit:]
	}
	return nil
}

// Recent returns up to n of the owner's items, newest first. An empty
// ownerID matches every item.
func (f *Feed) Recent(ownerID string, n int) []FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 {
		n = len(f.items)
	}
	out := make([]FeedItem, 0, n)
	for i := len(f.items) - 1; i >= 0 && len(out) < n; i-- {
		if ownerID != "" && f.items[i].Payload.Owner != ownerID {
			continue
		}
		out = append(out, f.items[i])
	}
	return out
}
