package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRequest() GenerationRequest {
	return GenerationRequest{
		StoryID:   "story-1",
		Owner:     "parent-1",
		Children:  []string{"child-1"},
		Objective: "sleep",
		Prompt:    json.RawMessage(`{"objective":"sleep"}`),
		Language:  "fr",
	}
}

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		Timeout:    time.Second,
		Backoff:    time.Millisecond,
	}
}

func TestStartGenerationSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Owner != "parent-1" {
			t.Errorf("owner = %q, want parent-1", req.Owner)
		}
		json.NewEncoder(w).Encode(map[string]string{"workflow_id": "wf-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), fastConfig(2), zerolog.Nop())
	id, err := c.StartGeneration(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if id != "wf-42" {
		t.Fatalf("workflow id = %q, want wf-42", id)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestStartGenerationRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retries := 0
	cfg := fastConfig(2)
	cfg.OnRetry = func(attempt int, err error) { retries++ }

	c := NewClient(srv.URL, srv.Client(), cfg, zerolog.Nop())
	_, err := c.StartGeneration(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("StartGeneration should fail against permanent 500")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3 (1 initial + 2 retries)", got)
	}
	if retries != 2 {
		t.Fatalf("OnRetry called %d times, want 2", retries)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("error should surface attempt count, got %v", err)
	}
}

func TestStartGenerationDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), fastConfig(3), zerolog.Nop())
	_, err := c.StartGeneration(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("StartGeneration should fail on 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1 (4xx is terminal)", got)
	}
}

func TestStartGenerationRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"workflow_id": "wf-7"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), fastConfig(3), zerolog.Nop())
	id, err := c.StartGeneration(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if id != "wf-7" {
		t.Fatalf("workflow id = %q, want wf-7", id)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestStartGenerationPerAttemptTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := Config{MaxRetries: 1, Timeout: 20 * time.Millisecond, Backoff: time.Millisecond}
	c := NewClient(srv.URL, srv.Client(), cfg, zerolog.Nop())

	start := time.Now()
	_, err := c.StartGeneration(context.Background(), testRequest())
	if err == nil {
		t.Fatalf("StartGeneration should time out")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("timeout did not apply per attempt, elapsed %v", elapsed)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestStartGenerationMissingWorkflowID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := fastConfig(0)
	c := NewClient(srv.URL, srv.Client(), cfg, zerolog.Nop())
	if _, err := c.StartGeneration(context.Background(), testRequest()); err == nil {
		t.Fatalf("StartGeneration should reject a response without workflow_id")
	}
}

func TestStartGenerationSignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"workflow_id":"wf-1"}`))
	}))
	defer srv.Close()

	cfg := fastConfig(0)
	cfg.SigningSecret = "topsecret"
	c := NewClient(srv.URL, srv.Client(), cfg, zerolog.Nop())
	if _, err := c.StartGeneration(context.Background(), testRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if gotSig == "" {
		t.Fatalf("X-Signature header missing")
	}
	if want := sign("topsecret", gotBody); gotSig != want {
		t.Fatalf("signature = %s, want %s", gotSig, want)
	}

	// Without a secret the header stays absent.
	cfg.SigningSecret = ""
	c = NewClient(srv.URL, srv.Client(), cfg, zerolog.Nop())
	if _, err := c.StartGeneration(context.Background(), testRequest()); err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if gotSig != "" {
		t.Fatalf("X-Signature should be empty without a secret, got %s", gotSig)
	}
}
