package tts

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"calmiverse/internal/domain"
)

func TestSynthesizeWithoutAPIKey(t *testing.T) {
	client := NewClient(Options{})

	asset, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:      "Il était une fois un petit renard très curieux.",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if asset.Format != "audio/wav" {
		t.Fatalf("expected wav fallback, got %q", asset.Format)
	}
	if !bytes.HasPrefix(asset.Data, []byte("RIFF")) {
		t.Fatal("expected RIFF header in synthetic audio")
	}

	again, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:      "Il était une fois un petit renard très curieux.",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if again.StorageKey != asset.StorageKey || !bytes.Equal(again.Data, asset.Data) {
		t.Fatal("synthetic audio must be deterministic for identical requests")
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Synthesize(context.Background(), SpeechRequest{Text: "  "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesizeRemote(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "xi-secret", BaseURL: srv.URL, Voice: "charlotte"})
	asset, err := client.Synthesize(context.Background(), SpeechRequest{Text: "Bonne nuit", RequestID: "req-2"})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if gotKey != "xi-secret" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if want := "/v1/text-to-speech/" + voiceIDs["charlotte"]; gotPath != want {
		t.Fatalf("path = %q, want %q", gotPath, want)
	}
	if asset.Format != "audio/mpeg" || string(asset.Data) != "mp3-bytes" {
		t.Fatalf("unexpected asset: format=%q data=%q", asset.Format, asset.Data)
	}
}

func TestSynthesizeRemoteFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":{"status":"quota_exceeded","message":"out of credits"}}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "xi-secret", BaseURL: srv.URL})
	asset, err := client.Synthesize(context.Background(), SpeechRequest{Text: "Bonne nuit", RequestID: "req-3"})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if asset.Format != "audio/wav" {
		t.Fatalf("expected synthetic fallback, got %q", asset.Format)
	}
}

func TestRemoteSynthesizeClassifiesProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":{"status":"quota_exceeded","message":"out of credits"}}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "xi-secret", BaseURL: srv.URL})
	_, err := client.remoteSynthesize(context.Background(), SpeechRequest{Text: "Bonne nuit", RequestID: "req-4"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want provider failure", err)
	}
	if !strings.Contains(err.Error(), "out of credits") {
		t.Fatalf("err %q should carry the provider message", err)
	}
}

func TestEstimateNarrationSeconds(t *testing.T) {
	if got := estimateNarrationSeconds(""); got != 5 {
		t.Fatalf("empty text = %d, want 5", got)
	}
	if got := estimateNarrationSeconds(strings.Repeat("mot ", 120)); got != 60 {
		t.Fatalf("120 words = %d, want 60", got)
	}
}
