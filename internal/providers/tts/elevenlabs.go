package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"calmiverse/internal/domain"
	"calmiverse/internal/infra"
)

// Options controls how the ElevenLabs client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Voice      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client provides a facade over the ElevenLabs text-to-speech API. When no
// API key is configured, or the remote call fails, it falls back to a
// deterministic synthetic audio asset so the rest of the pipeline (storage,
// DB persistence, downloads) stays fully operational in local and CI
// environments.
type Client struct {
	apiKey     string
	baseURL    string
	voice      string
	httpClient *http.Client
	logger     *infra.Logger
}

// SpeechRequest carries the narration to synthesize.
type SpeechRequest struct {
	Text      string
	Locale    string
	Voice     string
	RequestID string
}

// AudioAsset is the normalized representation of synthesized narration.
type AudioAsset struct {
	StorageKey string
	Format     string
	Seconds    int
	Data       []byte
}

// Named voices shipped by default; anything else is treated as a raw
// ElevenLabs voice id.
var voiceIDs = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"george":    "JBFqnCBsd6RMkjVDRZzb",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
}

type speechPayload struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type apiErrorResponse struct {
	Detail struct {
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"detail"`
}

// NewClient constructs an ElevenLabs client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with sensible timeouts will be
// created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}

	voice := strings.TrimSpace(opts.Voice)
	if voice == "" {
		voice = "charlotte"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		voice:      voice,
		httpClient: client,
		logger:     logger,
	}
}

// Voice returns the configured default voice name.
func (c *Client) Voice() string {
	return c.voice
}

// Synthesize turns story text into narration audio. The remote API is used
// when an API key is configured; any failure falls back to a synthetic
// asset.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (*AudioAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("tts: empty text")
	}

	if c.apiKey == "" {
		return c.syntheticAudio(req), nil
	}

	asset, err := c.remoteSynthesize(ctx, req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("voice", c.voiceID(req.Voice)).
			Msg("tts: remote synthesis failed; falling back to synthetic audio")
		return c.syntheticAudio(req), nil
	}
	if asset == nil || len(asset.Data) == 0 {
		return c.syntheticAudio(req), nil
	}
	return asset, nil
}

func (c *Client) remoteSynthesize(ctx context.Context, req SpeechRequest) (*AudioAsset, error) {
	payload := speechPayload{
		Text:    req.Text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	voiceID := c.voiceID(req.Voice)
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: invoke elevenlabs: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Detail.Message != "" {
			return nil, fmt.Errorf("%w: elevenlabs status %d: %s", domain.ErrProviderFailure, resp.StatusCode, apiErr.Detail.Message)
		}
		return nil, fmt.Errorf("%w: elevenlabs status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	seed := deterministicSeed(req.RequestID, req.Text, voiceID)
	asset := &AudioAsset{
		StorageKey: fmt.Sprintf("audio/%s/%s.mp3", url.PathEscape(voiceID), seed),
		Format:     "audio/mpeg",
		Seconds:    estimateNarrationSeconds(req.Text),
		Data:       data,
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("voice", voiceID).
		Int("bytes", len(data)).
		Msg("tts: synthesized remote narration")

	return asset, nil
}

func (c *Client) syntheticAudio(req SpeechRequest) *AudioAsset {
	voiceID := c.voiceID(req.Voice)
	seed := deterministicSeed(req.RequestID, req.Text, voiceID)
	asset := &AudioAsset{
		StorageKey: fmt.Sprintf("audio/%s/%s.wav", url.PathEscape(voiceID), seed),
		Format:     "audio/wav",
		Seconds:    estimateNarrationSeconds(req.Text),
		Data:       renderSyntheticAudio(seed),
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("voice", voiceID).
		Msg("tts: generated synthetic narration asset")

	return asset
}

func (c *Client) voiceID(requested string) string {
	name := strings.TrimSpace(strings.ToLower(requested))
	if name == "" {
		name = strings.ToLower(c.voice)
	}
	if id, ok := voiceIDs[name]; ok {
		return id
	}
	return requested
}

// renderSyntheticAudio emits a short valid PCM WAV tone whose pitch derives
// from the seed.
func renderSyntheticAudio(seed string) []byte {
	const (
		sampleRate = 8000
		seconds    = 2
	)
	freq := 220.0
	if len(seed) >= 2 {
		freq += float64(seed[0]%8)*55 + float64(seed[1]%4)*27.5
	}

	samples := sampleRate * seconds
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		binary.Write(&buf, binary.LittleEndian, int16(v*12000))
	}
	return buf.Bytes()
}

// estimateNarrationSeconds approximates read-aloud duration at a calm
// bedtime pace of roughly two words per second.
func estimateNarrationSeconds(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 5
	}
	seconds := words / 2
	if seconds < 5 {
		return 5
	}
	return seconds
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
