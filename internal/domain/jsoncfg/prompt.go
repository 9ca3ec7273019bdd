package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StoryCharacter describes one child appearing in the story.
type StoryCharacter struct {
	ChildID   string   `json:"child_id"`
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Interests []string `json:"interests,omitempty"`
	TeddyName string   `json:"teddy_name,omitempty"`
}

// ExtrasConfig carries optional generation preferences.
type ExtrasConfig struct {
	Locale   string `json:"locale"`
	Duration string `json:"duration"`
	Voice    string `json:"voice,omitempty"`
}

// PromptJSON is the canonical contract sent to the generation pipeline and
// persisted next to the story row.
type PromptJSON struct {
	Version    string           `json:"version"`
	Objective  string           `json:"objective"`
	Characters []StoryCharacter `json:"characters"`
	Tone       string           `json:"tone,omitempty"`
	Extras     ExtrasConfig     `json:"extras"`
}

var allowedObjectives = map[string]struct{}{
	"sleep":      {},
	"focus":      {},
	"relax":      {},
	"confidence": {},
	"fun":        {},
}

var allowedDurations = map[string]struct{}{
	"short":  {},
	"medium": {},
	"long":   {},
}

const (
	// DefaultPromptVersion represents the schema version persisted for prompts.
	DefaultPromptVersion = "2025-06"
	// DefaultPromptDuration is applied when the request omits a duration.
	DefaultPromptDuration = "medium"
	// DefaultExtrasLocale is applied when no locale preference is provided.
	DefaultExtrasLocale = "fr"
	// MaxPromptCharacters caps how many children a single story may feature.
	MaxPromptCharacters = 4
)

// Normalize ensures the prompt JSON respects server defaults and limits.
func (p *PromptJSON) Normalize(preferredLocale string) {
	if p == nil {
		return
	}
	if p.Version == "" {
		p.Version = DefaultPromptVersion
	}
	if p.Extras.Duration == "" {
		p.Extras.Duration = DefaultPromptDuration
	}
	if p.Extras.Locale == "" {
		if preferredLocale != "" {
			p.Extras.Locale = preferredLocale
		} else {
			p.Extras.Locale = DefaultExtrasLocale
		}
	}
	if len(p.Characters) > MaxPromptCharacters {
		p.Characters = p.Characters[:MaxPromptCharacters]
	}
}

// Validate ensures the prompt JSON satisfies the required contract before
// persistence or dispatch to the generation pipeline.
func (p PromptJSON) Validate() error {
	if strings.TrimSpace(p.Objective) == "" {
		return fmt.Errorf("objective is required")
	}
	if _, ok := allowedObjectives[p.Objective]; !ok {
		return fmt.Errorf("objective must be one of sleep, focus, relax, confidence, fun")
	}
	if len(p.Characters) == 0 {
		return fmt.Errorf("at least one character is required")
	}
	if len(p.Characters) > MaxPromptCharacters {
		return fmt.Errorf("at most %d characters are allowed", MaxPromptCharacters)
	}
	for i, c := range p.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("characters[%d].name is required", i)
		}
	}
	if _, ok := allowedDurations[p.Extras.Duration]; p.Extras.Duration != "" && !ok {
		return fmt.Errorf("duration must be one of short, medium, long")
	}
	return nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
