package jsoncfg

import "testing"

func TestPromptJSONNormalizeDefaults(t *testing.T) {
	p := &PromptJSON{}
	p.Normalize("")

	if p.Version != DefaultPromptVersion {
		t.Fatalf("Version = %q, want %q", p.Version, DefaultPromptVersion)
	}
	if p.Extras.Duration != DefaultPromptDuration {
		t.Fatalf("Extras.Duration = %q, want %q", p.Extras.Duration, DefaultPromptDuration)
	}
	if p.Extras.Locale != DefaultExtrasLocale {
		t.Fatalf("Extras.Locale = %q, want %q", p.Extras.Locale, DefaultExtrasLocale)
	}
}

func TestPromptJSONNormalizePreferredLocaleAndCharacterCap(t *testing.T) {
	characters := make([]StoryCharacter, MaxPromptCharacters+2)
	for i := range characters {
		characters[i] = StoryCharacter{Name: "enfant"}
	}
	p := &PromptJSON{
		Characters: characters,
		Extras:     ExtrasConfig{Duration: "short"},
	}
	p.Normalize("en")

	if len(p.Characters) != MaxPromptCharacters {
		t.Fatalf("len(Characters) = %d, want %d", len(p.Characters), MaxPromptCharacters)
	}
	if p.Extras.Duration != "short" {
		t.Fatalf("Extras.Duration should keep explicit value, got %q", p.Extras.Duration)
	}
	if p.Extras.Locale != "en" {
		t.Fatalf("Extras.Locale = %q, want %q", p.Extras.Locale, "en")
	}
}

func TestPromptJSONValidate(t *testing.T) {
	tests := []struct {
		name    string
		prompt  PromptJSON
		wantErr bool
	}{
		{
			name: "valid",
			prompt: PromptJSON{
				Objective:  "sleep",
				Characters: []StoryCharacter{{Name: "Louise", Age: 5}},
				Extras:     ExtrasConfig{Duration: "medium"},
			},
		},
		{
			name:    "missing objective",
			prompt:  PromptJSON{Characters: []StoryCharacter{{Name: "Louise"}}},
			wantErr: true,
		},
		{
			name:    "unknown objective",
			prompt:  PromptJSON{Objective: "adventure", Characters: []StoryCharacter{{Name: "Louise"}}},
			wantErr: true,
		},
		{
			name:    "no characters",
			prompt:  PromptJSON{Objective: "sleep"},
			wantErr: true,
		},
		{
			name: "unnamed character",
			prompt: PromptJSON{
				Objective:  "relax",
				Characters: []StoryCharacter{{Age: 4}},
			},
			wantErr: true,
		},
		{
			name: "bad duration",
			prompt: PromptJSON{
				Objective:  "relax",
				Characters: []StoryCharacter{{Name: "Louise"}},
				Extras:     ExtrasConfig{Duration: "epic"},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.prompt.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}
