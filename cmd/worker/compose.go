package main

import (
	"fmt"
	"strings"

	"calmiverse/internal/domain/jsoncfg"
)

// paragraph counts per requested duration.
var durationParagraphs = map[string]int{
	"short":  3,
	"medium": 5,
	"long":   8,
}

var objectiveThemes = map[string]map[string]string{
	"fr": {
		"sleep":      "le pays des rêves",
		"focus":      "le jardin du calme",
		"relax":      "la clairière paisible",
		"confidence": "la montagne du courage",
		"fun":        "la fête de la forêt",
	},
	"en": {
		"sleep":      "the land of dreams",
		"focus":      "the garden of calm",
		"relax":      "the peaceful glade",
		"confidence": "the mountain of courage",
		"fun":        "the forest festival",
	},
}

// composeStory builds the bedtime story deterministically from the prompt.
// This is the built-in pipeline used when no external generation workflow is
// wired; the narration pacing and structure is what matters, not literary
// flair.
func composeStory(prompt jsoncfg.PromptJSON) (string, string) {
	lang := "fr"
	if strings.HasPrefix(strings.ToLower(prompt.Extras.Locale), "en") {
		lang = "en"
	}

	names := make([]string, 0, len(prompt.Characters))
	for _, c := range prompt.Characters {
		names = append(names, c.Name)
	}
	hero := "notre ami"
	if lang == "en" {
		hero = "our friend"
	}
	if len(names) > 0 {
		hero = joinNames(names, lang)
	}

	theme := objectiveThemes[lang][prompt.Objective]
	if theme == "" {
		theme = objectiveThemes[lang]["sleep"]
	}

	var title string
	if lang == "en" {
		title = fmt.Sprintf("%s and %s", hero, theme)
	} else {
		title = fmt.Sprintf("%s et %s", hero, theme)
	}

	count := durationParagraphs[prompt.Extras.Duration]
	if count == 0 {
		count = durationParagraphs["medium"]
	}

	paragraphs := make([]string, 0, count)
	paragraphs = append(paragraphs, opening(prompt, hero, theme, lang))
	for i := len(paragraphs); i < count-1; i++ {
		paragraphs = append(paragraphs, middle(prompt, hero, lang, i))
	}
	paragraphs = append(paragraphs, closing(hero, lang))

	return title, strings.Join(paragraphs, "\n\n")
}

func joinNames(names []string, lang string) string {
	and := " et "
	if lang == "en" {
		and = " and "
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + and + names[len(names)-1]
}

func opening(prompt jsoncfg.PromptJSON, hero, theme, lang string) string {
	if lang == "en" {
		return fmt.Sprintf("Once upon a time, as the stars began to shine, %s set off on a gentle journey toward %s.", hero, theme)
	}
	return fmt.Sprintf("Il était une fois, alors que les étoiles commençaient à briller, %s qui partait pour un doux voyage vers %s.", hero, theme)
}

func middle(prompt jsoncfg.PromptJSON, hero, lang string, step int) string {
	var character jsoncfg.StoryCharacter
	if len(prompt.Characters) > 0 {
		character = prompt.Characters[step%len(prompt.Characters)]
	}
	if character.Name == "" {
		character.Name = hero
	}
	interest := ""
	if len(character.Interests) > 0 {
		interest = character.Interests[step%len(character.Interests)]
	}

	if lang == "en" {
		if character.TeddyName != "" && step%2 == 1 {
			return fmt.Sprintf("%s hugged %s tightly, and together they listened to the quiet song of the night.", character.Name, character.TeddyName)
		}
		if interest != "" {
			return fmt.Sprintf("Along the way, %s discovered a world made of %s, soft and glowing under the moon.", character.Name, interest)
		}
		return fmt.Sprintf("Step by step, %s breathed slowly and felt lighter and lighter.", hero)
	}

	if character.TeddyName != "" && step%2 == 1 {
		return fmt.Sprintf("%s serrait %s très fort, et ensemble ils écoutaient la chanson tranquille de la nuit.", character.Name, character.TeddyName)
	}
	if interest != "" {
		return fmt.Sprintf("En chemin, %s découvrit un monde fait de %s, doux et lumineux sous la lune.", character.Name, interest)
	}
	return fmt.Sprintf("Pas à pas, %s respirait lentement et se sentait de plus en plus léger.", hero)
}

func closing(hero, lang string) string {
	if lang == "en" {
		return fmt.Sprintf("And when the moon smiled one last time, %s closed their eyes, wrapped in warmth, ready for the sweetest of dreams.", hero)
	}
	return fmt.Sprintf("Et quand la lune sourit une dernière fois, %s ferma les yeux, enveloppé de douceur, prêt pour le plus beau des rêves.", hero)
}
