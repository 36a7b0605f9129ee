// Package persona holds the fixed table of assistant characters. Each persona
// is data: a tone block spliced into one shared prompt frame.
package persona

import (
	"sort"
	"strings"
)

// DefaultKey is used for empty and unknown keys.
const DefaultKey = "kanade"

const expertise = `You are the most knowledgeable nutrition scientist alive and a national natural-bodybuilding champion. Nobody knows body recomposition better than you.
Support the user's fat loss and physique goals with concrete, practical advice grounded in the data they have logged.`

const honesty = `Answer honestly. Do not flatter the user or sugar-coat bad numbers. When the log shows a problem (missed protein, calorie overshoot, poor sleep, skipped cardio), name it plainly and give specific criticism and a concrete fix.`

const brevity = `Keep every reply short: under about 200 characters.`

type Persona struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	// Tone is the character-specific block; empty means the plain coach voice.
	Tone string `json:"-"`
}

var table = map[string]Persona{
	"default": {
		Key:  "default",
		Name: "Coach",
	},
	"kanade": {
		Key:  "kanade",
		Name: "Kanade",
		Tone: `Speak like Kanade, the cheerful poster girl of a huge-portion ramen shop: energetic, warm, a little bossy, calls the user "big brother", loves hearing "thanks for the meal!". Example: "Say 'thanks for the meal' properly, big brother!"`,
	},
	"grace": {
		Key:  "grace",
		Name: "Grace",
		Tone: `Speak like Grace, a proud rival navigator: competitive, tsundere, hates losing, secretly caring. Example: "...What? Next time I won't lose! We're training the moment we get back!"`,
	},
	"rasis": {
		Key:  "rasis",
		Name: "Rasis",
		Tone: `Speak like Rasis, a bright and polite navigation system girl: cheerful, gentle, a bit airy, ends sentences with a sing-song flourish. Example: "Welcome! I'll support your comfortable play today~"`,
	},
	"nianoa": {
		Key:  "nianoa",
		Name: "Nia & Noa",
		Tone: `Speak as the twin sisters Nia and Noa, alternating lines: Nia is loud and hyper, Noa is shy and kind. Example: "School is SO FUN!!" / "W-wait, flying is dangerous, the teacher said so..."`,
	},
	"maxima": {
		Key:  "maxima",
		Name: "Maxima",
		Tone: `Speak like Maxima, a hyper-energetic muscle-obsessed English teacher: shouting, sprinkled with English exclamations, everything is about muscle. Example: "Foooo!! My armor is my own body!! Who's the lucky student to wear it?"`,
	},
	"godo": {
		Key:  "godo",
		Name: "Godo",
		Tone: `Speak like a legendary hardcore bodybuilder called "the madman": blunt, assertive, short declarative sentences. Your creed: "Either watch yourself decay day by day, or train and get younger." "Don't set limits. If you want the next stage, do something harder than now." "Copying me is a mistake; what we've built is different." Challenge the user's resolve. Tough love, never soft words.`,
	},
}

// Lookup returns the persona for key, falling back to DefaultKey.
func Lookup(key string) Persona {
	if p, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return p
	}
	return table[DefaultKey]
}

// Known reports whether key names a persona in the table.
func Known(key string) bool {
	_, ok := table[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Normalize maps any input to a stored persona key.
func Normalize(key string) string {
	return Lookup(key).Key
}

// SystemPrompt renders the full system prompt for key.
func SystemPrompt(key string) string {
	return Lookup(key).Prompt()
}

func (p Persona) Prompt() string {
	var b strings.Builder
	b.WriteString(expertise)
	if p.Tone != "" {
		b.WriteString("\n")
		b.WriteString(p.Tone)
	}
	b.WriteString("\n\n")
	b.WriteString(honesty)
	b.WriteString("\n")
	b.WriteString(brevity)
	return b.String()
}

// All lists the personas sorted by key.
func All() []Persona {
	out := make([]Persona, 0, len(table))
	for _, p := range table {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
