package dispatcher

import "strings"

// intent is the result of keyword sniffing over free text received
// outside any active flow
type intent int

const (
	intentNone intent = iota
	intentRandom
	intentGPT
	intentTalk
)

// keyword families in priority order: facts first, then questions, then
// dialogue. First matching family wins; matching is substring-based over
// the lowercased text, not longest-match.
var keywordFamilies = []struct {
	intent   intent
	keywords []string
}{
	{intentRandom, []string{"факт", "цікав", "random", "випадков"}},
	{intentGPT, []string{"gpt", "чат", "питання", "запита", "дізнатися"}},
	{intentTalk, []string{"розмов", "говори", "спілкува", "особист", "talk"}},
}

// sniffIntent classifies free text into one of the known intents
func sniffIntent(text string) intent {
	lower := strings.ToLower(text)
	for _, family := range keywordFamilies {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.intent
			}
		}
	}
	return intentNone
}
