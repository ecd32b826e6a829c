package pipeline

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// wakeWordSimilarity is the minimum Jaro-Winkler score for a phonetically
// matching token to count as the wake word.
const wakeWordSimilarity = 0.84

// StripWakeWord removes whole-word occurrences of wakeWord from transcript.
// Transcription models tend to include the wake word ("Naptick, turn the
// lights off"), which would confuse intent routing and reasoning prompts —
// and they frequently misspell it, since made-up wake words are not in the
// model's vocabulary. A token is stripped when it matches exactly
// (case-insensitive) or when it is phonetically identical under Double
// Metaphone and close under Jaro-Winkler ("naptic", "Naptik").
func StripWakeWord(transcript, wakeWord string) string {
	if wakeWord == "" {
		return transcript
	}
	wakeLower := strings.ToLower(wakeWord)
	wakePrimary, wakeSecondary := matchr.DoubleMetaphone(wakeLower)

	fields := strings.Fields(transcript)
	kept := fields[:0]
	for _, f := range fields {
		token := strings.ToLower(strings.Trim(f, ",.!?;:"))
		if token == wakeLower {
			continue
		}
		// A near-miss must stay about the same length: "naptickle" is a
		// different word, not a misheard "naptick".
		if abs(len(token)-len(wakeLower)) <= 1 &&
			phoneticallyEqual(token, wakePrimary, wakeSecondary) &&
			matchr.JaroWinkler(token, wakeLower, false) >= wakeWordSimilarity {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// phoneticallyEqual reports whether token shares a Double Metaphone code
// with the wake word. Empty codes never match; they mean the encoder had
// nothing to work with.
func phoneticallyEqual(token, wakePrimary, wakeSecondary string) bool {
	p, s := matchr.DoubleMetaphone(token)
	for _, code := range []string{p, s} {
		if code == "" {
			continue
		}
		if code == wakePrimary || (wakeSecondary != "" && code == wakeSecondary) {
			return true
		}
	}
	return false
}
