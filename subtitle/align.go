package subtitle

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// punctuation that ends a phrase, Latin and CJK sets combined
const boundaryPunctuation = "，。！？,.!?;；、"

var phrasePattern = regexp.MustCompile(`[^，。！？,.!?;；、]+[，。！？,.!?;；、]+`)

var ErrNoTimestamps = errors.New("no timestamps for non-empty text")

type timedPhrase struct {
	text   string
	length int
	start  int
	end    int
}

// Align converts a flat transcript plus the engine's token intervals into
// length-bounded cues with interpolated times.
//
// The engine does not report which characters each interval covers, so the
// mapping is proportional by rune count: a phrase covering runes [c, c+L)
// of the text is assumed to cover the same fraction of the interval list.
// Interpolation error grows with token-duration variance; this is a known
// approximation, not something to tighten without character-level
// timestamps from the engine.
//
// maxCharsPerCue is a soft bound: phrases are never split, so a single
// phrase longer than the limit becomes one oversized cue.
func Align(text string, timestamps []TimeInterval, maxCharsPerCue int) ([]Cue, error) {
	if text == "" {
		return nil, nil
	}
	if len(timestamps) == 0 {
		return nil, ErrNoTimestamps
	}

	totalChars := utf8.RuneCountInString(text)

	var timed []timedPhrase
	cursor := 0
	for _, phrase := range splitPhrases(text) {
		if strings.TrimSpace(phrase) == "" {
			continue
		}

		length := utf8.RuneCountInString(phrase)
		startIdx := intervalIndex(cursor, totalChars, len(timestamps))
		endIdx := intervalIndex(cursor+length, totalChars, len(timestamps))

		// avoid zero-width cues
		if startIdx == endIdx && endIdx < len(timestamps)-1 {
			endIdx++
		}

		timed = append(timed, timedPhrase{
			text:   phrase,
			length: length,
			start:  timestamps[startIdx].StartMillis,
			end:    timestamps[endIdx].EndMillis,
		})
		cursor += length
	}

	return mergePhrases(timed, maxCharsPerCue), nil
}

// splitPhrases breaks text at runs of boundary punctuation, keeping the
// punctuation attached to the phrase it terminates. Anything the pattern
// misses (a trailing fragment with no terminal punctuation) is appended as
// one final phrase so no character content is lost.
func splitPhrases(text string) []string {
	phrases := phrasePattern.FindAllString(text, -1)
	if len(phrases) == 0 {
		return []string{text}
	}

	remaining := text
	for _, phrase := range phrases {
		remaining = strings.Replace(remaining, phrase, "", 1)
	}
	if trimmed := strings.TrimSpace(remaining); trimmed != "" {
		phrases = append(phrases, trimmed)
	}

	return phrases
}

// intervalIndex maps a rune offset to an interval index: the floor of
// (chars/totalChars)*count, clamped to the last interval.
func intervalIndex(chars, totalChars, count int) int {
	idx := chars * count / totalChars
	if idx > count-1 {
		idx = count - 1
	}
	return idx
}

// mergePhrases greedily concatenates consecutive phrases until appending
// one would push the buffer past maxCharsPerCue. A closed cue keeps the
// accumulated start and the end of the last phrase merged into it. The
// final buffer is always flushed regardless of length.
func mergePhrases(phrases []timedPhrase, maxCharsPerCue int) []Cue {
	var cues []Cue

	current := timedPhrase{}
	for _, phrase := range phrases {
		if current.text == "" {
			current = phrase
			continue
		}

		if current.length+phrase.length > maxCharsPerCue {
			cues = appendCue(cues, current)
			current = phrase
			continue
		}

		current.text += phrase.text
		current.length += phrase.length
		current.end = phrase.end
	}

	if current.text != "" {
		cues = appendCue(cues, current)
	}

	return cues
}

// appendCue strips trailing boundary punctuation and surrounding
// whitespace, dropping the cue entirely if nothing remains.
func appendCue(cues []Cue, p timedPhrase) []Cue {
	text := strings.TrimSpace(p.text)
	text = strings.TrimRight(text, boundaryPunctuation)
	text = strings.TrimSpace(text)
	if text == "" {
		return cues
	}

	return append(cues, Cue{
		Text:        text,
		StartMillis: p.start,
		EndMillis:   p.end,
	})
}
