package subtitle

import (
	"fmt"
	"strings"
)

// FormatSRT renders cues as an SRT document: a 1-based index line, a time
// range line, the cue text, and a blank separator per cue. Empty input
// produces an empty string.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatSRTTimestamp(cue.StartMillis),
			formatSRTTimestamp(cue.EndMillis),
			cue.Text,
		)
	}
	return b.String()
}

// formatSRTTimestamp renders milliseconds as HH:MM:SS,mmm. Hours are not
// bounded at two digits for very long inputs.
func formatSRTTimestamp(millis int) string {
	seconds, millis := millis/1000, millis%1000
	hours, seconds := seconds/3600, seconds%3600
	minutes, seconds := seconds/60, seconds%60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
