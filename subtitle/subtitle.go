package subtitle

import (
	"encoding/json"
	"fmt"
)

// TimeInterval is one recognized token's time span in milliseconds.
//
// The engine serializes intervals as two-element arrays, so the JSON
// representation is `[start, end]` rather than an object.
type TimeInterval struct {
	StartMillis int
	EndMillis   int
}

func (t TimeInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{t.StartMillis, t.EndMillis})
}

func (t *TimeInterval) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding interval pair: %w", err)
	}
	t.StartMillis = pair[0]
	t.EndMillis = pair[1]
	return nil
}

// Cue is one subtitle display unit. Text is non-empty with trailing
// boundary punctuation stripped, and StartMillis <= EndMillis.
type Cue struct {
	Text        string
	StartMillis int
	EndMillis   int
}
