package asr

import (
	"context"

	"citron/subtitle"
)

type SpeechRecognitionAPI interface {
	Generate(ctx context.Context, audioPath string) ([]Segment, error)
}

// Segment is one recognized stretch of speech: the flat transcript text
// plus the engine's coarse token intervals. The intervals are not
// character-aligned with the text.
type Segment struct {
	Text       string                  `json:"text"`
	Timestamps []subtitle.TimeInterval `json:"timestamp"`
}
