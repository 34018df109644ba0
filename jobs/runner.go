package jobs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"citron/asr"
	"citron/subtitle"
	"citron/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const DefaultMaxCueChars = 20
const DefaultMaxConcurrent = 2

// max input file size in bytes
const DefaultMaxInputFileSize = 512 << 20

// MediaConverter is the conversion collaborator boundary, satisfied by
// media.FFmpeg.
type MediaConverter interface {
	FFmpegConvertToWAVFile(ctx context.Context, filePath string) (string, error)
	FFprobeDurationFromFile(ctx context.Context, filePath string) (float64, error)
}

// Runner executes the transcription pipeline for one input and records the
// outcome on the store. The semaphore bounds how many engine/conversion
// invocations run in parallel across both the worker pool and the
// synchronous endpoint.
type Runner struct {
	log *zap.Logger

	store  *Store
	asrAPI asr.SpeechRecognitionAPI
	ffmpeg MediaConverter
	http   *http.Client
	sem    *semaphore.Weighted

	maxCueChars      int
	maxInputFileSize int64
	maxInputDuration float64
}

type RunnerOptions struct {
	ParentLogger *zap.Logger
	Store        *Store
	ASR          asr.SpeechRecognitionAPI
	FFmpeg       MediaConverter

	MaxConcurrent    int64
	MaxCueChars      int
	MaxInputFileSize int64
	// MaxInputDuration is in seconds; 0 disables the duration guard.
	MaxInputDuration float64
}

func NewRunner(options RunnerOptions) *Runner {
	r := &Runner{
		log: options.ParentLogger.Named("job_runner"),

		store:  options.Store,
		asrAPI: options.ASR,
		ffmpeg: options.FFmpeg,
		http:   http.DefaultClient,

		maxCueChars:      options.MaxCueChars,
		maxInputFileSize: options.MaxInputFileSize,
		maxInputDuration: options.MaxInputDuration,
	}

	if r.maxCueChars <= 0 {
		r.maxCueChars = DefaultMaxCueChars
	}
	if r.maxInputFileSize <= 0 {
		r.maxInputFileSize = DefaultMaxInputFileSize
	}

	maxConcurrent := options.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	r.sem = semaphore.NewWeighted(maxConcurrent)

	return r
}

// Run executes one job to a terminal state. Every error is recorded on the
// job; nothing escapes to the caller and the job is never left in
// processing.
func (r *Runner) Run(ctx context.Context, id string, source InputSource) {
	ctx, log := utils.LogContextWith(ctx, r.log, zap.String("job_id", id))

	if err := r.store.MarkProcessing(id); err != nil {
		log.Error("cannot start job", zap.Error(err))
		return
	}

	result, err := r.execute(ctx, source)
	if err != nil {
		log.Error("job failed", zap.Error(err))
		if failErr := r.store.Fail(id, err.Error()); failErr != nil {
			log.Error("failed to record job failure", zap.Error(failErr))
		}
		return
	}

	if err := r.store.Complete(id, result); err != nil {
		log.Error("failed to record job completion", zap.Error(err))
		return
	}
	log.Info("job completed")
}

// execute resolves the input to a local file and runs the pipeline,
// removing the local file on every exit path.
func (r *Runner) execute(ctx context.Context, source InputSource) (*Result, error) {
	localPath := source.Path
	if source.URL != "" {
		downloaded, err := r.downloadToTemp(ctx, source.URL)
		if err != nil {
			return nil, fmt.Errorf("downloading input: %w", err)
		}
		localPath = downloaded
	}
	defer os.Remove(localPath)

	return r.Process(ctx, localPath)
}

// Process runs the transcription pipeline on a local media file: optional
// duration guard, conversion when the container isn't directly consumable,
// engine invocation, then subtitle alignment and rendering. The input file
// is left in place; intermediate conversion output is removed.
//
// Also called directly by the synchronous endpoint, which is why the
// semaphore lives here and not in the pool.
func (r *Runner) Process(ctx context.Context, inputPath string) (*Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a worker slot: %w", err)
	}
	defer r.sem.Release(1)

	log := utils.GetLogFromContext(ctx, r.log)

	if r.maxInputDuration > 0 {
		duration, err := r.ffmpeg.FFprobeDurationFromFile(ctx, inputPath)
		if err != nil {
			return nil, fmt.Errorf("probing duration: %w", err)
		}
		if duration > r.maxInputDuration {
			return nil, fmt.Errorf("input too long: %.1fs (limit %.1fs)", duration, r.maxInputDuration)
		}
	}

	audioPath := inputPath
	if !isConsumableAudio(inputPath) {
		converted, err := r.ffmpeg.FFmpegConvertToWAVFile(ctx, inputPath)
		if err != nil {
			return nil, fmt.Errorf("converting input: %w", err)
		}
		defer os.Remove(converted)
		audioPath = converted
	}

	start := time.Now()
	segments, err := r.asrAPI.Generate(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("generating transcript: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("engine returned no segments")
	}
	log.With(
		zap.Duration("processing_time", time.Since(start)),
		zap.Int("segments", len(segments)),
	).Debug("engine done")

	result := &Result{Segments: make([]ResultSegment, len(segments))}
	for i, segment := range segments {
		result.Segments[i] = ResultSegment{
			Text:      segment.Text,
			Timestamp: segment.Timestamps,
		}
	}

	// subtitles for the primary segment only; the engine emits a single
	// segment in practice
	cues, err := subtitle.Align(segments[0].Text, segments[0].Timestamps, r.maxCueChars)
	if err != nil {
		return nil, fmt.Errorf("aligning subtitles: %w", err)
	}
	result.Segments[0].SRT = subtitle.FormatSRT(cues)

	return result, nil
}

func isConsumableAudio(path string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "wav", "mp3":
		return true
	}
	return false
}
