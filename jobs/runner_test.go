package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"citron/asr"
	"citron/subtitle"
	"go.uber.org/zap"
)

type fakeASR struct {
	segments []asr.Segment
	err      error

	calledWith string
}

func (f *fakeASR) Generate(ctx context.Context, audioPath string) ([]asr.Segment, error) {
	f.calledWith = audioPath
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

type fakeConverter struct {
	duration    float64
	durationErr error
	convertErr  error

	converted bool
}

func (f *fakeConverter) FFmpegConvertToWAVFile(ctx context.Context, filePath string) (string, error) {
	if f.convertErr != nil {
		return "", f.convertErr
	}
	f.converted = true
	outputPath := filePath + ".wav"
	if err := os.WriteFile(outputPath, []byte("wav"), 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (f *fakeConverter) FFprobeDurationFromFile(ctx context.Context, filePath string) (float64, error) {
	return f.duration, f.durationErr
}

func recognizedHello() []asr.Segment {
	return []asr.Segment{{
		Text: "你好，世界。今天天气很好。",
		Timestamps: []subtitle.TimeInterval{
			{StartMillis: 0, EndMillis: 500},
			{StartMillis: 500, EndMillis: 1000},
			{StartMillis: 1000, EndMillis: 1500},
			{StartMillis: 1500, EndMillis: 2000},
			{StartMillis: 2000, EndMillis: 2500},
			{StartMillis: 2500, EndMillis: 3000},
		},
	}}
}

func newTestRunner(store *Store, engine asr.SpeechRecognitionAPI, converter MediaConverter) *Runner {
	return NewRunner(RunnerOptions{
		ParentLogger: zap.NewNop(),
		Store:        store,
		ASR:          engine,
		FFmpeg:       converter,
	})
}

func writeTempMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media bytes"), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}
	return path
}

func TestRunnerCompletesJob(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	runner := newTestRunner(store, engine, &fakeConverter{})

	inputPath := writeTempMedia(t, "input.wav")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", job.Status, job.Error)
	}
	if job.Result == nil || len(job.Result.Segments) != 1 {
		t.Fatalf("result = %+v", job.Result)
	}
	if job.Result.Segments[0].SRT == "" {
		t.Fatal("expected a subtitle document on the primary segment")
	}
	if !strings.Contains(job.Result.Segments[0].SRT, "-->") {
		t.Fatalf("srt = %q", job.Result.Segments[0].SRT)
	}

	if _, err := os.Stat(inputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("input temp file not removed: %v", err)
	}
}

func TestRunnerConvertsNonAudioInput(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	converter := &fakeConverter{}
	runner := newTestRunner(store, engine, converter)

	inputPath := writeTempMedia(t, "recording.mkv")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", job.Status, job.Error)
	}
	if !converter.converted {
		t.Fatal("expected conversion for a non wav/mp3 input")
	}
	if !strings.HasSuffix(engine.calledWith, ".wav") {
		t.Fatalf("engine received %q, want the converted file", engine.calledWith)
	}
	if _, err := os.Stat(inputPath + ".wav"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("converted temp file not removed: %v", err)
	}
}

func TestRunnerSkipsConversionForAudio(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	converter := &fakeConverter{}
	runner := newTestRunner(store, engine, converter)

	inputPath := writeTempMedia(t, "voice.mp3")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	if converter.converted {
		t.Fatal("mp3 input should not be converted")
	}
	if engine.calledWith != inputPath {
		t.Fatalf("engine received %q, want %q", engine.calledWith, inputPath)
	}
}

func TestRunnerRecordsEngineFailure(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{err: fmt.Errorf("engine exploded")}
	runner := newTestRunner(store, engine, &fakeConverter{})

	inputPath := writeTempMedia(t, "input.wav")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "engine exploded") {
		t.Fatalf("error = %q", job.Error)
	}
	if _, err := os.Stat(inputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("input temp file not removed on failure: %v", err)
	}
}

func TestRunnerRecordsAlignmentFailure(t *testing.T) {
	store := newTestStore()
	// non-empty text with no intervals violates the aligner contract
	engine := &fakeASR{segments: []asr.Segment{{Text: "hello"}}}
	runner := newTestRunner(store, engine, &fakeConverter{})

	inputPath := writeTempMedia(t, "input.wav")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "aligning subtitles") {
		t.Fatalf("error = %q", job.Error)
	}
}

func TestRunnerRejectsOverlongInput(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	runner := NewRunner(RunnerOptions{
		ParentLogger:     zap.NewNop(),
		Store:            store,
		ASR:              engine,
		FFmpeg:           &fakeConverter{duration: 120},
		MaxInputDuration: 60,
	})

	inputPath := writeTempMedia(t, "input.wav")
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{Path: inputPath})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "input too long") {
		t.Fatalf("error = %q", job.Error)
	}
	if engine.calledWith != "" {
		t.Fatal("engine must not run on an overlong input")
	}
}

func TestRunnerDownloadsRemoteInput(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	runner := newTestRunner(store, engine, &fakeConverter{})

	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("remote media bytes"))
	}))
	defer fileServer.Close()

	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{URL: fileServer.URL + "/clip.wav"})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", job.Status, job.Error)
	}
	if engine.calledWith == "" {
		t.Fatal("engine never received the downloaded file")
	}
	if _, err := os.Stat(engine.calledWith); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("downloaded temp file not removed: %v", err)
	}
}

func TestRunnerRecordsDownloadFailure(t *testing.T) {
	store := newTestStore()
	engine := &fakeASR{segments: recognizedHello()}
	runner := newTestRunner(store, engine, &fakeConverter{})

	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer fileServer.Close()

	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner.Run(context.Background(), "job-1", InputSource{URL: fileServer.URL + "/missing.wav"})

	job, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "downloading input") {
		t.Fatalf("error = %q", job.Error)
	}
}
