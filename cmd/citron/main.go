package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"citron/api"
	funasrhttp "citron/asr/funasr-http"
	"citron/jobs"
	"citron/media"
	"github.com/caarlos0/env/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var CommitHash = ""

type config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":12369"`

	Workers   int `env:"WORKERS" envDefault:"2"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`

	MaxCueChars          int     `env:"MAX_CUE_CHARS" envDefault:"20"`
	MaxInputFileSize     int64   `env:"MAX_INPUT_FILE_SIZE" envDefault:"536870912"`
	MaxInputDurationSecs float64 `env:"MAX_INPUT_DURATION_SECS" envDefault:"0"`

	FFmpegBinary  string `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`
	FFprobeBinary string `env:"FFPROBE_BINARY" envDefault:"ffprobe"`

	FunASROptions funasrhttp.FunASRClientOptions `envPrefix:"ASR_FUNASR_"`
}

const environmentPrefix = "CITRON_"
const logLevelEnvKey = environmentPrefix + "LOG_LEVEL"

func createLog() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""

	logLevelValue := os.Getenv(logLevelEnvKey)
	logLevel, logLevelErr := zapcore.ParseLevel(logLevelValue)

	if logLevelErr != nil {
		logLevel = zapcore.InfoLevel
	}

	rawLog := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		logLevel,
	)).Named("citron")

	if CommitHash != "" {
		rawLog = rawLog.With(zap.String("commit", CommitHash))
	}

	if logLevelErr != nil && logLevelValue != "" {
		rawLog.With(zap.String(logLevelEnvKey, logLevelValue)).Warn("unable to parse log level, using INFO")
	}

	return rawLog
}

func main() {
	parentLogger := createLog()
	defer parentLogger.Sync()

	log := parentLogger.Named("main")
	log.With(zap.String("min_log_level", parentLogger.Level().String())).Info("starting")

	cfg := config{}
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix: environmentPrefix,
	}); err != nil {
		log.Fatal("failed to parse config", zap.Error(err))
	}

	store := jobs.NewStore(parentLogger)

	asrClient := funasrhttp.NewFunASRClient(cfg.FunASROptions)

	ffmpeg := media.NewFFmpeg(
		media.WithFFmpegBinary(cfg.FFmpegBinary),
		media.WithFFprobeBinary(cfg.FFprobeBinary),
	)

	runner := jobs.NewRunner(jobs.RunnerOptions{
		ParentLogger: parentLogger,
		Store:        store,
		ASR:          asrClient,
		FFmpeg:       ffmpeg,

		MaxConcurrent:    int64(cfg.Workers),
		MaxCueChars:      cfg.MaxCueChars,
		MaxInputFileSize: cfg.MaxInputFileSize,
		MaxInputDuration: cfg.MaxInputDurationSecs,
	})

	pool := jobs.NewPool(jobs.PoolOptions{
		ParentLogger: parentLogger,
		Runner:       runner,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
	})

	server := api.NewServer(api.ServerOptions{
		ParentLogger: parentLogger,
		Store:        store,
		Runner:       runner,
		Pool:         pool,

		ListenAddr:    cfg.ListenAddr,
		MaxUploadSize: cfg.MaxInputFileSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := errgroup.Group{}

	// background job workers
	g.Go(func() error {
		defer cancel()

		return pool.Run(ctx)
	})

	// http api
	g.Go(func() error {
		defer cancel()

		return server.Run(ctx)
	})

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-shutdownSignal:
		cancel()
		log.Info("received signal, shutting down")
	case <-ctx.Done():
		log.Info("context done, shutting down")
	}

	if err := g.Wait(); err != nil {
		log.Fatal("error group error", zap.Error(err))
	}
}
