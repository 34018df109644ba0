package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// FFmpegConvertToWAVFile converts the input to mono 16kHz PCM WAV next to
// the original file, returning the new path. The original is left
// untouched; removing the converted file is the caller's responsibility.
func (f *FFmpeg) FFmpegConvertToWAVFile(ctx context.Context, filePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.commandTimeout)
	defer cancel()

	outputPath := filePath + ".wav"

	cmd := exec.CommandContext(ctx,
		f.ffmpegBinary,
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", filePath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("running ffmpeg: %w: %s", err, output)
	}

	return outputPath, nil
}
