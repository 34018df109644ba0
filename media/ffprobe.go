package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

var ErrFFprobeDurationInvalid = fmt.Errorf("got no packets from ffprobe, likely a bad file")

type packet struct {
	PtsTime      string `json:"pts_time"`
	DurationTime string `json:"duration_time"`
}

type ffprobePacketsOutput struct {
	Packets []packet `json:"packets"`
}

// FFprobeDurationFromFile gets the duration of the input file in seconds.
//
// It derives the duration from packet metadata (`max pts time + duration
// time`) instead of container metadata, because some containers don't
// carry a duration at all and the packet view matches what the engine
// actually processes. Returns ErrFFprobeDurationInvalid on a file with no
// packets.
func (f *FFmpeg) FFprobeDurationFromFile(ctx context.Context, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		f.ffprobeBinary,
		"-i", filePath,
		"-v", "error",
		"-print_format", "json",
		"-show_packets",
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("running ffprobe: %w", err)
	}

	var response ffprobePacketsOutput
	err = json.Unmarshal(output, &response)
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe json response: %w", err)
	}

	if len(response.Packets) == 0 {
		return 0, ErrFFprobeDurationInvalid
	}

	maxEnd := 0.0
	for _, p := range response.Packets {
		pts, err := strconv.ParseFloat(p.PtsTime, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing pts_time: %w", err)
		}
		duration, err := strconv.ParseFloat(p.DurationTime, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing duration_time: %w", err)
		}
		if end := pts + duration; end > maxEnd {
			maxEnd = end
		}
	}

	return maxEnd, nil
}
