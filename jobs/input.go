package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"

	"citron/utils"
)

// InputSource locates the media for one job: a local temp path saved from
// an upload, or a remote URL to download. Exactly one field is set.
type InputSource struct {
	Path string
	URL  string
}

// downloadToTemp downloads rawURL into a temp file with a size limit,
// returning the path. The original extension is kept so the conversion
// check still works. It is the caller's responsibility to remove the file.
func (r *Runner) downloadToTemp(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad http status: %s", resp.Status)
	}

	suffix := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		suffix = path.Ext(parsed.Path)
	}

	tempFile, err := os.CreateTemp("", "citron-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("making temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := utils.CopyLimit(tempFile, resp.Body, r.maxInputFileSize); err != nil {
		os.Remove(tempFile.Name())
		if errors.Is(err, utils.ErrIOLimitReached) {
			return "", fmt.Errorf("input file too big: %w", err)
		}
		return "", fmt.Errorf("writing to the temp file: %w", err)
	}

	return tempFile.Name(), nil
}
