package funasrhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"citron/asr"
)

// GenerateResponse is the recognition envelope returned by the funasr
// serving sidecar.
type GenerateResponse struct {
	Result []asr.Segment `json:"result"`
}

type FunASRClient struct {
	baseURL string
	token   string

	http *http.Client
}

type FunASRClientOptions struct {
	BaseURL string `env:"URL,required"`
	Token   string `env:"TOKEN"`
}

func NewFunASRClient(options FunASRClientOptions) *FunASRClient {
	return &FunASRClient{
		baseURL: options.BaseURL,
		token:   options.Token,
		http:    http.DefaultClient,
	}
}

// Generate streams the audio file to the sidecar's recognition endpoint
// and decodes the segment list.
func (c *FunASRClient) Generate(ctx context.Context, audioPath string) ([]asr.Segment, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer audio.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/asr", audio)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-ok http response: [%d] %s", resp.StatusCode, resp.Status)
	}

	var generateResp GenerateResponse
	err = json.NewDecoder(resp.Body).Decode(&generateResp)
	if err != nil {
		return nil, fmt.Errorf("decoding response json: %w", err)
	}

	if len(generateResp.Result) == 0 {
		return nil, fmt.Errorf("engine returned no segments")
	}

	return generateResp.Result, nil
}
