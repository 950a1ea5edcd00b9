package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/retry"
)

const defaultTimeout = 5 * time.Second

// HTTPClient calls a scoring model over HTTP. Each classification is a single
// POST with a bounded deadline so one slow model call cannot hold up a live
// call's scoring loop.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	retry    retry.Options
}

// NewHTTPClient creates a classifier client for the given endpoint.
// A zero timeout uses the default.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry: retry.Options{
			MaxAttempts:  2,
			InitialDelay: 200 * time.Millisecond,
		},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Score float64 `json:"score"`
}

// Classify posts the fragment text and returns the model's score in [0,1].
// Out-of-range scores are clamped rather than rejected.
func (c *HTTPClient) Classify(ctx context.Context, text string) (float64, error) {
	var score float64

	err := retry.Do(ctx, "classify", func() error {
		s, err := c.classifyOnce(ctx, text)
		if err != nil {
			return err
		}
		score = s
		return nil
	}, c.retry)
	if err != nil {
		return 0, err
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

func (c *HTTPClient) classifyOnce(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return 0, retry.Permanent(fmt.Errorf("classifier returned status %d", resp.StatusCode))
		}
		return 0, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	log.Debug().
		Float64("score", out.Score).
		Dur("latency", time.Since(start)).
		Msg("Classifier call completed")

	return out.Score, nil
}
