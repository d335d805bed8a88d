package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
)

const (
	DefaultTimeout   = 120 * time.Second
	maxResponseBytes = 4 << 20
)

// HTTPClient calls an oracle service that accepts POST <endpoint>/evaluate.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewHTTPClient(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("module", "oracle"),
	}
}

func (c *HTTPClient) Evaluate(ctx context.Context, req Request) (*ScoreResult, error) {
	body, err := xjson.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle response: %w", err)
	}

	c.logger.DebugContext(ctx, "oracle responded",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"solution_url", req.SolutionURL)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("oracle unavailable: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(raw, 256))
	}

	return ParseResult(raw)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}
