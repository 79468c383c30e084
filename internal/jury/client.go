// Package jury is the client for the off-chain AI jury service. It shapes the
// resolved evaluation into the rank-and-justify payload and maps the response
// back without interpreting the scores.
package jury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/manifest"
	"github.com/verdikta/external-adapter/internal/retry"
)

// Request is the rank-and-justify payload.
type Request struct {
	Prompt      string               `json:"prompt"`
	Models      []manifest.ModelSpec `json:"models"`
	Outcomes    []string             `json:"outcomes"`
	Iterations  int                  `json:"iterations"`
	Attachments []Attachment         `json:"attachments,omitempty"`
}

// Attachment carries one evaluation file. Content is raw text for textual
// MIME types, base64 otherwise.
type Attachment struct {
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Content string `json:"content"`
}

// Verdict is the jury's answer: one integer score per outcome plus the
// justification text. The adapter does not enforce the score sum rule.
type Verdict struct {
	Scores        []uint64 `json:"scores"`
	Justification string   `json:"justification"`
}

// Client is the surface the pipeline depends on; MockClient stands in for it
// in tests and local development.
type Client interface {
	RankAndJustify(ctx context.Context, req *Request) (*Verdict, error)
}

// HTTPClient calls a real jury service over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger

	policy retry.Policy
}

// NewHTTPClient creates a jury client. timeout bounds a single call beneath
// the request's own deadline.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
		policy: retry.Policy{
			MaxAttempts:     2, // one retry on transport errors and 5xx
			InitialInterval: time.Second,
		},
	}
}

// RankAndJustify posts the evaluation and decodes the verdict. A 4xx is
// permanent (AIServiceRefused); transport failures and 5xx get one retry and
// then surface as AIServiceUnavailable.
func (c *HTTPClient) RankAndJustify(ctx context.Context, req *Request) (*Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal jury request: %w", err)
	}

	var verdict Verdict
	err = retry.Do(ctx, c.logger, "jury rank-and-justify", c.policy, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/rank-and-justify", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return retry.Permanent(faults.New(faults.AIServiceRefused,
				"jury service refused request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("jury service returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&verdict)
	})
	if err != nil {
		if faults.KindOf(err) == faults.AIServiceRefused {
			return nil, err
		}
		return nil, faults.Wrap(err, faults.AIServiceUnavailable, "jury service unavailable: %v", err)
	}

	if len(verdict.Scores) != len(req.Outcomes) {
		return nil, faults.New(faults.AIServiceUnavailable,
			"jury returned %d scores for %d outcomes", len(verdict.Scores), len(req.Outcomes))
	}
	return &verdict, nil
}
