// Package ipfs talks to the content-addressed storage network: archive and
// attachment fetches through an HTTP gateway, and justification uploads
// through a pinning service.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/retry"
)

// Gateway is the storage surface the resolver and publisher depend on.
// Tests substitute an in-memory implementation.
type Gateway interface {
	// Fetch returns the bytes behind a CID.
	Fetch(ctx context.Context, cid string) ([]byte, error)
	// Pin uploads data to the pinning service and returns the resulting CID.
	Pin(ctx context.Context, name string, data []byte) (string, error)
}

const (
	fetchTimeout = 30 * time.Second
	pinTimeout   = 60 * time.Second

	// maxObjectBytes caps a single gateway download.
	maxObjectBytes = 128 << 20
)

var errNotFound = errors.New("cid not found on gateway")

// Client implements Gateway against a standard IPFS HTTP gateway and a
// bearer-authenticated pinning service.
type Client struct {
	gatewayURL string
	pinURL     string
	pinKey     string
	http       *http.Client
	logger     *zap.Logger

	fetchPolicy retry.Policy
	pinPolicy   retry.Policy
}

// NewClient creates an IPFS client. The gateway URL is required; the pinning
// service URL and key may be empty when the node never publishes.
func NewClient(gatewayURL, pinURL, pinKey string, logger *zap.Logger) *Client {
	return &Client{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		pinURL:     pinURL,
		pinKey:     pinKey,
		http:       &http.Client{},
		logger:     logger,
		fetchPolicy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		pinPolicy: retry.Policy{
			MaxAttempts:     2,
			InitialInterval: time.Second,
			MaxInterval:     5 * time.Second,
		},
	}
}

// Fetch downloads a CID from the gateway. Transient failures (including 404,
// which gateways return while content propagates) are retried with
// exponential backoff; exhaustion is fatal for the request.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	var body []byte
	url := fmt.Sprintf("%s/ipfs/%s", c.gatewayURL, cid)

	err := retry.Do(ctx, c.logger, "ipfs fetch "+cid, c.fetchPolicy, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errNotFound
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes))
		return err
	})
	if err != nil {
		return nil, faults.Wrap(err, faults.CIDNotFound, "fetch %s: %v", cid, err)
	}
	return body, nil
}

// Pin uploads data as a multipart form to the pinning service. Two attempts,
// then the failure surfaces as PublishFailed.
func (c *Client) Pin(ctx context.Context, name string, data []byte) (string, error) {
	if c.pinURL == "" {
		return "", faults.New(faults.PublishFailed, "no pinning service configured")
	}

	var out struct {
		CID  string `json:"cid"`
		Size int64  `json:"size"`
	}

	err := retry.Do(ctx, c.logger, "ipfs pin "+name, c.pinPolicy, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pinTimeout)
		defer cancel()

		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		fw, err := form.CreateFormFile("file", name)
		if err != nil {
			return retry.Permanent(err)
		}
		if _, err := fw.Write(data); err != nil {
			return retry.Permanent(err)
		}
		if err := form.Close(); err != nil {
			return retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pinURL, &buf)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		if c.pinKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.pinKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("pinning service returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return "", faults.Wrap(err, faults.PublishFailed, "pin %s: %v", name, err)
	}

	c.logger.Debug("pinned archive", zap.String("name", name), zap.String("cid", out.CID), zap.Int64("size", out.Size))
	return out.CID, nil
}
