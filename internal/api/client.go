package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"webcall/native/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client fetches ICE server credentials from a provisioning endpoint.
type Client struct {
	http *http.Client
}

// NewClient creates an API client.
func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: requestTimeout}}
}

// FetchICEServers GETs url with a bearer token and decodes the JSON list
// of STUN/TURN servers it returns.
func (c *Client) FetchICEServers(ctx context.Context, url, token string) ([]domain.ICEServer, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var servers []domain.ICEServer
	if err := json.Unmarshal(respBody, &servers); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d has no urls", i)
		}
	}
	return servers, nil
}
