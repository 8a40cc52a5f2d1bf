/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package imds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEndpoint is the link-local instance metadata service.
const DefaultEndpoint = "http://169.254.169.254/latest/meta-data"

const requestTimeout = 2 * time.Second

// Client queries the instance metadata service over local HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a Client against the default metadata endpoint.
func New() *Client {
	return NewWithEndpoint(DefaultEndpoint)
}

// NewWithEndpoint creates a Client against a specific endpoint. Used by tests
// to point at a local server.
func NewWithEndpoint(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// Value returns the metadata value at path (e.g. "instance-id").
func (c *Client) Value(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query instance metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("instance metadata query for %s returned %s", path, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}
	return string(body), nil
}

// InstanceID returns the current instance identifier.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	return c.Value(ctx, "instance-id")
}
