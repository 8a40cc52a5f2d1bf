/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"
)

const sampleTimeout = 5 * time.Second

// Sample fetches the exporter's metrics endpoint and parses the text
// exposition, returning the number of metric families and samples. Called
// right after setup for an initial reading in the run log; the exporter may
// not be serving yet, so callers treat errors as advisory.
func Sample(ctx context.Context, url string) (families, samples int, err error) {
	ctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build metrics request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch metrics endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse metrics exposition: %w", err)
	}

	for _, mf := range mfs {
		samples += len(mf.GetMetric())
	}
	return len(mfs), samples, nil
}

// EndpointURL returns the exporter's local metrics endpoint for port.
func EndpointURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/metrics", port)
}
