// Package upstream holds the HTTP plumbing shared by the Dune, Solscan and
// Fluid clients.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"fluidspend/internal/core"
	"fluidspend/internal/metrics"
)

const maxErrorBody = 512

// NewHTTPClient returns a client whose Timeout bounds each individual call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// GetJSON issues a GET and decodes the body into v with numbers kept as
// json.Number. Transport failures and non-2xx answers wrap
// core.ErrUpstreamUnavailable; undecodable bodies wrap core.ErrUpstreamData.
// There is no retry: a failed call is terminal for this attempt.
func GetJSON(ctx context.Context, client *http.Client, name, rawURL string, header http.Header, v any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(name, err, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", core.ErrUpstreamUnavailable, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s: http %d: %s", core.ErrUpstreamUnavailable, name, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", core.ErrUpstreamData, name, err)
	}
	return nil
}
