package evm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"fluidspend/internal/core"
	"fluidspend/internal/upstream"
)

// QueryClient returns the rows of the latest execution of a saved query.
type QueryClient interface {
	LatestResult(ctx context.Context, queryID int) ([]map[string]any, error)
}

// DuneClient talks to the Dune API v1.
type DuneClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDuneClient(baseURL, apiKey string, client *http.Client) *DuneClient {
	return &DuneClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type duneResults struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Result      *struct {
		Rows []map[string]any `json:"rows"`
	} `json:"result"`
}

func (c *DuneClient) LatestResult(ctx context.Context, queryID int) ([]map[string]any, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: DUNE_API_KEY not set", core.ErrConfig)
	}

	u := fmt.Sprintf("%s/query/%d/results", c.baseURL, queryID)
	hdr := http.Header{"X-Dune-Api-Key": []string{c.apiKey}}

	var res duneResults
	if err := upstream.GetJSON(ctx, c.client, "dune", u, hdr, &res); err != nil {
		return nil, err
	}
	if res.Result == nil {
		return nil, fmt.Errorf("%w: dune query %d has no result (state %q)", core.ErrUpstreamData, queryID, res.State)
	}
	return res.Result.Rows, nil
}
