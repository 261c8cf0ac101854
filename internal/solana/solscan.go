package solana

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
	"fluidspend/internal/upstream"
)

// TransferRow is one upstream transfer, before classification. TokenSymbol is
// resolved from page metadata when the page is fetched.
type TransferRow struct {
	TransID       string          `json:"trans_id"`
	BlockID       int64           `json:"block_id"`
	Time          string          `json:"time"`
	Flow          string          `json:"flow"`
	FromAddress   string          `json:"from_address"`
	ToAddress     string          `json:"to_address"`
	TokenAddress  string          `json:"token_address"`
	TokenSymbol   string          `json:"token_symbol,omitempty"`
	TokenDecimals *int32          `json:"token_decimals,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Value         decimal.Decimal `json:"value"`
}

// TokenMeta is the per-token metadata attached to a page.
type TokenMeta struct {
	Symbol string `json:"token_symbol"`
	Name   string `json:"token_name"`
}

// Page is one page of transfer history.
type Page struct {
	Rows   []TransferRow
	Tokens map[string]TokenMeta
}

// TransferClient pages through an account's transfer history, newest first.
type TransferClient interface {
	TransferPage(ctx context.Context, address string, page, pageSize int) (Page, error)
}

// SolscanClient talks to the Solscan Pro API v2.
type SolscanClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSolscanClient(baseURL, apiKey string, client *http.Client) *SolscanClient {
	return &SolscanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type solscanResponse struct {
	Success  bool          `json:"success"`
	Data     []TransferRow `json:"data"`
	Metadata struct {
		Tokens map[string]TokenMeta `json:"tokens"`
	} `json:"metadata"`
	Errors *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *SolscanClient) TransferPage(ctx context.Context, address string, page, pageSize int) (Page, error) {
	if c.apiKey == "" {
		return Page{}, fmt.Errorf("%w: SOLSCAN_API_KEY not set", core.ErrConfig)
	}

	q := url.Values{}
	q.Set("address", address)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("sort_by", "block_time")
	q.Set("sort_order", "desc")
	u := c.baseURL + "/account/transfer?" + q.Encode()

	var res solscanResponse
	if err := upstream.GetJSON(ctx, c.client, "solscan", u, http.Header{"token": []string{c.apiKey}}, &res); err != nil {
		return Page{}, err
	}
	if !res.Success {
		msg := "API returned success=false"
		if res.Errors != nil && res.Errors.Message != "" {
			msg += ": " + res.Errors.Message
		}
		return Page{}, fmt.Errorf("%w: solscan page %d: %s", core.ErrUpstreamData, page, msg)
	}
	return Page{Rows: res.Data, Tokens: res.Metadata.Tokens}, nil
}
