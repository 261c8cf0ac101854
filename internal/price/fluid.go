package price

import (
	"context"
	"net/http"
	"strings"

	"fluidspend/internal/core"
	"fluidspend/internal/upstream"
)

type wireToken struct {
	Symbol string `json:"symbol"`
	Price  any    `json:"price"`
}

func (w *wireToken) token() Token {
	if w == nil {
		return Token{}
	}
	p, err := core.ParseDecimal(w.Price)
	if err != nil {
		return Token{Symbol: w.Symbol}
	}
	return Token{Symbol: w.Symbol, Price: p}
}

// DexClient reads the Fluid DEX listing at {base}/1/dexes.
type DexClient struct {
	baseURL string
	client  *http.Client
}

func NewDexClient(baseURL string, client *http.Client) *DexClient {
	return &DexClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *DexClient) Name() string { return "fluid_dexes" }

func (c *DexClient) Listing(ctx context.Context) ([]Pair, error) {
	var dexes []struct {
		Token0 *wireToken `json:"token0"`
		Token1 *wireToken `json:"token1"`
	}
	if err := upstream.GetJSON(ctx, c.client, c.Name(), c.baseURL+"/1/dexes", nil, &dexes); err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(dexes))
	for _, d := range dexes {
		pairs = append(pairs, Pair{Token0: d.Token0.token(), Token1: d.Token1.token()})
	}
	return pairs, nil
}

// VaultClient reads the Fluid Solana borrowing vaults. Each vault's supply
// token is exposed as Token0 and its borrow token as Token1.
type VaultClient struct {
	url    string
	client *http.Client
}

func NewVaultClient(url string, client *http.Client) *VaultClient {
	return &VaultClient{url: url, client: client}
}

func (c *VaultClient) Name() string { return "fluid_vaults" }

func (c *VaultClient) Listing(ctx context.Context) ([]Pair, error) {
	var vaults []struct {
		SupplyToken *wireToken `json:"supplyToken"`
		BorrowToken *wireToken `json:"borrowToken"`
	}
	if err := upstream.GetJSON(ctx, c.client, c.Name(), c.url, nil, &vaults); err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(vaults))
	for _, v := range vaults {
		pairs = append(pairs, Pair{Token0: v.SupplyToken.token(), Token1: v.BorrowToken.token()})
	}
	return pairs, nil
}
