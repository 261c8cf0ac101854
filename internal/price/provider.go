package price

import (
	"context"

	"github.com/shopspring/decimal"
)

// Token is one side of a listed pair.
type Token struct {
	Symbol string
	Price  decimal.Decimal
}

// Pair is a listing entry carrying two priced tokens.
type Pair struct {
	Token0 Token
	Token1 Token
}

// ListingFetcher returns the current upstream listing of priced pairs.
type ListingFetcher interface {
	Name() string
	Listing(ctx context.Context) ([]Pair, error)
}

// FindPrice scans pairs in order and returns the price of the first side whose
// symbol equals symbol. Non-positive prices are skipped.
func FindPrice(pairs []Pair, symbol string) (decimal.Decimal, bool) {
	for _, p := range pairs {
		for _, tok := range [2]Token{p.Token0, p.Token1} {
			if tok.Symbol == symbol && tok.Price.IsPositive() {
				return tok.Price, true
			}
		}
	}
	return decimal.Zero, false
}
