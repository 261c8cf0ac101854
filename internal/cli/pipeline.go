package cli

import (
	"fmt"

	"fluidspend/internal/amqp"
	"fluidspend/internal/cache"
	"fluidspend/internal/config"
	"fluidspend/internal/evm"
	"fluidspend/internal/ledger"
	"fluidspend/internal/price"
	"fluidspend/internal/services"
	"fluidspend/internal/solana"
	"fluidspend/internal/upstream"
)

// Pipeline is the wired ledger: both sources over one cache store, the two
// price oracles and the aggregator combining them.
type Pipeline struct {
	Aggregator  *ledger.Aggregator
	FluidOracle *price.Oracle
	SOLOracle   *price.Oracle
	EVMCache    *cache.SourceCache
	SolanaCache *cache.SourceCache
	Refresh     *services.RefreshService
}

// NewPipeline builds the ledger pipeline from configuration. publisher may
// be nil; refreshes then only clear local caches.
func NewPipeline(cfg *config.Config, store cache.Store, publisher services.Publisher) (*Pipeline, error) {
	labels, err := solana.LoadLabels(cfg.TeamLabelsFile)
	if err != nil {
		return nil, fmt.Errorf("load team labels: %w", err)
	}

	client := upstream.NewHTTPClient(cfg.HTTPTimeout)

	fluid := price.NewFluidOracle(price.NewDexClient(cfg.FluidAPIURL, client), cfg.PriceTTL)
	sol := price.NewSOLOracle(price.NewVaultClient(cfg.SOLPriceURL, client), cfg.PriceTTL)

	evmCache := cache.NewSourceCache(store, evm.CacheKey, cfg.EVMCacheTTL)
	solCache := cache.NewSourceCache(store, solana.CacheKey, cfg.SolanaCacheTTL)

	evmSource := evm.NewSource(
		evm.NewDuneClient(cfg.DuneAPIURL, cfg.DuneAPIKey, client),
		cfg.DuneMonthlyQueryID,
		evmCache,
	)
	solSource := solana.NewSource(
		solana.NewSolscanClient(cfg.SolscanAPIURL, cfg.SolscanAPIKey, client),
		solana.Config{
			Address:  cfg.TreasuryAddress,
			PageSize: cfg.SolscanPageSize,
			MaxPages: cfg.SolscanMaxPages,
		},
		solCache,
		sol,
		labels,
	)

	refresh := services.NewRefreshService(publisher).
		RegisterCache(amqp.SourceEVM, evmCache).
		RegisterCache(amqp.SourceSolana, solCache).
		RegisterPrice(fluid).
		RegisterPrice(sol)

	return &Pipeline{
		Aggregator:  ledger.NewAggregator(fluid, evmSource, solSource),
		FluidOracle: fluid,
		SOLOracle:   sol,
		EVMCache:    evmCache,
		SolanaCache: solCache,
		Refresh:     refresh,
	}, nil
}
