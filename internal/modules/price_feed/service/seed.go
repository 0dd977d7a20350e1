package service

import (
	"context"
	"fmt"
	"strings"

	"signal_trader/internal/models"
	"signal_trader/pkg/logger"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// NewSeedClient builds a public futures REST client. baseURL overrides the
// production endpoint when set.
func NewSeedClient(baseURL string) *futures.Client {
	c := binance.NewFuturesClient("", "")
	if baseURL != "" {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// SeedFromREST primes the feed with the current ticker price so the engine
// does not wait for the first trade on a quiet market.
func (f *Feed) SeedFromREST(ctx context.Context, c *futures.Client) error {
	prices, err := c.NewListPricesService().Symbol(strings.ToUpper(f.opts.Symbol)).Do(ctx)
	if err != nil {
		return models.Transient("ticker price", err)
	}
	for _, p := range prices {
		if !strings.EqualFold(p.Symbol, f.opts.Symbol) {
			continue
		}
		px, err := decimal.NewFromString(p.Price)
		if err != nil {
			return models.DataInvalid("ticker price "+p.Price, err)
		}
		if f.Seed(px) {
			logger.Info("[FEED] seeded %s from REST: %s", p.Symbol, px)
		}
		return nil
	}
	return models.DataInvalid("ticker price", fmt.Errorf("symbol %s not in response", f.opts.Symbol))
}
