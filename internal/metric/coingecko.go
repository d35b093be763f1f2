package metric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sweeney/datatracker/internal/config"
)

// CoinGeckoURL is the simple price endpoint.
const CoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"

// ErrInvalidResponse is returned when the payload lacks the requested coin.
var ErrInvalidResponse = errors.New("invalid response structure")

type coinPrice struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
}

func priceURL(coinID string) string {
	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	return CoinGeckoURL + "?" + q.Encode()
}

func fetchCoin(ctx context.Context, get Getter, module, label, coinID string, now time.Time) (Reading, error) {
	body, err := get.HTTPGet(ctx, priceURL(coinID))
	if err != nil {
		return Reading{}, err
	}

	var doc map[string]coinPrice
	if err := json.Unmarshal(body, &doc); err != nil {
		return Reading{}, fmt.Errorf("JSON parse error: %w", err)
	}
	price, ok := doc[coinID]
	if !ok {
		return Reading{}, ErrInvalidResponse
	}

	return Reading{
		Module:    module,
		Label:     label,
		Value:     price.USD,
		Change24h: price.Change24h,
		Time:      now,
	}, nil
}

type bitcoinModule struct{}

func (bitcoinModule) ID() string { return "bitcoin" }

func (bitcoinModule) DisplayName(config.ModuleSettings) string { return "BTC/USD" }

func (m bitcoinModule) Fetch(ctx context.Context, get Getter, s config.ModuleSettings, now time.Time) (Reading, error) {
	return fetchCoin(ctx, get, m.ID(), m.DisplayName(s), "bitcoin", now)
}

// cryptoModule tracks a configurable second coin, ethereum unless
// crypto_id says otherwise.
type cryptoModule struct{}

func (cryptoModule) ID() string { return "ethereum" }

func (cryptoModule) DisplayName(s config.ModuleSettings) string {
	if s.CryptoName != "" {
		return s.CryptoName
	}
	if s.CryptoID != "" {
		return s.CryptoID
	}
	return "Ethereum"
}

func (m cryptoModule) Fetch(ctx context.Context, get Getter, s config.ModuleSettings, now time.Time) (Reading, error) {
	coin := s.CryptoID
	if coin == "" {
		coin = "ethereum"
	}
	return fetchCoin(ctx, get, m.ID(), m.DisplayName(s), coin, now)
}
