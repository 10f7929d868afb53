package sources

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultCoinMarketCapURL = "https://pro-api.coinmarketcap.com/v3/fear-and-greed/latest"

// CoinMarketCap fetches the CMC index. An empty API key disables it.
type CoinMarketCap struct {
	apiKey string
	client *restClient
}

func NewCoinMarketCap(url, apiKey string, timeout time.Duration, logger *zap.Logger) *CoinMarketCap {
	if url == "" {
		url = DefaultCoinMarketCapURL
	}
	return &CoinMarketCap{
		apiKey: apiKey,
		client: newRESTClient(NameCoinMarketCap, url, timeout, logger),
	}
}

func (c *CoinMarketCap) Name() string { return NameCoinMarketCap }

// Fetch reads data.value.
func (c *CoinMarketCap) Fetch(ctx context.Context) Result {
	if c.apiKey == "" {
		return unavailable(NameCoinMarketCap)
	}

	body, err := c.client.get(ctx, map[string]string{"X-CMC_PRO_API_KEY": c.apiKey})
	if err != nil {
		return c.client.fail(err)
	}

	var resp cmcResponse
	if err := decode(body, &resp); err != nil {
		return c.client.fail(err)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return c.client.fail(errEmptyData)
	}

	var v valueItem
	if err := decode(resp.Data, &v); err != nil {
		return c.client.fail(err)
	}

	value, err := coerceNumber(v.Value)
	if err != nil {
		return c.client.fail(err)
	}

	return success(Reading{Name: NameCoinMarketCap, Value: value, Raw: resp.Data})
}
