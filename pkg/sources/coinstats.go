package sources

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultCoinStatsURL = "https://openapiv1.coinstats.app/insights/fear-and-greed"

// CoinStats fetches the CoinStats index. An empty API key disables it.
type CoinStats struct {
	apiKey string
	client *restClient
}

func NewCoinStats(url, apiKey string, timeout time.Duration, logger *zap.Logger) *CoinStats {
	if url == "" {
		url = DefaultCoinStatsURL
	}
	return &CoinStats{
		apiKey: apiKey,
		client: newRESTClient(NameCoinStats, url, timeout, logger),
	}
}

func (c *CoinStats) Name() string { return NameCoinStats }

// Fetch reads now.value. Raw keeps the whole body.
func (c *CoinStats) Fetch(ctx context.Context) Result {
	if c.apiKey == "" {
		return unavailable(NameCoinStats)
	}

	body, err := c.client.get(ctx, map[string]string{"X-API-KEY": c.apiKey})
	if err != nil {
		return c.client.fail(err)
	}

	var resp coinStatsResponse
	if err := decode(body, &resp); err != nil {
		return c.client.fail(err)
	}
	if resp.Now == nil {
		return c.client.fail(errMissingVal)
	}

	value, err := coerceNumber(resp.Now.Value)
	if err != nil {
		return c.client.fail(err)
	}

	return success(Reading{Name: NameCoinStats, Value: value, Raw: body})
}
