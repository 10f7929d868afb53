package sources

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultAlternativeURL is the public alternative.me index endpoint.
const DefaultAlternativeURL = "https://api.alternative.me/fng/?limit=1"

// Alternative fetches the alternative.me index. It needs no credential.
type Alternative struct {
	client *restClient
}

func NewAlternative(url string, timeout time.Duration, logger *zap.Logger) *Alternative {
	if url == "" {
		url = DefaultAlternativeURL
	}
	return &Alternative{client: newRESTClient(NameAlternative, url, timeout, logger)}
}

func (a *Alternative) Name() string { return NameAlternative }

// Fetch reads data[0].value.
func (a *Alternative) Fetch(ctx context.Context) Result {
	body, err := a.client.get(ctx, nil)
	if err != nil {
		return a.client.fail(err)
	}

	var resp alternativeResponse
	if err := decode(body, &resp); err != nil {
		return a.client.fail(err)
	}
	if len(resp.Data) == 0 {
		return a.client.fail(errEmptyData)
	}

	item := resp.Data[0]
	var v valueItem
	if err := decode(item, &v); err != nil {
		return a.client.fail(err)
	}

	value, err := coerceNumber(v.Value)
	if err != nil {
		return a.client.fail(err)
	}

	return success(Reading{Name: NameAlternative, Value: value, Raw: item})
}
