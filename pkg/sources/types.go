package sources

import (
	"context"
	"encoding/json"
)

// Source names, also used as the reading name in payloads.
const (
	NameAlternative   = "alternative.me"
	NameCoinMarketCap = "coinmarketcap"
	NameCoinStats     = "coinstats"
)

// Reading is one normalized sentiment value from an upstream source.
type Reading struct {
	Name  string          `json:"name"`  // source identifier, e.g. "alternative.me"
	Value float64         `json:"value"` // sentiment score, nominally 0-100
	Raw   json.RawMessage `json:"raw"`   // upstream item, kept for diagnostics
}

type Status int

const (
	StatusOK Status = iota
	// StatusUnavailable means the source is not configured; no request was made.
	StatusUnavailable
	// StatusFailed covers timeouts, non-2xx responses and malformed or non-numeric bodies.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the settled outcome of a single source fetch.
// Reading is set only when Status is StatusOK.
type Result struct {
	Source  string
	Status  Status
	Reading *Reading
	Err     error
}

func success(r Reading) Result {
	return Result{Source: r.Name, Status: StatusOK, Reading: &r}
}

func unavailable(name string) Result {
	return Result{Source: name, Status: StatusUnavailable}
}

func failed(name string, err error) Result {
	return Result{Source: name, Status: StatusFailed, Err: err}
}

// Source fetches one upstream value. Fetch never returns an error:
// failures are absorbed into the Result.
type Source interface {
	Name() string
	Fetch(ctx context.Context) Result
}

// alternative.me: {"data":[{"value":"40","value_classification":"Fear",...}]}
type alternativeResponse struct {
	Data []json.RawMessage `json:"data"`
}

// CoinMarketCap: {"data":{"value":40,"value_classification":"Fear",...},"status":{...}}
type cmcResponse struct {
	Data json.RawMessage `json:"data"`
}

// CoinStats: {"now":{"value":40,"value_classification":"Fear",...},"yesterday":{...}}
type coinStatsResponse struct {
	Now *struct {
		Value json.RawMessage `json:"value"`
	} `json:"now"`
}

type valueItem struct {
	Value json.RawMessage `json:"value"`
}
