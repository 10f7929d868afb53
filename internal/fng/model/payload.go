package model

import (
	"feargreed/pkg/sources"
	"feargreed/pkg/storage/history"

	"github.com/guregu/null/v6"
)

// SourceValue is one entry of the payload's display list. A missing
// reading is shown as 0 here and nowhere else.
type SourceValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AggregatePayload is the dashboard response body derived from a history record.
type AggregatePayload struct {
	IndexTime     string        `json:"index_time"`
	AlternativeMe null.Float    `json:"alternative_me"`
	CMC           null.Float    `json:"cmc"`
	Coinstats     null.Float    `json:"coinstats"`
	FinalIndex    null.Float    `json:"final_index"`
	SourceCount   int           `json:"source_count"`
	Sources       []SourceValue `json:"sources"`
}

// FromRecord builds the payload for rec. Sources are listed in fixed
// order; SourceCount counts only the sources that produced a value.
func FromRecord(rec *history.Record) *AggregatePayload {
	columns := []struct {
		name  string
		value null.Float
	}{
		{sources.NameAlternative, rec.AlternativeMe},
		{sources.NameCoinMarketCap, rec.CMC},
		{sources.NameCoinStats, rec.Coinstats},
	}

	p := &AggregatePayload{
		IndexTime:     rec.IndexTime,
		AlternativeMe: rec.AlternativeMe,
		CMC:           rec.CMC,
		Coinstats:     rec.Coinstats,
		FinalIndex:    rec.FinalIndex,
		Sources:       make([]SourceValue, 0, len(columns)),
	}
	for _, c := range columns {
		if c.value.Valid {
			p.SourceCount++
		}
		p.Sources = append(p.Sources, SourceValue{Name: c.name, Value: c.value.ValueOrZero()})
	}
	return p
}
