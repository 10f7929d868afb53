package model

import (
	"encoding/json"
	"testing"

	"feargreed/pkg/storage/history"

	"github.com/guregu/null/v6"
)

// go test -v --run TestFromRecordPartial
func TestFromRecordPartial(t *testing.T) {
	rec := &history.Record{
		IndexTime:     "2025-03-01T12:00:00.000Z",
		AlternativeMe: null.FloatFrom(40),
		FinalIndex:    null.FloatFrom(40),
	}

	p := FromRecord(rec)
	if p.SourceCount != 1 {
		t.Errorf("expected 1 source, got %d", p.SourceCount)
	}
	want := []SourceValue{{"alternative.me", 40}, {"coinmarketcap", 0}, {"coinstats", 0}}
	for i, sv := range want {
		if p.Sources[i] != sv {
			t.Errorf("source %d: expected %+v, got %+v", i, sv, p.Sources[i])
		}
	}

	// the zero substitution is display-only; the value columns stay null
	body, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["cmc"] != nil || decoded["coinstats"] != nil {
		t.Errorf("expected null cmc/coinstats, got %v / %v", decoded["cmc"], decoded["coinstats"])
	}
	if decoded["final_index"] != float64(40) {
		t.Errorf("unexpected final_index: %v", decoded["final_index"])
	}
}
