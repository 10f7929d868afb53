package history

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

// IndexTimeLayout is ISO-8601 in UTC with millisecond precision, e.g. 2025-01-02T15:04:05.000Z.
const IndexTimeLayout = "2006-01-02T15:04:05.000Z"

// Record is one aggregation event. A null column means the source was
// unavailable when the record was captured.
type Record struct {
	IndexTime     string     `gorm:"column:index_time;type:text;primaryKey" json:"index_time"`
	AlternativeMe null.Float `gorm:"column:alternative_me;type:double precision" json:"alternative_me"`
	CMC           null.Float `gorm:"column:cmc;type:double precision" json:"cmc"`
	Coinstats     null.Float `gorm:"column:coinstats;type:double precision" json:"coinstats"`
	FinalIndex    null.Float `gorm:"column:final_index;type:double precision" json:"final_index"`
}

// TableName overrides the default table name for GORM.
func (Record) TableName() string {
	return "fear_greed_history"
}

// Time parses IndexTime. Records with a missing or malformed key return an error.
func (r *Record) Time() (time.Time, error) {
	return ParseIndexTime(r.IndexTime)
}

func FormatIndexTime(t time.Time) string {
	return t.UTC().Format(IndexTimeLayout)
}

func ParseIndexTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty index time")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse index time %q: %w", s, err)
	}
	return t, nil
}
