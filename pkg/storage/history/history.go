package history

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// DefaultRecentLimit is the number of rows Recent returns when no limit is given.
const DefaultRecentLimit = 24

// Upsert writes record keyed by IndexTime. An existing row with the same key
// has its four value columns overwritten.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "index_time"}},
		DoUpdates: clause.AssignmentColumns([]string{"alternative_me", "cmc", "coinstats", "final_index"}),
	}).Create(record)
	if tx.Error != nil {
		return fmt.Errorf("upsert history record %s: %w", record.IndexTime, tx.Error)
	}
	return nil
}

// Latest returns the row with the greatest index time, or nil if the table is empty.
func (s *Store) Latest(ctx context.Context) (*Record, error) {
	rows, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Record
	err = db.Order("index_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select recent history: %w", err)
	}
	return rows, nil
}
