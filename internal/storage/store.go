// Package storage persists normalized batches into their raw landing tables
// and triggers the downstream feature refresh once a run has landed data.
package storage

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store writes batches into dynamically named tables. Landing tables are
// provisioned by migrations, not by the ingestion path, so an upsert against
// a missing table surfaces as a database error on the file it belongs to.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on top of an established gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts the records into the given table. When conflict keys are
// provided, rows that collide on the key are updated in place with the
// non-key columns; without keys this is a plain insert.
func (s *Store) Upsert(ctx context.Context, table string, records []map[string]interface{}, keys []string) error {
	if len(records) == 0 {
		return nil
	}

	tx := s.db.WithContext(ctx).Table(table)
	if len(keys) > 0 {
		tx = tx.Clauses(onConflictClause(records[0], keys))
	}

	if err := tx.Create(records).Error; err != nil {
		return fmt.Errorf("failed to upsert %d records into %s: %w", len(records), table, err)
	}
	return nil
}

// onConflictClause builds the ON CONFLICT ... DO UPDATE clause: conflict on
// the key columns, update every other column present in the record. Columns
// are sorted so the generated SQL is stable across runs.
func onConflictClause(record map[string]interface{}, keys []string) clause.OnConflict {
	isKey := make(map[string]bool, len(keys))
	columns := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		isKey[k] = true
		columns = append(columns, clause.Column{Name: k})
	}

	var updates []string
	for col := range record {
		if !isKey[col] {
			updates = append(updates, col)
		}
	}
	sort.Strings(updates)

	if len(updates) == 0 {
		return clause.OnConflict{Columns: columns, DoNothing: true}
	}
	return clause.OnConflict{Columns: columns, DoUpdates: clause.AssignmentColumns(updates)}
}
