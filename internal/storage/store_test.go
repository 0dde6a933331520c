package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestUpsertPlainInsert(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE raw_portfolios (
		customer_id TEXT, balance REAL, workbook_name TEXT
	)`).Error)
	store := NewStore(db)

	records := []map[string]interface{}{
		{"customer_id": "C001", "balance": 100.0, "workbook_name": "portfolio_q1.csv"},
		{"customer_id": "C002", "balance": 200.0, "workbook_name": "portfolio_q1.csv"},
	}
	require.NoError(t, store.Upsert(context.Background(), "raw_portfolios", records, nil))

	var count int64
	db.Table("raw_portfolios").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestUpsertIsIdempotentOnConflictKey(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE raw_facilities (
		facility_code TEXT, "limit" REAL, workbook_name TEXT,
		UNIQUE (facility_code)
	)`).Error)
	store := NewStore(db)

	first := []map[string]interface{}{
		{"facility_code": "F-01", "limit": 50000.0, "workbook_name": "facilities_jan.csv"},
	}
	require.NoError(t, store.Upsert(context.Background(), "raw_facilities", first, []string{"facility_code"}))

	// Re-ingesting the same facility with a new limit replaces, not duplicates.
	second := []map[string]interface{}{
		{"facility_code": "F-01", "limit": 75000.0, "workbook_name": "facilities_feb.csv"},
	}
	require.NoError(t, store.Upsert(context.Background(), "raw_facilities", second, []string{"facility_code"}))

	var count int64
	db.Table("raw_facilities").Count(&count)
	assert.Equal(t, int64(1), count)

	var limit float64
	require.NoError(t, db.Table("raw_facilities").Select(`"limit"`).Where("facility_code = ?", "F-01").Scan(&limit).Error)
	assert.Equal(t, 75000.0, limit)
}

func TestUpsertCompositeBusinessKey(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE raw_risk_events (
		customer_code TEXT, event_date TEXT, event_type TEXT, dpd REAL,
		UNIQUE (customer_code, event_date, event_type)
	)`).Error)
	store := NewStore(db)

	keys := []string{"customer_code", "event_date", "event_type"}
	records := []map[string]interface{}{
		{"customer_code": "C001", "event_date": "2024-01-10", "event_type": "late", "dpd": 35.0},
	}
	require.NoError(t, store.Upsert(context.Background(), "raw_risk_events", records, keys))

	records[0]["dpd"] = 60.0
	require.NoError(t, store.Upsert(context.Background(), "raw_risk_events", records, keys))

	var count int64
	db.Table("raw_risk_events").Count(&count)
	assert.Equal(t, int64(1), count)

	var dpd float64
	require.NoError(t, db.Table("raw_risk_events").Select("dpd").Scan(&dpd).Error)
	assert.Equal(t, 60.0, dpd)
}

func TestUpsertMissingTableFails(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	records := []map[string]interface{}{{"customer_id": "C001"}}
	err := store.Upsert(context.Background(), "raw_nowhere", records, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_nowhere")
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	// No table exists; nothing is touched so nothing fails.
	assert.NoError(t, store.Upsert(context.Background(), "raw_portfolios", nil, nil))
}
