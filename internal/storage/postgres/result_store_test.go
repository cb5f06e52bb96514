package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// smallMapping keeps the expected argument lists readable.
func smallMapping() audit.FieldMapping {
	return audit.FieldMapping{{Column: "speed_index", RawKey: "speed-index"}}
}

func testRecord() audit.Record {
	return audit.Record{
		"date":              "2026-03-14",
		"timestamp":         "2026-03-14T09:26:53Z",
		"time":              "09:26:53",
		"url":               "https://example.com",
		"mode":              "mobile",
		"blocked_requests":  "ads.js",
		"performance_score": 0.91,
		"speed_index":       2100.0,
		"speed_index_score": 0.75,
		"unlisted_field":    "must be dropped",
	}
}

func TestStoreRecordsInsertsAllowListedColumnsOnly(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "audit_results", smallMapping())
	require.NoError(t, err)

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO audit_results").
		WithArgs(
			"2026-03-14",
			"2026-03-14T09:26:53Z",
			"09:26:53",
			"https://example.com",
			"mobile",
			"ads.js",
			0.91,
			2100.0,
			0.75,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.StoreRecords(context.Background(), []audit.Record{testRecord()})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsQueuesOneInsertPerRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "audit_results", smallMapping())
	require.NoError(t, err)

	batch := mock.ExpectBatch()
	for range 3 {
		batch.ExpectExec("INSERT INTO audit_results").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	records := []audit.Record{testRecord(), testRecord(), testRecord()}
	require.NoError(t, store.StoreRecords(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "audit_results", smallMapping())
	require.NoError(t, err)

	require.NoError(t, store.StoreRecords(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewResultStoreRejectsBadTableNames(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewResultStoreWithPool(mock, "bad;table", smallMapping())
	assert.Error(t, err)

	store, err := NewResultStoreWithPool(mock, "", smallMapping())
	require.NoError(t, err)
	assert.Equal(t, "audit_results", store.table)
}

func TestInsertQueryShape(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "audit_results", smallMapping())
	require.NoError(t, err)

	query := store.insertQuery()
	assert.Contains(t, query, "INSERT INTO audit_results")
	assert.Contains(t, query, "speed_index_score")
	assert.Contains(t, query, "$9")
	assert.NotContains(t, query, "$10")
}
