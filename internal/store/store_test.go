package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return AttachDB(db), mock
}

func TestIncrViews(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE _chart_stats_total SET total_views=total_views+1 WHERE id=1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO _chart_stats_daily(day, views)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.IncrViews(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrViewsStopsOnTotalError(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec("UPDATE _chart_stats_total").WillReturnError(errors.New("db down"))

	assert.EqualError(t, st.IncrViews(context.Background()), "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoad(t *testing.T) {
	st, mock := newMock(t)
	at := time.Date(2018, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO _chart_loads").
		WithArgs("data/crime.csv", "abc", 10, 2, 3, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE _chart_stats_total SET total_loads=total_loads+1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.RecordLoad(context.Background(), Load{
		Source: "data/crime.csv", Fingerprint: "abc", Rows: 10, Dropped: 2, Districts: 3, LoadedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoadRollsBack(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO _chart_loads").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	require.Error(t, st.RecordLoad(context.Background(), Load{Source: "x"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotals(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_views, total_loads FROM _chart_stats_total")).
		WillReturnRows(sqlmock.NewRows([]string{"total_views", "total_loads"}).AddRow(7, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT views FROM _chart_stats_daily")).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(4))

	got, err := st.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Totals{Total: 7, Today: 4, Loads: 2}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotalsMissingRowsAreZero(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery("SELECT total_views").WillReturnRows(sqlmock.NewRows([]string{"total_views", "total_loads"}))
	mock.ExpectQuery("SELECT views").WillReturnRows(sqlmock.NewRows([]string{"views"}))

	got, err := st.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Totals{}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentLoads(t *testing.T) {
	st, mock := newMock(t)
	t1 := time.Date(2018, 6, 2, 0, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	cols := []string{"source", "fingerprint", "rows_total", "rows_dropped", "districts", "loaded_at"}
	mock.ExpectQuery("FROM _chart_loads ORDER BY loaded_at DESC").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a.csv", "f1", 10, 1, 3, t1).
			AddRow("a.csv", "f0", 8, 0, 2, t0))

	got, err := st.RecentLoads(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []Load{
		{Source: "a.csv", Fingerprint: "f1", Rows: 10, Dropped: 1, Districts: 3, LoadedAt: t1},
		{Source: "a.csv", Fingerprint: "f0", Rows: 8, Dropped: 0, Districts: 2, LoadedAt: t0},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentLoadsDefaultLimit(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery("FROM _chart_loads").WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"source", "fingerprint", "rows_total", "rows_dropped", "districts", "loaded_at"}))

	got, err := st.RecentLoads(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
