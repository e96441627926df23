package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"district-chart/internal/aggregate"
	"district-chart/internal/dataset"
	"district-chart/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	views int64
	loads []store.Load
	limit int
	err   error
}

func (f *fakeStats) IncrViews(context.Context) error { f.views++; return nil }

func (f *fakeStats) GetTotals(context.Context) (*store.Totals, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.Totals{Total: f.views, Today: f.views, Loads: 1}, nil
}

func (f *fakeStats) RecentLoads(_ context.Context, limit int) ([]store.Load, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.loads, nil
}

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(context.Context) (bool, error) {
	f.calls++
	return f.err == nil, f.err
}

func loadedHolder() *dataset.Holder {
	h := &dataset.Holder{}
	h.Set(&dataset.Snapshot{
		Counts:      []aggregate.DistrictCount{{District: "B2", Count: 3}, {District: "Z9", Count: 1}},
		Summary:     aggregate.Summary{Rows: 5, Kept: 4, Dropped: 1, Districts: 2},
		Fingerprint: "abc",
		Source:      "data/crime.csv",
	})
	return h
}

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDistricts(t *testing.T) {
	mux := BuildRoutes(Deps{Holder: loadedHolder()})
	rec := do(t, mux, http.MethodGet, "/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("cache-control"))

	var got districtsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.Fingerprint)
	assert.Equal(t, 1, got.Summary.Dropped)
	assert.Equal(t, []districtResult{
		{District: "B2", Neighborhood: "Roxbury", Count: 3},
		{District: "Z9", Neighborhood: "Z9", Count: 1},
	}, got.Districts)
}

func TestNotReady(t *testing.T) {
	mux := BuildRoutes(Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodGet, "/districts", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodGet, "/chart.svg", nil).Code)
}

func TestChartSVGCountsViews(t *testing.T) {
	st := &fakeStats{}
	mux := BuildRoutes(Deps{Holder: loadedHolder(), Stats: st})
	rec := do(t, mux, http.MethodGet, "/chart.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("content-type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))
	assert.Contains(t, rec.Body.String(), "Roxbury: 3 crimes")
	assert.Equal(t, int64(1), st.views)

	rec = do(t, mux, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tot store.Totals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tot))
	assert.Equal(t, store.Totals{Total: 1, Today: 1, Loads: 1}, tot)
}

func TestChartPage(t *testing.T) {
	page := ChartPage(Deps{Holder: loadedHolder()})
	rec := do(t, page, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("content-type"))
	assert.Contains(t, rec.Body.String(), `class="tooltip"`)
	assert.NotEmpty(t, rec.Header().Get("etag"))

	assert.Equal(t, http.StatusNotFound, do(t, page, http.MethodGet, "/favicon.ico", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, page, http.MethodPost, "/", nil).Code)
}

func TestStatsWithoutStore(t *testing.T) {
	rec := do(t, BuildRoutes(Deps{}), http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"today":0,"loads":0}`, rec.Body.String())
}

func TestStatsError(t *testing.T) {
	rec := do(t, BuildRoutes(Deps{Stats: &fakeStats{err: errors.New("down")}}), http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReloadRequiresToken(t *testing.T) {
	rl := &fakeReloader{}
	mux := BuildRoutes(Deps{Holder: loadedHolder(), Reloader: rl, AdminToken: "s3cret"})

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/reload", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, mux, http.MethodPost, "/reload", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, mux, http.MethodPost, "/reload", map[string]string{"x-admin-token": "nope"}).Code)
	assert.Equal(t, 0, rl.calls)

	rec := do(t, mux, http.MethodPost, "/reload", map[string]string{"x-admin-token": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":true}`, rec.Body.String())
	assert.Equal(t, 1, rl.calls)
}

func TestReloadEmptyTokenAlwaysForbidden(t *testing.T) {
	mux := BuildRoutes(Deps{Reloader: &fakeReloader{}})
	rec := do(t, mux, http.MethodPost, "/reload", map[string]string{"x-admin-token": ""})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReloadFailure(t *testing.T) {
	mux := BuildRoutes(Deps{Reloader: &fakeReloader{err: errors.New("boom")}, AdminToken: "t"})
	rec := do(t, mux, http.MethodPost, "/reload", map[string]string{"x-admin-token": "t"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVariantKeyDependsOnConfig(t *testing.T) {
	a := newHandler(Deps{})
	b := newHandler(Deps{})
	assert.Equal(t, a.variant, b.variant)
	c := newHandler(Deps{Names: map[string]string{"B2": "Nubian Square"}})
	assert.NotEqual(t, a.variant, c.variant)
}

func TestLoads(t *testing.T) {
	at := time.Date(2018, 6, 2, 0, 0, 0, 0, time.UTC)
	st := &fakeStats{loads: []store.Load{{Source: "a.csv", Fingerprint: "f1", Rows: 10, Dropped: 1, Districts: 3, LoadedAt: at}}}
	mux := BuildRoutes(Deps{Stats: st})

	rec := do(t, mux, http.MethodGet, "/loads?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, st.limit)
	var got []store.Load
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, st.loads, got)

	require.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/loads", nil).Code)
	assert.Equal(t, 20, st.limit)

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/loads?limit=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/loads?limit=abc", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPost, "/loads", nil).Code)
}

func TestLoadsWithoutStore(t *testing.T) {
	rec := do(t, BuildRoutes(Deps{}), http.MethodGet, "/loads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLoadsError(t *testing.T) {
	rec := do(t, BuildRoutes(Deps{Stats: &fakeStats{err: errors.New("down")}}), http.MethodGet, "/loads", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChartCacheWriteBackAndHit(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	d := Deps{Holder: loadedHolder(), Cache: rc, CacheTTL: time.Hour}
	mux := BuildRoutes(d)
	key := "chart:svg:abc:" + newHandler(d).variant

	rec := do(t, mux, http.MethodGet, "/chart.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{key}, mr.Keys())
	assert.Equal(t, time.Hour, mr.TTL(key))
	cached, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, rec.Body.String(), cached)

	require.NoError(t, mr.Set(key, "<svg>cached</svg>"))
	rec = do(t, mux, http.MethodGet, "/chart.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<svg>cached</svg>", rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/chart.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mr.Keys(), 2)
}

func TestChartCacheErrorIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	mux := BuildRoutes(Deps{Holder: loadedHolder(), Cache: rc})
	rec := do(t, mux, http.MethodGet, "/chart.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))
	assert.Contains(t, rec.Body.String(), "Roxbury: 3 crimes")
}
