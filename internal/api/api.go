// 包 api：集中注册 HTTP 路由，主入口把返回的 ServeMux 挂载到 API_BASE 前缀
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"district-chart/internal/aggregate"
	"district-chart/internal/chart"
	"district-chart/internal/dataset"
	"district-chart/internal/logger"
	"district-chart/internal/metrics"
	"district-chart/internal/neighborhood"
	"district-chart/internal/store"

	"github.com/redis/go-redis/v9"
)

var errNotReady = errors.New("dataset not loaded")

// Stats：浏览计数与加载历史存储；为 nil 时统计关闭
type Stats interface {
	IncrViews(ctx context.Context) error
	GetTotals(ctx context.Context) (*store.Totals, error)
	RecentLoads(ctx context.Context, limit int) ([]store.Load, error)
}

// Reloader：立即重新加载数据源
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Deps：路由依赖；Stats / Cache / Reloader 可为空
type Deps struct {
	Holder     *dataset.Holder
	Names      neighborhood.Table
	Chart      chart.Options
	Stats      Stats
	Cache      *redis.Client
	CacheTTL   time.Duration
	Reloader   Reloader
	AdminToken string
}

type handler struct {
	Deps
	variant string
}

// 对外返回的单条辖区结果
type districtResult struct {
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
	Count        int    `json:"count"`
}

type districtsResponse struct {
	Source      string            `json:"source"`
	Fingerprint string            `json:"fingerprint"`
	LoadedAt    time.Time         `json:"loaded_at"`
	Summary     aggregate.Summary `json:"summary"`
	Districts   []districtResult  `json:"districts"`
}

// 构建并返回 API 路由
func BuildRoutes(d Deps) *http.ServeMux {
	h := newHandler(d)
	mux := http.NewServeMux()
	mux.HandleFunc("/districts", h.districts)
	mux.HandleFunc("/stats", h.stats)
	mux.HandleFunc("/loads", h.loads)
	mux.HandleFunc("/chart.svg", h.chartSVG)
	mux.HandleFunc("/chart.html", h.chartHTML)
	mux.HandleFunc("/reload", h.reload)
	return mux
}

// ChartPage：挂载在站点根路径的 HTML 图表页
func ChartPage(d Deps) http.Handler {
	h := newHandler(d)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		h.chartHTML(w, r)
	})
}

func newHandler(d Deps) *handler {
	if d.Holder == nil {
		d.Holder = &dataset.Holder{}
	}
	if d.Names == nil {
		d.Names = neighborhood.Default()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 24 * time.Hour
	}
	return &handler{Deps: d, variant: variantKey(d.Names, d.Chart)}
}

// variantKey：对照表与绘图参数的摘要，参与缓存键，避免不同配置的实例共用缓存
func variantKey(names neighborhood.Table, o chart.Options) string {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + names[k] + ";")
	}
	fmt.Fprintf(&b, "%+v", o)
	return dataset.Fingerprint([]byte(b.String()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) districts(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("districts").Inc()
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := h.Holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, errNotReady.Error())
		return
	}
	out := districtsResponse{
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		LoadedAt:    snap.LoadedAt,
		Summary:     snap.Summary,
		Districts:   make([]districtResult, 0, len(snap.Counts)),
	}
	for _, c := range snap.Counts {
		out.Districts = append(out.Districts, districtResult{District: c.District, Neighborhood: h.Names.Name(c.District), Count: c.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("stats").Inc()
	t := &store.Totals{}
	if h.Stats != nil {
		got, err := h.Stats.GetTotals(r.Context())
		if err != nil {
			logger.L().Error("stats_read_error", "err", err)
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		t = got
	}
	writeJSON(w, http.StatusOK, t)
}

// loads：最近的数据集加载记录，limit 取 1..100，默认 20
func (h *handler) loads(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("loads").Inc()
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	out := []store.Load{}
	if h.Stats != nil {
		got, err := h.Stats.RecentLoads(r.Context(), limit)
		if err != nil {
			logger.L().Error("loads_read_error", "err", err)
			writeError(w, http.StatusInternalServerError, "loads unavailable")
			return
		}
		if got != nil {
			out = got
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) reload(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("reload").Inc()
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	t := r.Header.Get("x-admin-token")
	if t == "" || t != h.AdminToken || h.Reloader == nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	changed, err := h.Reloader.Reload(r.Context())
	if err != nil {
		logger.L().Error("dataset_reload_error", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (h *handler) chartSVG(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("chart_svg").Inc()
	h.serveChart(w, r, "svg", "image/svg+xml")
}

func (h *handler) chartHTML(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("chart_html").Inc()
	h.serveChart(w, r, "html", "text/html; charset=utf-8")
}

func (h *handler) serveChart(w http.ResponseWriter, r *http.Request, format, contentType string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	b, snap, err := h.render(ctx, format)
	if errors.Is(err, errNotReady) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		logger.L().Error("render_error", "format", format, "err", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("content-type", contentType)
	w.Header().Set("etag", `"`+snap.Fingerprint+"-"+h.variant+`"`)
	_, _ = w.Write(b)
	if h.Stats != nil {
		if err := h.Stats.IncrViews(ctx); err != nil {
			logger.L().Debug("stats_incr_error", "err", err)
		}
	}
}

// render：先查 Redis，未命中再绘制并回写
// 约束：缓存键含数据指纹与配置摘要；Redis 异常视为未命中
func (h *handler) render(ctx context.Context, format string) ([]byte, *dataset.Snapshot, error) {
	snap := h.Holder.Current()
	if snap == nil {
		return nil, nil, errNotReady
	}
	key := "chart:" + format + ":" + snap.Fingerprint + ":" + h.variant
	if h.Cache != nil {
		if b, err := h.Cache.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			metrics.CacheHitsTotal.Inc()
			return b, snap, nil
		}
		metrics.CacheMissesTotal.Inc()
	}
	start := time.Now()
	l := chart.Build(snap.Counts, h.Names, h.Chart)
	var buf bytes.Buffer
	var err error
	if format == "svg" {
		err = chart.WriteSVG(&buf, l)
	} else {
		err = chart.WriteHTML(&buf, l)
	}
	if err != nil {
		return nil, nil, err
	}
	metrics.RenderDurationMs.WithLabelValues(format).Observe(float64(time.Since(start).Microseconds()) / 1000)
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, key, buf.Bytes(), h.CacheTTL).Err(); err != nil {
			logger.L().Debug("cache_set_error", "key", key, "err", err)
		}
	}
	return buf.Bytes(), snap, nil
}
