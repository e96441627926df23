// 包 dataset：加载 → 聚合 的一次完整流程，以及当前快照的持有与定期刷新
package dataset

import (
	"bytes"
	"context"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"district-chart/internal/aggregate"
	"district-chart/internal/incident"
	"district-chart/internal/logger"
	"district-chart/internal/metrics"
)

// Snapshot：一次加载的聚合结果，只驻留内存
type Snapshot struct {
	Counts      []aggregate.DistrictCount
	Summary     aggregate.Summary
	Fingerprint string
	Source      string
	LoadedAt    time.Time
}

// Fingerprint：原始字节的 FNV-64a 十六进制摘要，用于判断数据是否变化与缓存键
func Fingerprint(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Build：读取数据源并聚合
// 异常：读取或解析失败直接返回，不做重试（交由调度层处理）
func Build(ctx context.Context, src string, client *http.Client) (*Snapshot, error) {
	start := time.Now()
	metrics.LoadsTotal.Inc()
	b, err := incident.ReadSource(ctx, src, client)
	if err != nil {
		metrics.LoadFailTotal.Inc()
		return nil, err
	}
	recs, err := incident.Load(bytes.NewReader(b))
	if err != nil {
		metrics.LoadFailTotal.Inc()
		return nil, err
	}
	counts, sum := aggregate.Run(recs)
	dur := time.Since(start)
	metrics.LoadDurationMs.Observe(float64(dur.Milliseconds()))
	logger.L().Debug("dataset_build_done", "src", src, "rows", sum.Rows, "dropped", sum.Dropped, "districts", sum.Districts, "duration_ms", dur.Milliseconds())
	return &Snapshot{
		Counts:      counts,
		Summary:     sum,
		Fingerprint: Fingerprint(b),
		Source:      src,
		LoadedAt:    time.Now(),
	}, nil
}

// Holder：当前快照的无锁读写切换
// 约束：未 Set 前 Current 返回 nil
type Holder struct{ v atomic.Pointer[Snapshot] }

func (h *Holder) Current() *Snapshot { return h.v.Load() }

func (h *Holder) Set(s *Snapshot) {
	h.v.Store(s)
	if s != nil {
		metrics.RowsKept.Set(float64(s.Summary.Kept))
		metrics.RowsDropped.Set(float64(s.Summary.Dropped))
		metrics.Districts.Set(float64(s.Summary.Districts))
	}
}
