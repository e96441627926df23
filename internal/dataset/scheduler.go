package dataset

import (
	"context"
	"net/http"
	"sync"
	"time"

	"district-chart/internal/logger"
)

// Reloader：按固定间隔重新加载数据源
// 背景：数据源（本地文件或远端 CSV）会被外部更新；指纹不变时不替换快照
// 约束：失败只记录日志，保留上一份快照继续服务；Reload 串行执行
type Reloader struct {
	Src      string
	Client   *http.Client
	Holder   *Holder
	Interval time.Duration
	// OnLoad 在快照被替换后调用
	OnLoad func(context.Context, *Snapshot)

	mu sync.Mutex
}

// Reload：立即加载一次；返回快照是否被替换
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, err := Build(ctx, r.Src, r.Client)
	if err != nil {
		return false, err
	}
	if cur := r.Holder.Current(); cur != nil && cur.Fingerprint == snap.Fingerprint {
		logger.L().Debug("dataset_unchanged", "fingerprint", snap.Fingerprint)
		return false, nil
	}
	r.Holder.Set(snap)
	logger.L().Info("dataset_swapped", "fingerprint", snap.Fingerprint, "districts", snap.Summary.Districts, "rows", snap.Summary.Rows)
	if r.OnLoad != nil {
		r.OnLoad(ctx, snap)
	}
	return true, nil
}

// Start：在后台协程中定期刷新，ctx 取消后退出；返回的通道在协程退出时关闭
// 约束：Interval <= 0 时不调度
func (r *Reloader) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if r.Interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := r.Reload(ctx); err != nil {
					logger.L().Error("dataset_reload_error", "src", r.Src, "err", err)
				}
			}
		}
	}()
	return done
}
