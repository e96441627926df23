// 包 store: PostgreSQL 数据访问层，只保存浏览计数与加载历史
package store

import (
	"context"
	"database/sql"
	"time"

	"district-chart/internal/logger"

	_ "github.com/lib/pq"
)

// Store: 持有连接池并提供统计读写
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// IncrViews: 图表被渲染输出后递增总计与当日计数
// 约束：统计失败不影响主流程，仅记录日志
func (s *Store) IncrViews(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE _chart_stats_total SET total_views=total_views+1 WHERE id=1"); err != nil {
		logger.L().Debug("stats_incr_error", "err", err)
		return err
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO _chart_stats_daily(day, views) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET views=_chart_stats_daily.views+1")
	return err
}

// Load: 一次数据集加载的元信息
type Load struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	Dropped     int       `json:"dropped"`
	Districts   int       `json:"districts"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// RecordLoad: 写入加载历史并递增加载次数
func (s *Store) RecordLoad(ctx context.Context, l Load) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO _chart_loads(source, fingerprint, rows_total, rows_dropped, districts, loaded_at)
        VALUES($1,$2,$3,$4,$5,$6)`, l.Source, l.Fingerprint, l.Rows, l.Dropped, l.Districts, l.LoadedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE _chart_stats_total SET total_loads=total_loads+1 WHERE id=1"); err != nil {
		return err
	}
	return tx.Commit()
}

// Totals: 累计浏览、当日浏览与累计加载次数
type Totals struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
	Loads int64 `json:"loads"`
}

// GetTotals: 行不存在时按 0 返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_views, total_loads FROM _chart_stats_total WHERE id=1")
	if err := row.Scan(&t.Total, &t.Loads); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT views FROM _chart_stats_daily WHERE day=current_date")
	if err := row2.Scan(&t.Today); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today, "loads", t.Loads)
	return &t, nil
}

// RecentLoads: 最近 limit 次加载，按时间倒序
func (s *Store) RecentLoads(ctx context.Context, limit int) ([]Load, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT source, fingerprint, rows_total, rows_dropped, districts, loaded_at
        FROM _chart_loads ORDER BY loaded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Load
	for rows.Next() {
		var l Load
		if err := rows.Scan(&l.Source, &l.Fingerprint, &l.Rows, &l.Dropped, &l.Districts, &l.LoadedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
