package migrate

import (
	"database/sql"

	"district-chart/internal/logger"
)

// 背景：首次运行自动创建浏览计数与加载历史表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；聚合结果本身不落库
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _chart_stats_total (
            id INT PRIMARY KEY,
            total_views BIGINT NOT NULL DEFAULT 0,
            total_loads BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _chart_stats_daily (
            day DATE PRIMARY KEY,
            views BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _chart_stats_total(id, total_views, total_loads)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS _chart_loads (
            id SERIAL PRIMARY KEY,
            source TEXT NOT NULL,
            fingerprint TEXT NOT NULL,
            rows_total INT NOT NULL,
            rows_dropped INT NOT NULL,
            districts INT NOT NULL,
            loaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_chart_loads_at ON _chart_loads(loaded_at DESC)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
