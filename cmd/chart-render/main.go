package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"district-chart/internal/aggregate"
	"district-chart/internal/chart"
	"district-chart/internal/incident"
	"district-chart/internal/logger"
	"district-chart/internal/neighborhood"
	"district-chart/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：一次性渲染图表到文件
// 背景：读取 CSV → 聚合 → 绘制，结果写入 CHART_OUTPUT；按 CHART_FORMAT 输出 html（默认，含交互）或 svg。
// 约束：数据源可为本地路径或 http(s) 地址；失败直接退出，不做重试。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	src := utils.EnvOr("CRIME_CSV", filepath.Join("data", "crime.csv"))
	format := strings.ToLower(utils.EnvOr("CHART_FORMAT", "html"))
	if format != "html" && format != "svg" {
		l.Error("chart_format_invalid", "format", format)
		os.Exit(1)
	}
	out := utils.EnvOr("CHART_OUTPUT", "chart."+format)

	names, err := neighborhood.LoadYAML(os.Getenv("NEIGHBORHOODS_PATH"))
	if err != nil {
		l.Error("neighborhoods_load_error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.EnvDuration("FETCH_TIMEOUT", 60*time.Second))
	defer cancel()
	recs, err := incident.Open(ctx, src, nil)
	if err != nil {
		l.Error("dataset_load_error", "src", src, "err", err)
		os.Exit(1)
	}

	tally := aggregate.Tally(recs)
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.Debug("district_tally", "district", k, "count", tally[k])
	}

	counts, sum := aggregate.Run(recs)
	l.Info("aggregate_done", "rows", sum.Rows, "kept", sum.Kept, "dropped", sum.Dropped, "districts", sum.Districts)

	f, err := os.Create(out)
	if err != nil {
		l.Error("output_open_error", "path", out, "err", err)
		os.Exit(1)
	}
	layout := chart.Build(counts, names, chart.Options{})
	if format == "svg" {
		err = chart.WriteSVG(f, layout)
	} else {
		err = chart.WriteHTML(f, layout)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.Error("render_error", "path", out, "err", err)
		os.Exit(1)
	}
	l.Info("render_done", "path", out, "format", format, "bars", len(layout.Bars))
}
