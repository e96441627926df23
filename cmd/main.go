// 程序入口：读取配置、加载数据集、启动定期刷新与 HTTP 服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"district-chart/internal/api"
	"district-chart/internal/dataset"
	"district-chart/internal/logger"
	"district-chart/internal/metrics"
	"district-chart/internal/middleware"
	"district-chart/internal/migrate"
	"district-chart/internal/neighborhood"
	"district-chart/internal/store"
	"district-chart/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiBase := utils.EnvOr("API_BASE", "/api")
	src := utils.EnvOr("CRIME_CSV", filepath.Join("data", "crime.csv"))
	l.Debug("config_source", "src", src, "api_base", apiBase)

	names, err := neighborhood.LoadYAML(os.Getenv("NEIGHBORHOODS_PATH"))
	if err != nil {
		l.Error("neighborhoods_load_error", "err", err)
		os.Exit(1)
	}

	deps := api.Deps{
		Names:      names,
		CacheTTL:   utils.EnvDuration("CHART_CACHE_TTL", 24*time.Hour),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		Holder:     &dataset.Holder{},
	}

	var st *store.Store
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	if db == nil {
		l.Info("db_disabled")
	} else {
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		deps.Stats = st
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		deps.Cache = rc
	}

	rl := &dataset.Reloader{
		Src:      src,
		Client:   &http.Client{Timeout: utils.EnvDuration("FETCH_TIMEOUT", 30*time.Second)},
		Holder:   deps.Holder,
		Interval: utils.EnvDuration("RELOAD_INTERVAL", 0),
	}
	if st != nil {
		rl.OnLoad = func(ctx context.Context, s *dataset.Snapshot) {
			err := st.RecordLoad(ctx, store.Load{
				Source:      s.Source,
				Fingerprint: s.Fingerprint,
				Rows:        s.Summary.Rows,
				Dropped:     s.Summary.Dropped,
				Districts:   s.Summary.Districts,
				LoadedAt:    s.LoadedAt,
			})
			if err != nil {
				l.Error("load_record_error", "err", err)
			}
		}
	}
	deps.Reloader = rl

	if _, err := rl.Reload(ctx); err != nil {
		l.Error("dataset_load_error", "src", src, "err", err)
		os.Exit(1)
	}
	snap := deps.Holder.Current()
	l.Info("dataset_load_ok", "rows", snap.Summary.Rows, "dropped", snap.Summary.Dropped, "districts", snap.Summary.Districts)
	reloadDone := rl.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, api.BuildRoutes(deps)))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.Handle("/", api.ChartPage(deps))

	addr := utils.EnvOr("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	<-reloadDone
	l.Info("shutdown_done")
}
