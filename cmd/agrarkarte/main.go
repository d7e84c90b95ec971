// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
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

	"agrarkarte/internal/api"
	"agrarkarte/internal/display"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"
	"agrarkarte/internal/middleware"
	"agrarkarte/internal/session"
	"agrarkarte/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := utils.Env("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			// 缓存不可用时退回进程内缓存
			l.Error("redis_ping_error", "err", err)
			rc = nil
		} else {
			l.Info("redis_ping_ok")
		}
	}

	cfg, err := session.ConfigFromEnv(rc)
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	view := display.NewMemory()
	cfg.Display = view
	st, err := session.New(cfg)
	if err != nil {
		l.Error("session_init_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	l.Info("session_ready", "wms", cfg.Catalog.WMSURL, "stride", cfg.Stride, "max_inflight", cfg.ZoneOptions.MaxInFlight)

	hub := api.NewHub()
	go hub.Run(ctx, st.Events())

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, api.BuildRoutes(st, view, hub)))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	if ui := utils.Env("UI_DIST", filepath.Join("ui", "dist")); ui != "" {
		if _, err := os.Stat(ui); err == nil {
			mux.Handle("/", http.FileServer(http.Dir(ui)))
			l.Debug("config_ui_dir", "dir", ui)
		}
	}
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'\n"))
	})

	addr := utils.Env("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if utils.EnvBool("TLS_ENABLE", false) {
		certPath := utils.Env("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.Env("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "agrarkarte.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		if utils.EnvBool("TLS_REDIRECT_ENABLE", false) {
			redirAddr := utils.Env("TLS_REDIRECT_ADDR", ":80")
			go func() {
				l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+addr)
				_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(utils.RedirectToHTTPS(addr)))
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		serve(l.Error, s.ListenAndServeTLS(certPath, keyPath))
		return
	}
	l.Info("listening", "addr", addr)
	serve(l.Error, s.ListenAndServe())
}

func serve(logErr func(string, ...any), err error) {
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logErr("server_error", "err", err)
		os.Exit(1)
	}
}
