package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cvrpplan/internal/api"
	"cvrpplan/internal/buildinfo"
	"cvrpplan/internal/config"
	"cvrpplan/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CVRP_CONFIG"), "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Planning
	mux.HandleFunc("/v1/optimize", srvDeps.OptimizeHandler)
	mux.HandleFunc("/v1/optimizer/config", srvDeps.OptimizerConfigHandler)
	mux.HandleFunc("/v1/plans", srvDeps.PlansHandler)
	mux.HandleFunc("/v1/plans/", srvDeps.PlanByIDHandler) // includes /events/ws

	// Health
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

	// Admin
	mux.HandleFunc("/v1/admin/plan-metrics", srvDeps.PlanMetricsHandler)
	mux.Handle("/metrics", srvDeps.MetricsHandler())
	mux.HandleFunc("/debug", srvDeps.DebugJSON)

	// Docs
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)

	addr := ":" + cfg.Service.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if srvDeps.Notifier != nil {
		srvDeps.Notifier.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("API %s listening on %s", buildinfo.String(), addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	if err := srvDeps.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := routeLabel(r.URL.Path)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}

// staticRoutes are the exact paths registered on the mux.
var staticRoutes = map[string]bool{
	"/v1/optimize":           true,
	"/v1/optimizer/config":   true,
	"/v1/plans":              true,
	"/v1/admin/plan-metrics": true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/debug":                 true,
	"/openapi.yaml":          true,
	"/docs":                  true,
}

// routeLabel collapses plan IDs and unregistered paths so metric label
// cardinality stays bounded.
func routeLabel(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/plans/"); ok {
		if strings.HasSuffix(rest, "/events/ws") {
			return "/v1/plans/{id}/events/ws"
		}
		return "/v1/plans/{id}"
	}
	if staticRoutes[path] {
		return path
	}
	return "other"
}
