package balancer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/pkg/log"
)

/*
Server serves 2 endpoints:
- /healthz reports liveness of the balancing loop
- /metrics exposes the prometheus metrics
*/
type Server struct {
	port       int
	restServer *http.Server
}

func NewServer(port int) *Server {
	return &Server{port: port}
}

func (s *Server) Start() {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(log.RequestLogger(zap.L(), "server"))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	s.restServer = &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", s.port), Handler: router}

	err := s.restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		zap.S().Named("server").Fatalf("failed to start server: %v", err)
	}
}

func (s *Server) Stop() {
	if s.restServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.restServer.Shutdown(ctx); err != nil {
		zap.S().Named("server").Warnf("failed to shut down server: %v", err)
	}
}
