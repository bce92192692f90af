package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/pipeline"
	"github.com/painradar/painradar/internal/scheduler"
	"github.com/painradar/painradar/internal/throttle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports over HTTP and refresh tracked queries on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.Info("Starting painradar")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		schedulerService := scheduler.NewService(cfg, a.service)
		if err := schedulerService.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer schedulerService.Stop()

		api := newServer(a.service, throttle.New(cfg.ThrottleLimit, cfg.ThrottleWindow), cfg.TrackedQueries, cfg.TrustedProxies)
		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Port),
			Handler:      api.router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logrus.Infof("HTTP server starting on port %s", cfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("HTTP server failed: %v", err)
			}
		}()

		// Wait for interrupt signal to gracefully shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logrus.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logrus.Errorf("Server forced to shutdown: %v", err)
		}

		logrus.Info("Server exited")
		return nil
	},
}

// reportService is the part of pipeline.Service the HTTP API uses
type reportService interface {
	GetReport(ctx context.Context, query string) (*models.Report, error)
	Refresh(ctx context.Context, query string) (*models.Report, error)
	RefreshTracked(ctx context.Context, queries []string) error
	StoredQueries(ctx context.Context) ([]string, error)
	Forget(ctx context.Context, query string) error
}

// backgroundRefreshTimeout bounds a refresh started by POST /refresh
const backgroundRefreshTimeout = 30 * time.Minute

type server struct {
	reports reportService
	limiter *throttle.Limiter
	tracked []string
	trusted map[string]bool
	now     func() time.Time

	refreshing atomic.Bool
}

func newServer(reports reportService, limiter *throttle.Limiter, tracked, trustedProxies []string) *server {
	trusted := make(map[string]bool, len(trustedProxies))
	for _, ip := range trustedProxies {
		trusted[ip] = true
	}
	return &server{
		reports: reports,
		limiter: limiter,
		tracked: tracked,
		trusted: trusted,
		now:     time.Now,
	}
}

func (s *server) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.healthCheckHandler).Methods("GET")

	// Every route that can start a pipeline run goes through the throttle
	api := router.NewRoute().Subrouter()
	api.Use(s.throttled)
	api.HandleFunc("/report", s.reportHandler).Methods("GET")
	api.HandleFunc("/report", s.forgetHandler).Methods("DELETE")
	api.HandleFunc("/refresh", s.refreshHandler).Methods("POST")
	return router
}

func (s *server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"clients":   s.limiter.Clients(),
	})
}

func (s *server) throttled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, now := s.clientIP(r), s.now()
		if err := s.limiter.Allow(client, now); err != nil {
			logrus.Debugf("Throttled %s on %s", client, r.URL.Path)
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(client, now)))
		next.ServeHTTP(w, r)
	})
}

func (s *server) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.GetReport(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) forgetHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := s.reports.Forget(r.Context(), q); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": q})
}

// refreshHandler regenerates one query synchronously when q is given,
// otherwise refreshes the tracked queries in the background. Only one
// background refresh runs at a time.
func (s *server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		report, err := s.reports.Refresh(r.Context(), q)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if !s.refreshing.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, errors.New("refresh already running"))
		return
	}
	go func() {
		defer s.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()

		queries, err := s.refreshQueries(ctx)
		if err != nil {
			logrus.Errorf("Manual refresh failed: %v", err)
			return
		}
		if err := s.reports.RefreshTracked(ctx, queries); err != nil {
			logrus.Errorf("Manual refresh failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"message": "Refresh triggered"})
}

// refreshQueries falls back to every stored report when nothing is tracked
func (s *server) refreshQueries(ctx context.Context) ([]string, error) {
	if len(s.tracked) > 0 {
		return s.tracked, nil
	}
	return s.reports.StoredQueries(ctx)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pipeline.ErrNoResults):
		writeError(w, http.StatusNotFound, err)
	default:
		logrus.Errorf("Report request failed: %v", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// clientIP is the socket peer. When the peer is a trusted proxy the nearest
// untrusted X-Forwarded-For hop is used instead.
func (s *server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.trusted[host] {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !s.trusted[hop] {
			return hop
		}
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
