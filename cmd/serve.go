package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/queue"
	"github.com/placedir/refresh-cli/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the refresh API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		w, err := buildWorker(st)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, w),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(st *stores, w *worker.Worker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Refresh-Token"},
	}))

	r.Get("/health", func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/enqueue", handleEnqueue(st))
		r.Get("/jobs/{id}", handleGetJob(st))
		r.Get("/stats", handleStats(st))
		r.With(requireToken(cfg.Server.SharedSecret)).Post("/refresh/run", handleRunBatch(w))
	})

	return r
}

// requireToken guards batch-triggering endpoints with a shared secret.
func requireToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			if secret == "" {
				writeJSON(rw, http.StatusForbidden, map[string]string{"error": "refresh endpoint disabled: no shared secret configured"})
				return
			}
			got := req.Header.Get("X-Refresh-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
				return
			}
			next.ServeHTTP(rw, req)
		})
	}
}

func handleEnqueue(st *stores) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		var body struct {
			PlaceID  int64  `json:"place_id"`
			Reason   string `json:"reason"`
			Priority int    `json:"priority"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		reason := model.RefreshReason(body.Reason)
		if body.Reason == "" {
			reason = model.ReasonManual
		}
		if !reason.Valid() {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown reason %q", body.Reason)})
			return
		}

		res, err := st.jobs.Enqueue(req.Context(), body.PlaceID, reason, body.Priority)
		if err != nil {
			if errors.Is(err, queue.ErrInvalidPlace) {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "place not found"})
				return
			}
			zap.L().Error("enqueue failed", zap.Int64("place_id", body.PlaceID), zap.Error(err))
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
			return
		}

		status := http.StatusOK
		if res.IsNew {
			status = http.StatusCreated
		}
		writeJSON(rw, status, res)
	}
}

func handleGetJob(st *stores) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		job, err := st.jobs.GetJob(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, queue.ErrJobNotFound) {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "job not found"})
				return
			}
			zap.L().Error("get job failed", zap.Error(err))
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		writeJSON(rw, http.StatusOK, job)
	}
}

func handleStats(st *stores) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		stats, err := st.jobs.Stats(req.Context())
		if err != nil {
			zap.L().Error("stats failed", zap.Error(err))
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "stats failed"})
			return
		}
		writeJSON(rw, http.StatusOK, stats)
	}
}

func handleRunBatch(w *worker.Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		limit := cfg.Queue.DefaultBatchLimit
		var body struct {
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err == nil && body.Limit > 0 {
			limit = body.Limit
		}

		res, err := w.RunBatch(req.Context(), limit)
		if err != nil {
			zap.L().Error("batch run failed", zap.Error(err))
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "batch run failed"})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]int{
			"processed": res.Processed,
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
		})
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
