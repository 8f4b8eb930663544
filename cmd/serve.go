package main

import (
	"context"
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
	"golang.org/x/time/rate"

	"github.com/sells-group/eal-scorer/internal/bundle"
	"github.com/sells-group/eal-scorer/internal/config"
	"github.com/sells-group/eal-scorer/internal/scorer"
	"github.com/sells-group/eal-scorer/internal/store"
)

// maxScoreRequestBytes bounds the body of a score request.
const maxScoreRequestBytes = 8 << 20

var (
	servePort    int
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := scorer.NewEALScorer(cfg.Scoring)
		if err != nil {
			return err
		}

		var st store.Store
		if !serveNoStore {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(s, st, cfg.Server, cfg.Input.RepairJudgments),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("store", st != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "serve without a run store (disables /v1/runs)")
	rootCmd.AddCommand(serveCmd)
}

// scoreRequest is the body of POST /v1/score.
type scoreRequest struct {
	Gold   *bundle.GoldDocument   `json:"gold"`
	System *bundle.SystemDocument `json:"system"`
}

type scoreResponse struct {
	Result  *scorer.Result `json:"result"`
	Repairs int            `json:"repairs"`
}

// buildRouter wires the HTTP API. A nil store leaves the run routes unregistered.
func buildRouter(s *scorer.EALScorer, st store.Store, sc config.ServerConfig, repair bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(sc.RequestsPerSecond), sc.Burst)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v1/score", handleScore(s, repair))
	if st != nil {
		r.Get("/v1/runs/{id}", handleGetRun(st))
	}
	return r
}

// rateLimit rejects requests beyond the limiter's token bucket with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleScore(s *scorer.EALScorer, repair bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		body := http.MaxBytesReader(w, r.Body, maxScoreRequestBytes)
		if err := bundle.Decode(body, bundle.FormatJSON, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Gold == nil {
			writeError(w, http.StatusBadRequest, "gold is required")
			return
		}

		in, rep, err := bundle.Input(req.Gold, req.System, repair)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		res, err := s.ScoreDocument(in)
		if err != nil {
			zap.L().Warn("score request rejected",
				zap.String("doc_id", string(in.AnswerKey.DocID)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, scoreResponse{Result: res, Repairs: len(rep.Fixes)})
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := st.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found: "+id)
			return
		}
		if err != nil {
			zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		docs, err := st.ListDocumentScores(r.Context(), id)
		if err != nil {
			zap.L().Error("list document scores failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, runDetail{Run: run, Documents: docs})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
