package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/assessment"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/questions"
	"github.com/sells-group/visibility-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for assessment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, env.Store, env.Engine, cfg.Assessment.QuestionsFile),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// assessor is the subset of the assessment engine the webhook needs.
type assessor interface {
	Run(ctx context.Context, req model.AssessmentRequest) (*model.Run, error)
}

// newRouter builds the HTTP surface. runCtx outlives individual requests and
// governs the async assessment runs kicked off by the webhook.
func newRouter(runCtx context.Context, st store.Store, engine assessor, questionsFile string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/assess", func(w http.ResponseWriter, req *http.Request) {
		var ar model.AssessmentRequest
		if err := json.NewDecoder(req.Body).Decode(&ar); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if ar.Company.Name == "" || ar.Company.Domain == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "company name and domain are required"})
			return
		}
		if ar.Company.ID == "" {
			ar.Company.ID = uuid.NewString()
		}

		if len(ar.Questions) == 0 && questionsFile != "" {
			battery, err := questions.Load(questionsFile)
			if err != nil {
				zap.L().Error("webhook question battery load failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "question battery unavailable"})
				return
			}
			ar.Questions = battery
		}
		if len(ar.Questions) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one question is required"})
			return
		}

		// Run the assessment asynchronously; the caller polls GET /runs.
		go func() {
			run, err := engine.Run(runCtx, ar)
			if err != nil {
				zap.L().Error("webhook assessment failed",
					zap.String("company", ar.Company.Domain),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook assessment complete",
				zap.String("run_id", run.ID),
				zap.String("company", ar.Company.Domain),
				zap.Float64("score", run.Score.Overall),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"company": ar.Company.Domain,
		})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Status:        model.RunStatus(req.URL.Query().Get("status")),
			CompanyDomain: req.URL.Query().Get("company"),
		}
		if n, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && n > 0 {
			filter.Limit = n
		}

		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			zap.L().Error("get run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get run failed"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ assessor = (*assessment.Engine)(nil)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
