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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for grading requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes. Async grading runs are driven by the
// server context, not the request context, so they outlive the request.
func newRouter(ctx context.Context, env *gradingEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/items", func(w http.ResponseWriter, req *http.Request) {
		filter := store.ItemFilter{
			Status: model.ItemStatus(req.URL.Query().Get("status")),
			Title:  req.URL.Query().Get("title"),
		}
		if limit := req.URL.Query().Get("limit"); limit != "" {
			filter.Limit, _ = strconv.Atoi(limit)
		}

		items, err := env.Store.ListItems(req.Context(), filter)
		if err != nil {
			zap.L().Error("list items failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list items failed"})
			return
		}
		writeJSON(w, http.StatusOK, items)
	})

	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		item, err := env.Store.GetItem(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
				return
			}
			zap.L().Error("get item failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get item failed"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			zap.L().Error("get run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get run failed"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Post("/grade/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		item, err := env.Store.GetItem(req.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
				return
			}
			zap.L().Error("get item failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get item failed"})
			return
		}

		if !item.Identified() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "item needs a title and issue before grading"})
			return
		}

		go func() {
			decision, run, err := env.Pipeline.Run(ctx, item, nil)
			if err != nil {
				zap.L().Error("grading failed",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("grading complete",
				zap.String("item_id", item.ID),
				zap.String("run_id", run.ID),
				zap.Float64("grade", decision.Grade),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"item_id": id,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
