package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"Toonbeat/config"
	"Toonbeat/core/audio"
	"Toonbeat/core/player"
	"Toonbeat/logger"
	"Toonbeat/repository"
)

// Deps 服务依赖
type Deps struct {
	Config   *config.Config
	Projects repository.ProjectRepository
	Tracks   repository.TrackRepository
	Resolver player.StreamResolver
	// Prefetch warms upcoming tracks; nil disables preloading.
	Prefetch audio.Capability
}

// NewRouter 注册所有路由
func NewRouter(d Deps) http.Handler {
	if d.Config == nil {
		d.Config = &config.Config{}
	}
	api := NewAPIHandler(d.Projects, d.Tracks, d.Resolver)
	sessions := NewSessionHandler(d)

	router := mux.NewRouter()
	router.HandleFunc("/api/health", api.HealthHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/projects", api.ListProjectsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}", api.DeleteProjectHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/projects/{id}/snapshot", api.GetSnapshotHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}/snapshot", api.PutSnapshotHandler).Methods(http.MethodPut)

	router.HandleFunc("/api/tracks", api.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/stream", api.StreamHandler).Methods(http.MethodGet)

	router.HandleFunc("/ws/session", sessions.ServeWS).Methods(http.MethodGet)

	return corsMiddleware(router)
}

// corsMiddleware wraps the whole router so preflight requests are answered
// even though no route accepts OPTIONS.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
