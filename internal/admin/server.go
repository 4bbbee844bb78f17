package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/cache"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/internal/usecase"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// Server exposes the panel API: catalog CRUD, settings, queue controls
// and the interaction log.
type Server struct {
	catalog      storage.CatalogRepo
	settings     storage.SettingsRepo
	interactions storage.InteractionRepo
	queue        *usecase.QueueService
	configCache  *cache.ConfigCache

	httpServer *http.Server
}

// NewServer creates the admin API server listening on the given port.
func NewServer(
	port int,
	catalog storage.CatalogRepo,
	settings storage.SettingsRepo,
	interactions storage.InteractionRepo,
	queue *usecase.QueueService,
	configCache *cache.ConfigCache,
) *Server {
	s := &Server{
		catalog:      catalog,
		settings:     settings,
		interactions: interactions,
		queue:        queue,
		configCache:  configCache,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/units", func(r chi.Router) {
			r.Get("/", s.listUnits)
			r.Post("/", s.saveUnit)
			r.Put("/{id}", s.saveUnit)
			r.Delete("/{id}", s.deleteUnit)
		})
		r.Route("/departments", func(r chi.Router) {
			r.Get("/", s.listDepartments)
			r.Post("/", s.saveDepartment)
			r.Put("/{id}", s.saveDepartment)
			r.Delete("/{id}", s.deleteDepartment)
		})
		r.Route("/sellers", func(r chi.Router) {
			r.Get("/", s.listSellers)
			r.Post("/", s.saveSeller)
			r.Put("/{id}", s.saveSeller)
			r.Delete("/{id}", s.deleteSeller)
		})
		r.Route("/price-items", func(r chi.Router) {
			r.Get("/", s.listPriceItems)
			r.Post("/", s.savePriceItem)
			r.Put("/{id}", s.savePriceItem)
			r.Delete("/{id}", s.deletePriceItem)
		})
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.listSettings)
			r.Put("/{key}", s.upsertSetting)
		})
		r.Route("/queue", func(r chi.Router) {
			r.Get("/summary", s.queueSummary)
			r.Post("/departments/{id}/close", s.closeDepartmentQueue)
			r.Post("/departments/{id}/drain", s.drainDepartmentQueue)
		})
		r.Get("/interactions", s.listInteractions)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("Starting admin API server", zap.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	utils.SafeGo(func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}, nil)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// refreshCache reloads the config snapshot after a mutation so the bot
// sees the edit without waiting for the reload timer.
func (s *Server) refreshCache(ctx context.Context) {
	if err := s.configCache.Refresh(ctx); err != nil {
		logger.FromContext(ctx).Warn("Config cache refresh after admin edit failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsNotFoundError(err):
		status = http.StatusNotFound
	case apperrors.IsBadRequestError(err) || apperrors.IsValidationError(err):
		status = http.StatusBadRequest
	case apperrors.IsDuplicateError(err) || apperrors.IsConflictError(err):
		status = http.StatusConflict
	}
	utils.WriteJSONResponse(w, status, errorResponse{Error: err.Error()})
}
