package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lab-access/internal/web/handlers"
	"github.com/kozaktomas/lab-access/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	engine := s.deps.Engine

	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.deps.Database, s.deps.Extractor, s.logger)
	enrollmentsHandler := handlers.NewEnrollmentsHandler(engine, s.deps.Extractor, s.config.Storage.UploadDir, s.logger)
	identifyHandler := handlers.NewIdentifyHandler(engine, s.deps.Extractor, s.logger)
	accessHandler := handlers.NewAccessHandler(engine, s.deps.Extractor, s.logger)
	permissionsHandler := handlers.NewPermissionsHandler(engine, s.deps.Rooms, s.logger)
	logsHandler := handlers.NewLogsHandler(engine, s.deps.Rooms, s.logger)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", healthHandler.Get)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Enrollment
		r.Post("/enrollments", enrollmentsHandler.Create)
		r.Get("/enrollments/{identity}", enrollmentsHandler.Get)

		// Recognition and access decisions
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/access/check", accessHandler.Check)

		// Grants
		r.Post("/permissions", permissionsHandler.Grant)
		r.Get("/permissions/{identity}", permissionsHandler.List)

		// Audit trail
		r.Get("/logs", logsHandler.List)
		r.Get("/logs/{identity}", logsHandler.List)

		// Campus directory
		if s.deps.Rooms != nil {
			roomsHandler := handlers.NewRoomsHandler(s.deps.Rooms, s.logger)
			r.Get("/rooms", roomsHandler.List)
		}
	})
}
