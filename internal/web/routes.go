package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-recognizer/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.service, s.log)
	subjectsHandler := handlers.NewSubjectsHandler(s.service, s.log)
	statsHandler := handlers.NewStatsHandler(s.service, s.log)
	s.enrollment = handlers.NewEnrollmentHandler(s.service, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/recognize/candidates", recognizeHandler.Candidates)

		// Enrollment
		r.Post("/enrollment", s.enrollment.Start)
		r.Get("/enrollment", s.enrollment.Status)
		r.Delete("/enrollment", s.enrollment.Stop)
		r.Get("/enrollment/events", s.enrollment.Events)

		// Photo library
		r.Get("/subjects", subjectsHandler.List)
		r.Get("/subjects/{name}/photos", subjectsHandler.Photos)
		r.Get("/subjects/{name}/photos/{file}", subjectsHandler.Photo)

		// Embedding store
		r.Get("/embeddings", statsHandler.Get)
		r.Delete("/subjects/{name}/embeddings", statsHandler.RemoveSubject)
	})
}
