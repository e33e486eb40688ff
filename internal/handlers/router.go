package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Router assembles the HTTP surface. Order matters: metrics wraps
// everything, CSRF runs before the auth gate, the gate runs before any
// per-resource check.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.MetricsMiddleware)
	r.Use(h.CSRFMiddleware)

	r.Get("/healthz", h.HandleHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		// Logout stays outside the gate so a second call, or one with an
		// already-dead token, still clears cookies and returns 200.
		r.Post("/logout", h.Logout)
		r.Get("/csrf", h.HandleCSRF)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/me", h.Me)

			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/", h.ListUsers)
				r.Post("/{id}/approve", h.ApproveUser)
				r.Put("/{id}/role", h.UpdateUserRole)
				r.Delete("/{id}", h.DeleteUser)
				r.Delete("/{id}/sessions", h.RevokeUserSessions)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{id}", h.GetProject)
				r.Put("/{id}", h.UpdateProject)
				r.Delete("/{id}", h.DeleteProject)
				r.Get("/{id}/members", h.ListProjectMembers)
				r.Post("/{id}/members", h.AddProjectMember)
				r.Delete("/{id}/members/{userID}", h.RemoveProjectMember)
				r.Get("/{id}/boards", h.ListBoards)
				r.Post("/{id}/boards", h.CreateBoard)
			})

			r.Route("/boards", func(r chi.Router) {
				r.Get("/{id}", h.GetBoard)
				r.Put("/{id}", h.UpdateBoard)
				r.Delete("/{id}", h.DeleteBoard)
				r.Post("/{id}/columns", h.CreateColumn)
				r.Put("/{id}/columns/reorder", h.ReorderColumns)
				r.Get("/{id}/tasks", h.ListTasks)
				r.Post("/{id}/tasks", h.CreateTask)
			})

			r.Route("/columns", func(r chi.Router) {
				r.Put("/{id}", h.UpdateColumn)
				r.Delete("/{id}", h.DeleteColumn)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/{id}", h.GetTask)
				r.Put("/{id}", h.UpdateTask)
				r.Delete("/{id}", h.DeleteTask)
				r.Put("/{id}/move", h.MoveTask)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/ws", h.HandleWebSocket)
	})

	return r
}
