package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(ui.OptionalAuthMiddleware)

		// Public pages.
		r.Get("/", ui.HandleHome)
		r.Get("/login", ui.HandleLogin)
		r.Post("/login", ui.HandleLoginPost)
		r.Get("/signup", ui.HandleSignup)
		r.Post("/signup", ui.HandleSignupPost)
		r.Get("/logout", ui.HandleLogout)

		r.Get("/workflows", ui.HandleWorkflowList)
		r.Get("/workflows/{id}", ui.HandleWorkflowDetail)
		r.Get("/assays", ui.HandleAssayList)
		r.Get("/assays/{id}", ui.HandleAssayDetail)

		// Signed-in pages.
		r.Group(func(r chi.Router) {
			r.Use(ui.AuthMiddleware)

			r.Get("/dashboard", ui.HandleDashboard)
			r.Post("/workflows/{id}/start", ui.HandleStartRun)
			r.Route("/runs/{id}", func(r chi.Router) {
				r.Post("/advance", ui.HandleRunAction(ui.catalog.AdvanceUserWorkflow))
				r.Post("/complete", ui.HandleRunAction(ui.catalog.CompleteUserWorkflow))
				r.Post("/abandon", ui.HandleRunAction(ui.catalog.AbandonUserWorkflow))
			})

			// Admin routes (admin role required).
			r.Route("/admin", func(r chi.Router) {
				r.Use(ui.AdminMiddleware)
				r.Get("/", ui.HandleAdmin)
				r.Get("/workflows/new", ui.HandleWorkflowNew)
				r.Post("/workflows/new", ui.HandleWorkflowNewPost)
				r.Get("/assays/new", ui.HandleAssayNew)
				r.Post("/assays/new", ui.HandleAssayNewPost)
			})
		})
	})
}
