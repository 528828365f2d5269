package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sess *session.Session, db index.ThreadIndex, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/status", h.Status)

	// Open thread.
	r.Route("/thread", func(r chi.Router) {
		r.Get("/", h.GetThread)
		r.Post("/", h.NewThread)
		r.Patch("/", h.UpdateThread)
		r.Post("/load", h.LoadThread)
		r.Post("/save", h.SaveThread)
		r.Post("/reload", h.ReloadThread)
		r.Get("/export", h.ExportThread)
		r.Get("/drift", h.Drift)
	})

	// Nodes of the open thread.
	r.Route("/nodes", func(r chi.Router) {
		r.Post("/", h.AddNode)
		r.Patch("/{id}", h.UpdateNode)
		r.Delete("/{id}", h.DeleteNode)
		r.Post("/{id}/insert", h.InsertNode)
		r.Post("/{id}/move", h.MoveNode)
		r.Get("/{id}/location", h.Locate)
		r.Post("/{id}/comments", h.AddComment)
		r.Put("/{id}/comments/{idx}", h.UpdateComment)
		r.Delete("/{id}/comments/{idx}", h.RemoveComment)
		r.Post("/{id}/marks", h.ToggleMark)
	})
	r.Put("/selection", h.Select)
	r.Get("/marks", h.Marks)

	// Workspace.
	r.Get("/recent", h.Recent)
	r.Get("/threads", h.ListThreads)
	r.Delete("/threads", h.DeleteThreadFile)
	r.Post("/threads/move", h.MoveThreadFile)
	r.Get("/search", h.Search)
	r.Get("/references", h.References)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
