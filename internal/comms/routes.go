package comms

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/comms", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Get("/conversations", h.Conversations)
		r.Post("/conversations/{key}/select", h.Select)
		r.Get("/messages", h.Messages)
		r.Post("/messages", h.Send)
		r.Post("/messages/older", h.Older)
		r.Post("/suggest", h.Suggest)
		r.Get("/audit", h.Audit)
		r.Get("/stream", h.Stream)
	})
}
