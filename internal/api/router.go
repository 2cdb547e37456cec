package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.HandleReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/tools", h.HandleListTools)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/start", h.HandleStartSession)
			r.Post("/turns", h.HandleTurn)
			r.Get("/events", h.HandleListEvents)
			r.Get("/booking", h.HandleGetBooking)
			r.Post("/end", h.HandleEndSession)
		})
	})
	r.Get("/ws/sessions/{id}", h.HandleWS)

	return r
}
