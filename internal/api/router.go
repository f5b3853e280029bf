package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Document ingestion and lifecycle
		r.Post("/upload", apiHandler.UploadHandler)
		r.Get("/documents", apiHandler.ListDocumentsHandler)
		r.Delete("/documents/{documentID}", apiHandler.DeleteDocumentHandler)

		// Retrieval-augmented query and session management
		r.Route("/rag", func(r chi.Router) {
			r.Post("/query", apiHandler.QueryHandler)
			r.Delete("/session/{sessionID}", apiHandler.ClearSessionHandler)
		})

		// Appointment booking
		r.Route("/booking", func(r chi.Router) {
			r.Post("/book", apiHandler.CreateBookingHandler)
			r.Get("/bookings", apiHandler.ListBookingsHandler)
			r.Get("/bookings/{bookingID}", apiHandler.GetBookingHandler)
		})
	})

	return r
}
