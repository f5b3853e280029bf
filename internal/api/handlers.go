package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/mail"
	"github.com/ragstack/rag-backend/internal/store"
)

type APIHandler struct {
	agent  *core.AgentService
	ingest *core.IngestService
	store  *store.SQLiteStore
	mailer *mail.Mailer // nil when SMTP is not configured

	defaultChunking string
	defaultBackend  string
}

func NewAPIHandler(agent *core.AgentService, ingest *core.IngestService, s *store.SQLiteStore, mailer *mail.Mailer, defaultChunking, defaultBackend string) *APIHandler {
	return &APIHandler{
		agent:           agent,
		ingest:          ingest,
		store:           s,
		mailer:          mailer,
		defaultChunking: defaultChunking,
		defaultBackend:  defaultBackend,
	}
}

// errorResponse is the structured error payload: it identifies the failed
// stage and never leaks a raw trace.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

func writeError(w http.ResponseWriter, status int, stage, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, Stage: stage})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var confErr *core.ConfigurationError
	var unavailErr *core.BackendUnavailableError
	switch {
	case errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrUnknownBackend):
		return http.StatusBadRequest
	case errors.As(err, &unavailErr):
		return http.StatusBadGateway
	case errors.As(err, &confErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type UploadRequest struct {
	Filename       string `json:"filename"`
	Text           string `json:"text"`
	ChunkingMethod string `json:"chunking_method,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid request body: "+err.Error())
		return
	}
	if req.Filename == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "request", "filename and text are required")
		return
	}
	if req.ChunkingMethod == "" {
		req.ChunkingMethod = h.defaultChunking
	}
	if req.EmbeddingModel == "" {
		req.EmbeddingModel = h.defaultBackend
	}

	result, err := h.ingest.Ingest(r.Context(), req.Filename, req.Text, req.ChunkingMethod, req.EmbeddingModel)
	if err != nil {
		log.Printf("Error ingesting %s (method=%s, backend=%s): %v", req.Filename, req.ChunkingMethod, req.EmbeddingModel, err)
		writeError(w, statusForError(err), "ingest", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.ingest.ListDocuments()
	if err != nil {
		log.Printf("Error listing documents: %v", err)
		writeError(w, http.StatusInternalServerError, "metadata", "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []store.DocumentMetadata{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if err := h.ingest.DeleteDocument(r.Context(), documentID); err != nil {
		log.Printf("Error deleting document %s: %v", documentID, err)
		writeError(w, statusForError(err), "delete", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid request body: "+err.Error())
		return
	}

	answer, err := h.agent.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		log.Printf("Error answering query (session=%s): %v", req.SessionID, err)
		writeError(w, statusForError(err), "query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *APIHandler) ClearSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.agent.ClearSession(r.Context(), sessionID); err != nil {
		log.Printf("Error clearing session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "session", "Failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session cleared"})
}

type BookingRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	BookingDate string `json:"booking_date"` // YYYY-MM-DD
	BookingTime string `json:"booking_time"` // HH:MM
	Notes       string `json:"notes,omitempty"`
}

func (h *APIHandler) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid request body: "+err.Error())
		return
	}
	if req.FullName == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "request", "full_name and email are required")
		return
	}

	bookingDate, err := time.Parse("2006-01-02", req.BookingDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid date format, expected YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.BookingTime); err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid time format, expected HH:MM")
		return
	}

	booking := store.Booking{
		FullName:    req.FullName,
		Email:       req.Email,
		BookingDate: bookingDate,
		BookingTime: req.BookingTime,
		Notes:       req.Notes,
	}
	if err := h.store.CreateBooking(&booking); err != nil {
		log.Printf("Error creating booking for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "booking", "Failed to create booking")
		return
	}

	if h.mailer != nil {
		if err := h.mailer.SendBookingConfirmation(req.Email, req.FullName, req.BookingDate, req.BookingTime); err != nil {
			// The booking stands; only the notification failed.
			log.Printf("Failed to send confirmation email for booking %d: %v", booking.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (h *APIHandler) ListBookingsHandler(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookings()
	if err != nil {
		log.Printf("Error listing bookings: %v", err)
		writeError(w, http.StatusInternalServerError, "booking", "Failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []store.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *APIHandler) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request", "Invalid booking id")
		return
	}

	booking, err := h.store.GetBookingByID(id)
	if err != nil {
		log.Printf("Error getting booking %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "booking", "Failed to get booking")
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "booking", "Booking not found")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
