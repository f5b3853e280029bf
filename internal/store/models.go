package store

import "time"

// DocumentMetadata is the relational record kept for every ingested document.
// The vectors themselves live in the vector index, keyed by the document id.
type DocumentMetadata struct {
	ID             int64     `json:"id"`
	DocumentID     string    `json:"document_id"` // UUID, shared with vector metadata
	Filename       string    `json:"filename"`
	ChunkingMethod string    `json:"chunking_method"` // recursive, semantic, custom
	EmbeddingModel string    `json:"embedding_model"`
	TotalChunks    int       `json:"total_chunks"`
	FileSize       int64     `json:"file_size"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Booking statuses.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	BookingDate time.Time `json:"booking_date"`
	BookingTime string    `json:"booking_time"` // HH:MM
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
