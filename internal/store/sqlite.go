package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS document_metadata (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        document_id TEXT UNIQUE NOT NULL,
        filename TEXT NOT NULL,
        chunking_method TEXT NOT NULL,
        embedding_model TEXT NOT NULL,
        total_chunks INTEGER NOT NULL,
        file_size INTEGER NOT NULL,
        uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS booking_requests (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        full_name TEXT NOT NULL,
        email TEXT NOT NULL,
        booking_date DATETIME NOT NULL,
        booking_time TEXT NOT NULL,
        status TEXT DEFAULT 'pending',
        notes TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Document metadata methods

func (s *SQLiteStore) CreateDocumentMetadata(m *DocumentMetadata) error {
	m.UploadedAt = time.Now()
	stmt, err := s.db.Prepare("INSERT INTO document_metadata (document_id, filename, chunking_method, embedding_model, total_chunks, file_size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare document_metadata insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(m.DocumentID, m.Filename, m.ChunkingMethod, m.EmbeddingModel, m.TotalChunks, m.FileSize, m.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to execute document_metadata insert: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetDocumentMetadata(documentID string) (*DocumentMetadata, error) {
	var m DocumentMetadata
	err := s.db.QueryRow(
		"SELECT id, document_id, filename, chunking_method, embedding_model, total_chunks, file_size, uploaded_at FROM document_metadata WHERE document_id = ?",
		documentID,
	).Scan(&m.ID, &m.DocumentID, &m.Filename, &m.ChunkingMethod, &m.EmbeddingModel, &m.TotalChunks, &m.FileSize, &m.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query document metadata: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) ListDocuments() ([]DocumentMetadata, error) {
	rows, err := s.db.Query("SELECT id, document_id, filename, chunking_method, embedding_model, total_chunks, file_size, uploaded_at FROM document_metadata ORDER BY uploaded_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentMetadata
	for rows.Next() {
		var m DocumentMetadata
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Filename, &m.ChunkingMethod, &m.EmbeddingModel, &m.TotalChunks, &m.FileSize, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, m)
	}
	return docs, nil
}

// DeleteDocumentMetadata removes the record for a document id. Deleting an
// absent id is a no-op, matching the vector index's deletion semantics.
func (s *SQLiteStore) DeleteDocumentMetadata(documentID string) error {
	_, err := s.db.Exec("DELETE FROM document_metadata WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document metadata: %w", err)
	}
	return nil
}

// Booking methods

func (s *SQLiteStore) CreateBooking(b *Booking) error {
	if b.Status == "" {
		b.Status = BookingStatusPending
	}
	b.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO booking_requests (full_name, email, booking_date, booking_time, status, notes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare booking insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(b.FullName, b.Email, b.BookingDate, b.BookingTime, b.Status, b.Notes, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute booking insert: %w", err)
	}
	b.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetBookingByID(id int64) (*Booking, error) {
	var b Booking
	var notes sql.NullString
	err := s.db.QueryRow(
		"SELECT id, full_name, email, booking_date, booking_time, status, notes, created_at FROM booking_requests WHERE id = ?",
		id,
	).Scan(&b.ID, &b.FullName, &b.Email, &b.BookingDate, &b.BookingTime, &b.Status, &notes, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query booking: %w", err)
	}
	if notes.Valid {
		b.Notes = notes.String
	}
	return &b, nil
}

func (s *SQLiteStore) ListBookings() ([]Booking, error) {
	rows, err := s.db.Query("SELECT id, full_name, email, booking_date, booking_time, status, notes, created_at FROM booking_requests ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var notes sql.NullString
		if err := rows.Scan(&b.ID, &b.FullName, &b.Email, &b.BookingDate, &b.BookingTime, &b.Status, &notes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		if notes.Valid {
			b.Notes = notes.String
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}
