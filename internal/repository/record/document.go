package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// CreateDocument inserts a new document record.
func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, filename, format, status, fail_reason,
			text_length, chunk_count, content_sha, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, string(doc.Format), string(doc.Status), doc.FailReason,
		doc.TextLength, doc.ChunkCount, doc.ContentSHA,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument fetches a document owned by userID.
func (s *Store) GetDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, format, status, fail_reason,
			text_length, chunk_count, content_sha, created_at, updated_at
		 FROM documents WHERE id = ? AND user_id = ?`, id, userID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents owned by userID, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, filename, format, status, fail_reason,
			text_length, chunk_count, content_sha, created_at, updated_at
		 FROM documents WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// FindByContentSHA looks up a user's document by content hash, used to make
// repeated uploads of identical content idempotent.
func (s *Store) FindByContentSHA(ctx context.Context, userID, sha string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, format, status, fail_reason,
			text_length, chunk_count, content_sha, created_at, updated_at
		 FROM documents WHERE user_id = ? AND content_sha = ?
		 ORDER BY created_at DESC LIMIT 1`, userID, sha)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find by content sha: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes a document record owned by userID.
func (s *Store) DeleteDocument(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ClaimForProcessing atomically moves a document from pending or failed to
// processing. Returns false when another worker already holds the claim or
// the document is ready.
func (s *Store) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, fail_reason = '', updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(domain.StatusProcessing), formatTime(time.Now()),
		id, string(domain.StatusPending), string(domain.StatusFailed))
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	return n == 1, nil
}

// MarkReady records a successful ingestion.
func (s *Store) MarkReady(ctx context.Context, id string, textLength, chunkCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, text_length = ?, chunk_count = ?, updated_at = ?
		 WHERE id = ?`,
		string(domain.StatusReady), textLength, chunkCount, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

// MarkFailed records a failed ingestion with its cause.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, fail_reason = ?, updated_at = ?
		 WHERE id = ?`,
		string(domain.StatusFailed), reason, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var format, status, createdAt, updatedAt string

	err := r.Scan(&doc.ID, &doc.UserID, &doc.Filename, &format, &status, &doc.FailReason,
		&doc.TextLength, &doc.ChunkCount, &doc.ContentSHA, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	doc.Format = domain.Format(format)
	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}
