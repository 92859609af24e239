package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// CreateConversation inserts a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	docIDs, err := json.Marshal(conv.DocumentIDs)
	if err != nil {
		return fmt.Errorf("marshal document ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, mode, document_ids, total_tokens, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, string(conv.Mode), string(docIDs),
		conv.TotalTokens, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation fetches a conversation owned by userID.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, mode, document_ids, total_tokens, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`, id, userID)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns all conversations owned by userID, newest first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, mode, document_ids, total_tokens, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation and, through the foreign key
// cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// SetTitle updates the conversation title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

// AddTokens increments the conversation's running token total.
func (s *Store) AddTokens(ctx context.Context, id string, tokens int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET total_tokens = total_tokens + ?, updated_at = ? WHERE id = ?`,
		tokens, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("add tokens: %w", err)
	}
	return nil
}

func scanConversation(r rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	var mode, docIDs, createdAt, updatedAt string

	err := r.Scan(&conv.ID, &conv.UserID, &conv.Title, &mode, &docIDs,
		&conv.TotalTokens, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	conv.Mode = domain.Mode(mode)
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(docIDs), &conv.DocumentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal document ids: %w", err)
	}
	return &conv, nil
}
