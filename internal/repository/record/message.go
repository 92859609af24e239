package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// AppendMessage inserts a message at the conversation's next sequence number.
// The sequence is assigned inside a transaction, so concurrent appends to the
// same conversation never collide. The assigned Seq is written back to msg.
func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	provenance, err := json.Marshal(msg.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE conversation_id = ?`,
		msg.ConversationID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, tokens, seq, provenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		msg.Tokens, seq, string(provenance), formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	msg.Seq = seq
	return nil
}

// ListMessages returns a conversation's messages in sequence order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tokens, seq, provenance, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, provenance, createdAt string

		err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&msg.Tokens, &msg.Seq, &provenance, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msg.Role = domain.Role(role)
		msg.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(provenance), &msg.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
