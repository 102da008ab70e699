package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deepview/backend/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	query := "INSERT INTO conversations (id, user_id, title, mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, conv.ID, conv.UserID, conv.Title, conv.Mode, conv.CreatedAt, conv.UpdatedAt)
	return err
}

func (r *sqliteRepository) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	query := "SELECT id, user_id, title, mode, created_at, updated_at FROM conversations WHERE id = ?"
	row := r.db.QueryRowContext(ctx, query, conversationID)
	var conv model.Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Mode, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *sqliteRepository) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	query := "SELECT id, user_id, title, mode, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Mode, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, &conv)
	}
	return conversations, rows.Err()
}

func (r *sqliteRepository) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	return r.updateConversationField(ctx, "title", title, conversationID)
}

func (r *sqliteRepository) UpdateConversationMode(ctx context.Context, conversationID, mode string) error {
	return r.updateConversationField(ctx, "mode", mode, conversationID)
}

func (r *sqliteRepository) updateConversationField(ctx context.Context, field, value, conversationID string) error {
	query := fmt.Sprintf("UPDATE conversations SET %s = ?, updated_at = ? WHERE id = ?", field)
	res, err := r.db.ExecContext(ctx, query, value, time.Now().UTC(), conversationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conversationID)
	return err
}

// AddMessage inserts the message and bumps the conversation timestamp in one
// transaction, so the sidebar ordering never drifts from the message log.
func (r *sqliteRepository) AddMessage(ctx context.Context, conversationID string, msg *model.StoredMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	images, err := marshalURIList(msg.Images)
	if err != nil {
		return fmt.Errorf("could not encode images: %w", err)
	}
	videos, err := marshalURIList(msg.Videos)
	if err != nil {
		return fmt.Errorf("could not encode videos: %w", err)
	}

	insertQuery := `
		INSERT INTO messages (id, conversation_id, role, content, images, videos, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		msg.ID, conversationID, msg.Role, msg.Content, images, videos, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("could not update conversation timestamp: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteRepository) GetMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, images, videos, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.StoredMessage
	for rows.Next() {
		var msg model.StoredMessage
		var images, videos sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &images, &videos, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if images.Valid {
			msg.Images = unmarshalURIList(images.String)
		}
		if videos.Valid {
			msg.Videos = unmarshalURIList(videos.String)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *sqliteRepository) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&count)
	return count, err
}

func marshalURIList(uris []string) (sql.NullString, error) {
	if len(uris) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(uris)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalURIList(data string) []string {
	var uris []string
	if err := json.Unmarshal([]byte(data), &uris); err != nil {
		return nil
	}
	return uris
}
