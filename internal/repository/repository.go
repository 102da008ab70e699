package repository

import (
	"context"
	"errors"

	"deepview/backend/internal/model"
)

// ErrNotFound is the repository-level sentinel for a missing entity. The
// service layer translates it into the domain-level not-found error, keeping
// business logic decoupled from the database driver's own errors.
var ErrNotFound = errors.New("repository: not found")

// Repository defines the persistence operations the chat core relies on.
// Two implementations exist (SQLite and Redis), selected by configuration.
type Repository interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID, title string) error
	UpdateConversationMode(ctx context.Context, conversationID, mode string) error
	DeleteConversation(ctx context.Context, conversationID string) error

	AddMessage(ctx context.Context, conversationID string, msg *model.StoredMessage) error
	GetMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
}
