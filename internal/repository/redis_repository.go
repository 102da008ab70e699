package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deepview/backend/internal/model"
)

// Key layout:
//
//	conversation:{id}            hash of conversation fields
//	conversations:{userID}       zset of conversation ids scored by -updated_at
//	messages:{conversationID}    list of JSON-encoded messages, oldest first
type redisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) Repository {
	return &redisRepository{client: client}
}

func conversationKey(id string) string { return "conversation:" + id }

func userIndexKey(userID string) string { return "conversations:" + userID }

func messagesKey(conversationID string) string { return "messages:" + conversationID }

func (r *redisRepository) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, conversationKey(conv.ID), conversationToMap(conv))
	pipe.ZAdd(ctx, userIndexKey(conv.UserID), redis.Z{
		Score:  float64(-conv.UpdatedAt.UnixNano()),
		Member: conv.ID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	fields, err := r.client.HGetAll(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return conversationFromMap(fields)
}

func (r *redisRepository) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	ids, err := r.client.ZRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var conversations []*model.Conversation
	for _, id := range ids {
		conv, err := r.GetConversation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (r *redisRepository) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	return r.updateConversationField(ctx, conversationID, "title", title)
}

func (r *redisRepository) UpdateConversationMode(ctx context.Context, conversationID, mode string) error {
	return r.updateConversationField(ctx, conversationID, "mode", mode)
}

func (r *redisRepository) updateConversationField(ctx context.Context, conversationID, field, value string) error {
	conv, err := r.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, conversationKey(conversationID), field, value, "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, userIndexKey(conv.UserID), redis.Z{
		Score:  float64(-now.UnixNano()),
		Member: conversationID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	conv, err := r.GetConversation(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, conversationKey(conversationID))
	pipe.Del(ctx, messagesKey(conversationID))
	pipe.ZRem(ctx, userIndexKey(conv.UserID), conversationID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) AddMessage(ctx context.Context, conversationID string, msg *model.StoredMessage) error {
	conv, err := r.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}

	now := time.Now().UTC()
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, messagesKey(conversationID), data)
	pipe.HSet(ctx, conversationKey(conversationID), "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, userIndexKey(conv.UserID), redis.Z{
		Score:  float64(-now.UnixNano()),
		Member: conversationID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error) {
	raw, err := r.client.LRange(ctx, messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var messages []model.StoredMessage
	for _, item := range raw {
		var msg model.StoredMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("could not decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *redisRepository) CountMessages(ctx context.Context, conversationID string) (int, error) {
	n, err := r.client.LLen(ctx, messagesKey(conversationID)).Result()
	return int(n), err
}

func conversationToMap(conv *model.Conversation) map[string]any {
	return map[string]any{
		"id":         conv.ID,
		"user_id":    conv.UserID,
		"title":      conv.Title,
		"mode":       conv.Mode,
		"created_at": conv.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": conv.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func conversationFromMap(fields map[string]string) (*model.Conversation, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("could not parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("could not parse updated_at: %w", err)
	}
	return &model.Conversation{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Title:     fields["title"],
		Mode:      fields["mode"],
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
