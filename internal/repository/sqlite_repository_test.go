package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepview/backend/internal/model"
	"deepview/backend/internal/repository"
)

func setupSQLite(t *testing.T) (repository.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewSQLiteRepository(db), mock
}

func TestSQLite_GetConversation(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		rows := sqlmock.NewRows([]string{"id", "user_id", "title", "mode", "created_at", "updated_at"}).
			AddRow("conv-1", "user-1", "Title", "formal", now, now)
		mock.ExpectQuery("SELECT id, user_id, title, mode, created_at, updated_at FROM conversations").
			WithArgs("conv-1").
			WillReturnRows(rows)

		conv, err := repo.GetConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "conv-1", conv.ID)
		assert.Equal(t, "formal", conv.Mode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - not found", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		mock.ExpectQuery("SELECT id, user_id, title, mode, created_at, updated_at FROM conversations").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetConversation(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestSQLite_AddMessage(t *testing.T) {
	ctx := context.Background()
	msg := &model.StoredMessage{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Role:           model.RoleAssistant,
		Content:        "Here is your cat.",
		Images:         []string{"https://a/cat.png"},
		CreatedAt:      time.Now().UTC(),
	}

	t.Run("Success - transactional insert and timestamp bump", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO messages").
			WithArgs(msg.ID, "conv-1", msg.Role, msg.Content,
				sqlmock.AnyArg(), sqlmock.AnyArg(), msg.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE conversations SET updated_at").
			WithArgs(sqlmock.AnyArg(), "conv-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.AddMessage(ctx, "conv-1", msg))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - insert error rolls back", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO messages").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.AddMessage(ctx, "conv-1", msg)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLite_GetMessages(t *testing.T) {
	repo, mock := setupSQLite(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "images", "videos", "created_at"}).
		AddRow("m1", "conv-1", "user", "draw a cat", nil, nil, now).
		AddRow("m2", "conv-1", "assistant", "Here.", `["https://a/cat.png"]`, nil, now)
	mock.ExpectQuery("SELECT id, conversation_id, role, content, images, videos").
		WithArgs("conv-1").
		WillReturnRows(rows)

	messages, err := repo.GetMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Nil(t, messages[0].Images)
	assert.Equal(t, []string{"https://a/cat.png"}, messages[1].Images)
}

func TestSQLite_UpdateConversationTitle(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		mock.ExpectExec("UPDATE conversations SET title").
			WithArgs("New Title", sqlmock.AnyArg(), "conv-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateConversationTitle(context.Background(), "conv-1", "New Title"))
	})

	t.Run("Failure - no rows affected", func(t *testing.T) {
		repo, mock := setupSQLite(t)
		mock.ExpectExec("UPDATE conversations SET title").
			WithArgs("New Title", sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateConversationTitle(context.Background(), "missing", "New Title")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestSQLite_CountMessages(t *testing.T) {
	repo, mock := setupSQLite(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
