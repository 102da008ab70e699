package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/model"
	"deepview/backend/internal/stream"
)

// These tests run the client streaming session against the full server stack,
// so the SSE contract is exercised end to end: request classification, the
// gateway relay or the generation orchestrator on one side, frame parsing and
// delta reconciliation on the other.

func TestEndToEnd_ChatExchange(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"The answer \"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"is 42.\"}}]}\n\n" +
		"data: [DONE]\n\n"
	srv, _ := setupServer(t, &stubGateway{streamBody: upstream})

	session := &stream.Session{
		Endpoint:      srv.URL + "/api/v1/chat",
		FlushInterval: time.Nanosecond,
	}
	var transcript stream.Transcript
	transcript.Append(model.Message{Role: model.RoleUser, Content: "what is the answer?"})

	var mu sync.Mutex
	var state stream.State
	done := 0

	session.Send(context.Background(), transcript.Messages, model.ModeFormal, stream.Callbacks{
		OnDelta: func(text string) {
			mu.Lock()
			defer mu.Unlock()
			state.Content += text
			transcript.UpsertAssistant(state)
		},
		OnDone: func() {
			mu.Lock()
			defer mu.Unlock()
			done++
		},
		OnError: func(msg string) {
			t.Errorf("unexpected stream error: %s", msg)
		},
	})

	assert.Equal(t, 1, done)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, "The answer is 42.", transcript.Last().Content)
}

func TestEndToEnd_VideoRequestDegradesToStoryboard(t *testing.T) {
	srv, _ := setupServer(t, &stubGateway{images: []string{"https://a/storyboard.png"}})

	session := &stream.Session{
		Endpoint:      srv.URL + "/api/v1/chat",
		FlushInterval: time.Nanosecond,
	}
	var transcript stream.Transcript
	transcript.Append(model.Message{Role: model.RoleUser, Content: "generate a video of a storm"})

	var mu sync.Mutex
	var state stream.State
	done := 0

	session.Send(context.Background(), transcript.Messages, model.ModeFormal, stream.Callbacks{
		OnDelta: func(text string) {
			mu.Lock()
			defer mu.Unlock()
			state.Content += text
			transcript.UpsertAssistant(state)
		},
		OnImages: func(urls []string) {
			mu.Lock()
			defer mu.Unlock()
			state.Images = urls
			transcript.UpsertAssistant(state)
		},
		OnDone: func() {
			mu.Lock()
			defer mu.Unlock()
			done++
		},
		OnError: func(msg string) {
			t.Errorf("unexpected stream error: %s", msg)
		},
	})

	assert.Equal(t, 1, done)
	require.Len(t, transcript.Messages, 2, "media and text land in a single assistant entry")
	last := transcript.Last()
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, []string{"https://a/storyboard.png"}, last.Images)
	assert.Contains(t, last.Content, "storyboard")
}

func TestEndToEnd_RateLimitSurfacesAsRecoverableError(t *testing.T) {
	srv, _ := setupServer(t, &stubGateway{streamErr: apperrors.ErrRateLimited})

	session := &stream.Session{Endpoint: srv.URL + "/api/v1/chat"}
	var errMsg string
	done := 0

	session.Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, stream.Callbacks{
		OnDone:  func() { done++ },
		OnError: func(msg string) { errMsg = msg },
	})

	assert.Equal(t, stream.MsgRateLimited, errMsg)
	assert.Zero(t, done)
}
