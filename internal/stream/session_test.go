package stream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepview/backend/internal/model"
	"deepview/backend/internal/stream"
)

type recordedEvents struct {
	mu       sync.Mutex
	deltas   []string
	images   [][]string
	videos   [][]string
	progress []int
	errors   []string
	done     int
}

func (r *recordedEvents) callbacks() stream.Callbacks {
	return stream.Callbacks{
		OnDelta: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.deltas = append(r.deltas, text)
		},
		OnImages: func(urls []string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.images = append(r.images, urls)
		},
		OnVideos: func(urls []string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.videos = append(r.videos, urls)
		},
		OnProgress: func(p int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, p)
		},
		OnDone: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.done++
		},
		OnError: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
	}
}

func (r *recordedEvents) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for _, d := range r.deltas {
		out += d
	}
	return out
}

func sseServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newSession(srv *httptest.Server) *stream.Session {
	return &stream.Session{
		Endpoint:      srv.URL,
		FlushInterval: time.Nanosecond,
	}
}

func writeFrames(w http.ResponseWriter, frames ...string) {
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	for _, f := range frames {
		fmt.Fprintf(w, "data: %s\n\n", f)
		flusher.Flush()
	}
}

func TestSession_TextStream(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo "}}]}`,
			`{"choices":[{"delta":{"content":"world"}}]}`,
			`[DONE]`,
		)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, rec.callbacks())

	assert.Equal(t, "Hello world", rec.text())
	assert.Equal(t, 1, rec.done, "OnDone fires exactly once")
	assert.Empty(t, rec.errors)
}

func TestSession_FrameSplitAcrossWrites(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"spl`)
		flusher.Flush()
		fmt.Fprint(w, "it\"}}]}\n\ndata: [DONE]\n\n")
		flusher.Flush()
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, rec.callbacks())

	assert.Equal(t, "split", rec.text())
	assert.Equal(t, 1, rec.done)
}

func TestSession_GarbageFrameSkipped(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`{"choices":[{"delta":{"content":"good"}}]}`,
			`{"choices":[{"delta":{"content":`,
			`{"choices":[{"delta":{"content":" frames"}}]}`,
			`[DONE]`,
		)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, rec.callbacks())

	assert.Equal(t, "good frames", rec.text())
	assert.Equal(t, 1, rec.done)
	assert.Empty(t, rec.errors)
}

func TestSession_ImagesForceFlushAndReplace(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`{"choices":[{"delta":{"content":"Here:"}}]}`,
			`{"choices":[{"delta":{"images":["https://a/1.png"]}}]}`,
			`{"choices":[{"delta":{"images":["https://a/2.png"]}}]}`,
			`[DONE]`,
		)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "draw"},
	}, model.ModeFormal, rec.callbacks())

	require.Len(t, rec.images, 2)
	assert.Equal(t, []string{"https://a/1.png"}, rec.images[0])
	assert.Equal(t, []string{"https://a/2.png"}, rec.images[1], "later set replaces, not appends")
	assert.Equal(t, "Here:", rec.text())
}

func TestSession_VideoProgressThenResult(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`{"choices":[{"delta":{"content":"Starting video generation..."}}]}`,
			`{"choices":[{"delta":{"videoProgress":12}}]}`,
			`{"choices":[{"delta":{"videoProgress":40}}]}`,
			`{"choices":[{"delta":{"videoProgress":99}}]}`,
			`{"choices":[{"delta":{"videos":["https://a/v.mp4"]}}]}`,
			`[DONE]`,
		)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "generate a video"},
	}, model.ModeFormal, rec.callbacks())

	assert.Equal(t, []int{12, 40, 99}, rec.progress)
	require.Len(t, rec.videos, 1)
	assert.Equal(t, []string{"https://a/v.mp4"}, rec.videos[0])
	assert.Equal(t, 1, rec.done)
}

func TestSession_RateLimited(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, rec.callbacks())

	require.Len(t, rec.errors, 1)
	assert.Equal(t, stream.MsgRateLimited, rec.errors[0])
	assert.Zero(t, rec.done, "OnDone never fires after an error")
}

func TestSession_PaymentRequired(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})

	rec := &recordedEvents{}
	newSession(srv).Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, rec.callbacks())

	require.Len(t, rec.errors, 1)
	assert.Equal(t, stream.MsgPaymentRequired, rec.errors[0])
	assert.Zero(t, rec.done)
}

func TestSession_CancellationMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, `{"choices":[{"delta":{"content":"partial"}}]}`)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recordedEvents{}
	cb := rec.callbacks()
	baseDelta := cb.OnDelta
	cb.OnDelta = func(text string) {
		baseDelta(text)
		cancel()
	}

	newSession(srv).Send(ctx, []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}, model.ModeFormal, cb)

	assert.Equal(t, "partial", rec.text(), "deltas before the stop are kept")
	require.Len(t, rec.errors, 1)
	assert.Equal(t, stream.MsgStopped, rec.errors[0])
	assert.Zero(t, rec.done, "cancellation must not look like completion")
}

type channelRecorder struct {
	saved chan model.Message
}

func (r *channelRecorder) SaveMessage(ctx context.Context, conversationID string, msg model.Message) error {
	r.saved <- msg
	return nil
}

func TestSession_RecordsExchange(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`{"choices":[{"delta":{"content":"answer"}}]}`,
			`[DONE]`,
		)
	})

	recorder := &channelRecorder{saved: make(chan model.Message, 2)}
	session := newSession(srv)
	session.ConversationID = "conv-1"
	session.Recorder = recorder

	rec := &recordedEvents{}
	session.Send(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "question"},
	}, model.ModeFormal, rec.callbacks())

	var roles []string
	for range 2 {
		select {
		case msg := <-recorder.saved:
			roles = append(roles, msg.Role)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for recorded messages")
		}
	}
	assert.ElementsMatch(t, []string{model.RoleUser, model.RoleAssistant}, roles)
}
