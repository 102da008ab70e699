package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"deepview/backend/internal/model"
)

// User-facing messages for the error taxonomy. Rate limiting and quota
// exhaustion are recoverable and worded accordingly; cancellation gets a
// distinct, neutral message so the UI never renders it as a failure.
const (
	MsgRateLimited     = "Rate limited. Give it a moment and try again."
	MsgPaymentRequired = "Insufficient credit. Add funds to your workspace and try again."
	MsgStopped         = "Generation stopped by user"
	MsgTransport       = "Something went wrong while contacting the chat service."
)

// Callbacks is the render sink the UI layer supplies. Any callback may be
// nil; the session skips it.
type Callbacks struct {
	OnDelta    func(text string)
	OnImages   func(urls []string)
	OnVideos   func(urls []string)
	OnProgress func(percent int)
	OnDone     func()
	OnError    func(message string)
}

// Recorder persists messages as a fire-and-forget side effect. Failures are
// logged, never surfaced: persistence must not block delta delivery.
type Recorder interface {
	SaveMessage(ctx context.Context, conversationID string, msg model.Message) error
}

// defaultFlushInterval coalesces text deltas so the UI is not re-rendered
// once per token. Media frames bypass it entirely.
const defaultFlushInterval = 150 * time.Millisecond

// Session owns a single streaming request lifecycle: it opens the HTTP
// stream, feeds bytes to the frame parser, folds deltas into the running
// state and drives the UI callbacks. Cancel through the context passed to
// Send; the session stops reading and reports MsgStopped through OnError.
type Session struct {
	Endpoint       string
	APIKey         string
	Client         *http.Client
	FlushInterval  time.Duration
	ConversationID string
	Recorder       Recorder
}

func (s *Session) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *Session) flushInterval() time.Duration {
	if s.FlushInterval > 0 {
		return s.FlushInterval
	}
	return defaultFlushInterval
}

// Send streams one exchange. The message history is expanded into the wire
// shape (media flattened into multi-part content arrays) and POSTed with the
// mode tag; the response byte stream is reconciled into the callbacks.
//
// Exactly one terminal callback fires per call: OnDone on graceful
// completion, or OnError otherwise. OnDone is never called after an error or
// cancellation.
func (s *Session) Send(ctx context.Context, messages []model.Message, mode string, cb Callbacks) {
	s.recordUserMessage(ctx, messages)

	wire := make([]model.WireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, m.ExpandParts())
	}
	body, err := json.Marshal(model.ChatRequest{
		ConversationID: s.ConversationID,
		Messages:       wire,
		Mode:           mode,
	})
	if err != nil {
		emitError(cb, MsgTransport)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		emitError(cb, MsgTransport)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			emitError(cb, MsgStopped)
			return
		}
		emitError(cb, MsgTransport)
		return
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("Failed to close stream body", "error", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		emitError(cb, MsgRateLimited)
		return
	case resp.StatusCode == http.StatusPaymentRequired:
		emitError(cb, MsgPaymentRequired)
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		emitError(cb, MsgTransport)
		return
	}

	state, ok := s.consume(ctx, resp.Body, cb)
	if !ok {
		return
	}

	s.recordAssistantMessage(ctx, state)
	if cb.OnDone != nil {
		cb.OnDone()
	}
}

// consume reads the response stream to completion, returning the final state
// and whether the stream ended gracefully. On cancellation or transport
// failure it emits the corresponding error and returns ok=false.
func (s *Session) consume(ctx context.Context, body io.Reader, cb Callbacks) (State, bool) {
	parser := NewParser()
	var state State

	// Coalescing buffer for text deltas. Media and completion force a flush
	// regardless of the debounce schedule.
	var pending bytes.Buffer
	lastFlush := time.Now()
	flushText := func(force bool) {
		if pending.Len() == 0 {
			return
		}
		if !force && time.Since(lastFlush) < s.flushInterval() {
			return
		}
		if cb.OnDelta != nil {
			cb.OnDelta(pending.String())
		}
		pending.Reset()
		lastFlush = time.Now()
	}

	dispatch := func(prev, next State, ev Events) {
		if ev.Text {
			pending.WriteString(next.Content[len(prev.Content):])
		}
		if ev.Media() {
			flushText(true)
		}
		if ev.Images && cb.OnImages != nil {
			cb.OnImages(next.Images)
		}
		if ev.Videos && cb.OnVideos != nil {
			cb.OnVideos(next.Videos)
		}
		if ev.Progress && cb.OnProgress != nil {
			cb.OnProgress(next.Progress)
		}
		if ev.Text && !ev.Media() {
			flushText(false)
		}
	}

	buf := make([]byte, 4096)
	for !parser.Done() {
		if ctx.Err() != nil {
			emitError(cb, MsgStopped)
			return state, false
		}
		n, err := body.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
			for {
				payload, ok := parser.Next()
				if !ok {
					break
				}
				delta, derr := DecodeDelta(payload)
				if derr != nil {
					// Likely a JSON object split across packets: push the
					// line back and wait for the next read to complete it.
					parser.Unread(payload)
					break
				}
				next, ev := Apply(state, delta)
				dispatch(state, next, ev)
				state = next
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				emitError(cb, MsgStopped)
				return state, false
			}
			flushText(true)
			emitError(cb, MsgTransport)
			return state, false
		}
	}

	// Final pass over leftover buffered text; genuinely unparseable frames
	// are dropped here.
	if !parser.Done() {
		for _, payload := range parser.Drain() {
			delta, derr := DecodeDelta(payload)
			if derr != nil {
				continue
			}
			next, ev := Apply(state, delta)
			dispatch(state, next, ev)
			state = next
		}
	}
	flushText(true)
	return state, true
}

func (s *Session) recordUserMessage(ctx context.Context, messages []model.Message) {
	if s.Recorder == nil || s.ConversationID == "" || len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if last.Role != model.RoleUser {
		return
	}
	go func() {
		if err := s.Recorder.SaveMessage(context.WithoutCancel(ctx), s.ConversationID, last); err != nil {
			slog.Warn("Failed to persist user message", "error", err)
		}
	}()
}

func (s *Session) recordAssistantMessage(ctx context.Context, state State) {
	if s.Recorder == nil || s.ConversationID == "" {
		return
	}
	msg := model.Message{
		Role:    model.RoleAssistant,
		Content: state.Content,
		Images:  state.Images,
		Videos:  state.Videos,
	}
	go func() {
		if err := s.Recorder.SaveMessage(context.WithoutCancel(ctx), s.ConversationID, msg); err != nil {
			slog.Warn("Failed to persist assistant message", "error", err)
		}
	}()
}

func emitError(cb Callbacks, message string) {
	if cb.OnError != nil {
		cb.OnError(message)
	}
}
