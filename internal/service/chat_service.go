package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"deepview/backend/internal/classify"
	"deepview/backend/internal/config"
	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/generate"
	"deepview/backend/internal/llm"
	"deepview/backend/internal/model"
	"deepview/backend/internal/repository"
	"deepview/backend/internal/sse"
	"deepview/backend/internal/stream"
)

// ChatService routes chat requests to the right backend path, relays the
// resulting stream, and persists the exchange when a conversation is attached.
type ChatService struct {
	repo         repository.Repository
	gateway      llm.Client
	classifier   *classify.Classifier
	orchestrator *generate.Orchestrator
	cfg          *config.Config
}

func NewChatService(
	repo repository.Repository,
	gateway llm.Client,
	classifier *classify.Classifier,
	orchestrator *generate.Orchestrator,
	cfg *config.Config,
) *ChatService {
	return &ChatService{
		repo:         repo,
		gateway:      gateway,
		classifier:   classifier,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Classify exposes the request classifier to the transport layer.
func (s *ChatService) Classify(req *model.ChatRequest) classify.Intent {
	return s.classifier.Classify(req.Messages)
}

// OpenCompletion starts a streaming completion on the gateway with the model
// and system prompt the intent calls for, returning the raw SSE body. Kept
// separate from Relay so the transport layer can still answer with a JSON
// error when the gateway refuses the request outright.
func (s *ChatService) OpenCompletion(ctx context.Context, req *model.ChatRequest, intent classify.Intent) (io.ReadCloser, error) {
	return s.gateway.OpenStream(ctx, &llm.ChatRequest{
		Model:    s.modelFor(intent),
		Messages: s.withSystemPrompt(req),
	})
}

// Relay forwards an opened gateway stream to the SSE writer. The gateway
// frames already carry their own [DONE] terminator, so nothing is appended.
// When a conversation is attached, the relay is tapped to reconstruct the
// assistant message for persistence.
func (s *ChatService) Relay(ctx context.Context, req *model.ChatRequest, body io.ReadCloser, w *sse.Writer) error {
	defer body.Close()
	if req.ConversationID == "" {
		return w.Copy(body)
	}
	return s.relayAndCapture(ctx, req, body, w)
}

// relayAndCapture forwards the upstream bytes verbatim while running them
// through the frame parser and delta reconciler, so the persisted assistant
// message matches exactly what the client rendered.
func (s *ChatService) relayAndCapture(ctx context.Context, req *model.ChatRequest, body io.Reader, w *sse.Writer) error {
	parser := stream.NewParser()
	var state stream.State

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
			for {
				payload, ok := parser.Next()
				if !ok {
					break
				}
				delta, derr := stream.DecodeDelta(payload)
				if derr != nil {
					parser.Unread(payload)
					break
				}
				state, _ = stream.Apply(state, delta)
			}
			if werr := w.Copy(bytes.NewReader(buf[:n])); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Client-initiated stop still persists what arrived.
				s.persistExchange(ctx, req, state)
				return ctx.Err()
			}
			return fmt.Errorf("%w: relay read failed: %v", apperrors.ErrUpstream, err)
		}
	}

	for _, payload := range parser.Drain() {
		delta, derr := stream.DecodeDelta(payload)
		if derr != nil {
			continue
		}
		state, _ = stream.Apply(state, delta)
	}
	s.persistExchange(ctx, req, state)
	return nil
}

// StreamVideoGeneration drives the fallback orchestrator, emitting synthetic
// delta frames through the SSE writer. The caller appends the terminator.
func (s *ChatService) StreamVideoGeneration(ctx context.Context, req *model.ChatRequest, w *sse.Writer) error {
	last := req.LastUserMessage()
	if last == nil {
		return fmt.Errorf("%w: no user message to generate from", apperrors.ErrValidation)
	}

	ratio, prompt := generate.ExtractRatio(last.Content.PlainText())
	in := generate.Input{
		Prompt:        prompt,
		KeyframeImage: last.Content.FirstURL(model.PartImageURL),
		AspectRatio:   ratio,
		Duration:      5,
	}

	capture := &capturingEmitter{next: w}
	if err := s.orchestrator.Run(ctx, in, capture); err != nil {
		if ctx.Err() != nil {
			s.persistExchange(ctx, req, capture.state)
		}
		return err
	}
	s.persistExchange(ctx, req, capture.state)
	return nil
}

// capturingEmitter mirrors every synthetic frame into a reconciled state so
// the orchestrated result can be persisted like any other assistant turn.
type capturingEmitter struct {
	next  generate.Emitter
	state stream.State
}

func (c *capturingEmitter) Content(text string) error {
	c.state, _ = stream.Apply(c.state, stream.Delta{Content: text})
	return c.next.Content(text)
}

func (c *capturingEmitter) Images(urls []string) error {
	c.state, _ = stream.Apply(c.state, stream.Delta{Images: urls})
	return c.next.Images(urls)
}

func (c *capturingEmitter) Videos(urls []string) error {
	c.state, _ = stream.Apply(c.state, stream.Delta{Videos: urls})
	return c.next.Videos(urls)
}

func (c *capturingEmitter) Progress(percent int) error {
	c.state, _ = stream.Apply(c.state, stream.Delta{Progress: &percent})
	return c.next.Progress(percent)
}

// persistExchange saves the user turn and the reconciled assistant turn as a
// side effect of streaming. Runs in the background with a detached context so
// a client disconnect never loses the exchange; failures are logged, never
// surfaced into the stream.
func (s *ChatService) persistExchange(ctx context.Context, req *model.ChatRequest, state stream.State) {
	if req.ConversationID == "" {
		return
	}
	last := req.LastUserMessage()

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 15*time.Second)
		defer cancel()

		count, err := s.repo.CountMessages(ctx, req.ConversationID)
		if err != nil {
			slog.Warn("Could not count messages before persisting", "conversation_id", req.ConversationID, "error", err)
			count = -1
		}

		if last != nil {
			if err := s.saveTurn(ctx, req.ConversationID, model.RoleUser, last.Content.PlainText(), nil, nil); err != nil {
				slog.Warn("Could not persist user message", "conversation_id", req.ConversationID, "error", err)
			}
		}
		if state.Content != "" || len(state.Images) > 0 || len(state.Videos) > 0 {
			if err := s.saveTurn(ctx, req.ConversationID, model.RoleAssistant, state.Content, state.Images, state.Videos); err != nil {
				slog.Warn("Could not persist assistant message", "conversation_id", req.ConversationID, "error", err)
			}
		}

		if count == 0 && last != nil {
			s.generateTitle(ctx, req.ConversationID, last.Content.PlainText())
		}
	}()
}

func (s *ChatService) saveTurn(ctx context.Context, conversationID, role, content string, images, videos []string) error {
	return s.repo.AddMessage(ctx, conversationID, &model.StoredMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Images:         images,
		Videos:         videos,
		CreatedAt:      time.Now().UTC(),
	})
}

// generateTitle asks the support model for a short conversation title based
// on the opening message. Best effort: a failure falls back to a truncation
// of the message itself.
func (s *ChatService) generateTitle(ctx context.Context, conversationID, firstMessage string) {
	title, err := s.gateway.Complete(ctx, &llm.ChatRequest{
		Model: s.cfg.SupportModel,
		Messages: []model.WireMessage{
			{Role: model.RoleSystem, Content: model.Text("Generate a short title (maximum 5 words) for a conversation that starts with the user message below. Reply with the title only, no quotes.")},
			{Role: model.RoleUser, Content: model.Text(firstMessage)},
		},
	})
	if err != nil || title == "" {
		slog.Warn("Title generation failed, falling back to truncation", "conversation_id", conversationID, "error", err)
		title = truncate(firstMessage, 50)
	}
	if err := s.repo.UpdateConversationTitle(ctx, conversationID, truncate(title, 100)); err != nil {
		slog.Warn("Could not store conversation title", "conversation_id", conversationID, "error", err)
	}
}

func (s *ChatService) modelFor(intent classify.Intent) string {
	switch intent {
	case classify.IntentAnalysis:
		return s.cfg.AnalysisModel
	case classify.IntentImageGeneration:
		return s.cfg.ImageModel
	default:
		return s.cfg.ChatModel
	}
}

// withSystemPrompt prepends the mode's system prompt unless the caller
// already supplied one.
func (s *ChatService) withSystemPrompt(req *model.ChatRequest) []model.WireMessage {
	if len(req.Messages) > 0 && req.Messages[0].Role == model.RoleSystem {
		return req.Messages
	}
	prompt := s.cfg.FormalPrompt
	if req.Mode == model.ModeDeveloper {
		prompt = s.cfg.DeveloperPrompt
	}
	messages := make([]model.WireMessage, 0, len(req.Messages)+1)
	messages = append(messages, model.WireMessage{Role: model.RoleSystem, Content: model.Text(prompt)})
	return append(messages, req.Messages...)
}

// CreateConversation starts a new thread for the user.
func (s *ChatService) CreateConversation(ctx context.Context, userID, mode string) (*model.Conversation, error) {
	if mode == "" {
		mode = model.ModeFormal
	}
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "New conversation",
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("could not create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation with its full message history.
func (s *ChatService) GetConversation(ctx context.Context, conversationID string) (*model.FullConversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	messages, err := s.repo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &model.FullConversation{Conversation: *conv, Messages: messages}, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *ChatService) UpdateConversationMode(ctx context.Context, conversationID, mode string) error {
	if mode != model.ModeFormal && mode != model.ModeDeveloper {
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrValidation, mode)
	}
	return mapRepoError(s.repo.UpdateConversationMode(ctx, conversationID, mode))
}

func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) error {
	return mapRepoError(s.repo.DeleteConversation(ctx, conversationID))
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
