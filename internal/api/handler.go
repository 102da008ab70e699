package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deepview/backend/internal/classify"
	"deepview/backend/internal/config"
	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/model"
	"deepview/backend/internal/service"
	"deepview/backend/internal/sse"
)

type Handler struct {
	chat *service.ChatService
	cfg  *config.Config
}

func NewHandler(chat *service.ChatService, cfg *config.Config) *Handler {
	return &Handler{chat: chat, cfg: cfg}
}

// HandleChat godoc
// @Summary      Stream a chat completion
// @Description  Classifies the request and streams the response as SSE delta frames
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request body model.ChatRequest true "Chat request"
// @Success      200 {string} string "SSE stream"
// @Failure      400 {object} ErrorResponse
// @Failure      402 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Router       /chat [post]
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrValidation, err))
		return
	}
	if err := validateChatRequest(&req, h.cfg); err != nil {
		respondWithError(w, err)
		return
	}

	intent := h.chat.Classify(&req)
	slog.Info("Chat request classified", "intent", intent.String(), "conversation_id", req.ConversationID)

	if intent == classify.IntentVideoGeneration {
		h.streamVideo(w, r, &req)
		return
	}
	h.streamCompletion(w, r, &req, intent)
}

// streamCompletion relays the gateway stream. The upstream call happens
// before SSE headers are committed, so gateway refusals (rate limit, quota)
// still surface as structured JSON errors.
func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, req *model.ChatRequest, intent classify.Intent) {
	body, err := h.chat.OpenCompletion(r.Context(), req, intent)
	if err != nil {
		respondWithError(w, err)
		return
	}

	sse.SetHeaders(w)
	writer, err := sse.NewWriter(w)
	if err != nil {
		body.Close()
		respondWithError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		return
	}

	if err := h.chat.Relay(r.Context(), req, body, writer); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Stream relay ended with error", "error", err)
	}
}

func (h *Handler) streamVideo(w http.ResponseWriter, r *http.Request, req *model.ChatRequest) {
	sse.SetHeaders(w)
	writer, err := sse.NewWriter(w)
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		return
	}

	if err := h.chat.StreamVideoGeneration(r.Context(), req, writer); err != nil {
		// The connection is already streaming; all that remains is logging.
		slog.Warn("Video generation stream ended early", "error", err)
		return
	}
	if err := writer.Done(); err != nil {
		slog.Warn("Could not write stream terminator", "error", err)
	}
}

// HandleCreateConversation godoc
// @Summary  Create a conversation
// @Tags     conversations
// @Accept   json
// @Produce  json
// @Param    request body createConversationRequest true "Conversation parameters"
// @Success  201 {object} model.Conversation
// @Failure  400 {object} ErrorResponse
// @Router   /conversations [post]
func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrValidation, err))
		return
	}
	if err := validateStruct(req); err != nil {
		respondWithError(w, err)
		return
	}

	conv, err := h.chat.CreateConversation(r.Context(), req.UserID, req.Mode)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, conv)
}

// HandleGetConversation godoc
// @Summary  Get a conversation with its messages
// @Tags     conversations
// @Produce  json
// @Param    id path string true "Conversation ID"
// @Success  200 {object} model.FullConversation
// @Failure  404 {object} ErrorResponse
// @Router   /conversations/{id} [get]
func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chat.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conv)
}

// HandleListConversations godoc
// @Summary  List conversations for a user
// @Tags     conversations
// @Produce  json
// @Param    user_id query string true "User ID"
// @Success  200 {array} model.Conversation
// @Router   /conversations [get]
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondWithError(w, fmt.Errorf("%w: user_id query parameter is required", apperrors.ErrValidation))
		return
	}
	conversations, err := h.chat.ListConversations(r.Context(), userID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if conversations == nil {
		conversations = []*model.Conversation{}
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

// HandleUpdateMode godoc
// @Summary  Switch a conversation's mode
// @Tags     conversations
// @Accept   json
// @Param    id path string true "Conversation ID"
// @Param    request body updateModeRequest true "New mode"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /conversations/{id}/mode [put]
func (h *Handler) HandleUpdateMode(w http.ResponseWriter, r *http.Request) {
	var req updateModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrValidation, err))
		return
	}
	if err := validateStruct(req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chat.UpdateConversationMode(r.Context(), chi.URLParam(r, "id"), req.Mode); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// HandleDeleteConversation godoc
// @Summary  Delete a conversation
// @Tags     conversations
// @Param    id path string true "Conversation ID"
// @Success  204
// @Router   /conversations/{id} [delete]
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// HandleHealth godoc
// @Summary  Liveness probe
// @Produce  json
// @Success  200 {object} map[string]string
// @Router   /healthz [get]
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
