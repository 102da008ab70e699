package api

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"deepview/backend/internal/config"
	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// createConversationRequest is the body of POST /api/v1/conversations.
type createConversationRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Mode   string `json:"mode" validate:"omitempty,oneof=formal developer"`
}

// updateModeRequest is the body of PUT /api/v1/conversations/{id}/mode.
type updateModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=formal developer"`
}

func validateStruct(v any) error {
	if err := getValidator().Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// validateChatRequest enforces the request limits before any network call.
// The multi-part content union does not fit struct tags, so the checks are
// explicit.
func validateChatRequest(req *model.ChatRequest, cfg *config.Config) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", apperrors.ErrValidation)
	}
	if req.Mode != "" && req.Mode != model.ModeFormal && req.Mode != model.ModeDeveloper {
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrValidation, req.Mode)
	}
	for i := range req.Messages {
		msg := &req.Messages[i]
		switch msg.Role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", apperrors.ErrValidation, i, msg.Role)
		}
		if len(msg.Content.PlainText()) > cfg.MaxContentLength {
			return fmt.Errorf("%w: message %d content exceeds %d characters", apperrors.ErrValidation, i, cfg.MaxContentLength)
		}
		if n := msg.Content.CountParts(model.PartImageURL); n > cfg.MaxImages {
			return fmt.Errorf("%w: message %d has %d images, maximum is %d", apperrors.ErrValidation, i, n, cfg.MaxImages)
		}
		if n := msg.Content.CountParts(model.PartVideoURL); n > cfg.MaxVideos {
			return fmt.Errorf("%w: message %d has %d videos, maximum is %d", apperrors.ErrValidation, i, n, cfg.MaxVideos)
		}
	}
	return nil
}
