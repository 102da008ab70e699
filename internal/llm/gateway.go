package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "deepview/backend/internal/errors"
	"deepview/backend/internal/model"
	"deepview/backend/internal/stream"
)

// Client defines the interface for the managed AI gateway. Services depend
// on this rather than the concrete HTTP client so tests can stub it.
type Client interface {
	// OpenStream starts a streaming chat completion and returns the raw SSE
	// body for pass-through.
	OpenStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error)
	// Complete runs a non-streaming completion and returns the text content.
	Complete(ctx context.Context, req *ChatRequest) (string, error)
	// GenerateImages runs an image-modality completion for the given prompt
	// and returns the resulting image URLs.
	GenerateImages(ctx context.Context, prompt string) ([]string, error)
}

// ChatRequest mirrors the gateway's OpenAI-compatible completion request.
type ChatRequest struct {
	Model      string              `json:"model"`
	Messages   []model.WireMessage `json:"messages"`
	Stream     bool                `json:"stream,omitempty"`
	Modalities []string            `json:"modalities,omitempty"`
}

type gatewayClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	imageModel string
}

func NewGateway(baseURL, apiKey, imageModel string) Client {
	return &gatewayClient{
		client:     &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: imageModel,
	}
}

func (g *gatewayClient) do(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		closeBody(resp)
		return nil, apperrors.ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		closeBody(resp)
		return nil, apperrors.ErrPaymentRequired
	default:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		closeBody(resp)
		return nil, fmt.Errorf("%w: gateway returned status %d: %s", apperrors.ErrUpstream, resp.StatusCode, bodyBytes)
	}
}

func (g *gatewayClient) OpenStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := g.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// completionResponse is the non-streaming response shape. Media fields stay
// raw and go through the same normalization as streamed frames.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string          `json:"content"`
			Images  json.RawMessage `json:"images,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *gatewayClient) complete(ctx context.Context, req *ChatRequest) (*completionResponse, error) {
	req.Stream = false
	resp, err := g.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read gateway response: %w", err)
	}
	var parsed completionResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("could not decode gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: gateway response had no choices", apperrors.ErrUpstream)
	}
	return &parsed, nil
}

func (g *gatewayClient) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	parsed, err := g.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return parsed.Choices[0].Message.Content, nil
}

func (g *gatewayClient) GenerateImages(ctx context.Context, prompt string) ([]string, error) {
	req := &ChatRequest{
		Model: g.imageModel,
		Messages: []model.WireMessage{
			{Role: model.RoleUser, Content: model.Text(prompt)},
		},
		Modalities: []string{"image", "text"},
	}
	parsed, err := g.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream.NormalizeMedia(parsed.Choices[0].Message.Images), nil
}

func closeBody(resp *http.Response) {
	_ = resp.Body.Close()
}
