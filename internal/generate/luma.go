package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Luma drives the Dream Machine generation API.
type Luma struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewLuma(baseURL, token string) *Luma {
	return &Luma{client: &http.Client{}, baseURL: baseURL, token: token}
}

func (l *Luma) Name() string { return "luma/ray-2" }

func (l *Luma) Submit(ctx context.Context, in Input) (string, error) {
	duration := NormalizeChoice(fmt.Sprintf("%ds", in.Duration), []string{"5s", "9s"}, "5s")

	payload := map[string]any{
		"prompt":       in.Prompt,
		"model":        "ray-2",
		"resolution":   "720p",
		"duration":     duration,
		"aspect_ratio": NormalizeChoice(in.AspectRatio, []string{"16:9", "9:16", "1:1"}, "16:9"),
	}
	if in.KeyframeImage != "" {
		payload["keyframes"] = map[string]any{
			"frame0": map[string]any{"type": "image", "url": in.KeyframeImage},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("could not marshal generation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/dream-machine/v1/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create generation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &SubmitError{Provider: l.Name(), StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var generation struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generation); err != nil {
		return "", fmt.Errorf("could not decode generation response: %w", err)
	}
	if generation.ID == "" {
		return "", fmt.Errorf("generation response had no id")
	}
	return generation.ID, nil
}

func (l *Luma) Status(ctx context.Context, jobID string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/dream-machine/v1/generations/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var generation struct {
		State         string `json:"state"`
		FailureReason string `json:"failure_reason"`
		Assets        struct {
			Video string `json:"video"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generation); err != nil {
		return nil, fmt.Errorf("could not decode status response: %w", err)
	}

	job := &Job{ID: jobID, Reason: generation.FailureReason}
	switch generation.State {
	case "queued":
		job.State = JobPending
	case "dreaming":
		job.State = JobProcessing
	case "completed":
		job.State = JobSucceeded
		if generation.Assets.Video != "" {
			job.Output = []string{generation.Assets.Video}
		}
	default:
		job.State = JobFailed
	}
	return job, nil
}
