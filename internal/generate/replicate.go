package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ReplicateInputShape maps a normalized Input onto one model's payload.
// Replicate models disagree about how they take dimensions, so the shape is
// part of the candidate definition rather than hardcoded per model name.
type ReplicateInputShape func(Input) map[string]any

// AspectRatioInput is the shape for models taking an aspect_ratio string.
func AspectRatioInput(in Input) map[string]any {
	return map[string]any{
		"prompt":       in.Prompt,
		"aspect_ratio": in.AspectRatio,
	}
}

// DimensionsInput is the shape for models taking explicit width/height.
func DimensionsInput(in Input) map[string]any {
	w, h := 512, 320
	if in.AspectRatio == RatioPortrait {
		w, h = 320, 512
	}
	return map[string]any{
		"prompt": in.Prompt,
		"width":  w,
		"height": h,
	}
}

// Replicate drives one Replicate model through the predictions API. Model
// endpoints are used without pinned versions to avoid 422s on stale pins.
type Replicate struct {
	client  *http.Client
	baseURL string
	token   string
	model   string
	shape   ReplicateInputShape
}

func NewReplicate(baseURL, token, model string, shape ReplicateInputShape) *Replicate {
	return &Replicate{
		client:  &http.Client{},
		baseURL: baseURL,
		token:   token,
		model:   model,
		shape:   shape,
	}
}

func (r *Replicate) Name() string { return r.model }

func (r *Replicate) Submit(ctx context.Context, in Input) (string, error) {
	input := r.shape(in)
	if in.KeyframeImage != "" {
		input["image"] = in.KeyframeImage
	}
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("could not marshal prediction request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", r.baseURL, r.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create prediction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &SubmitError{Provider: r.Name(), StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var prediction struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return "", fmt.Errorf("could not decode prediction response: %w", err)
	}
	if prediction.ID == "" {
		return "", fmt.Errorf("prediction response had no id")
	}
	return prediction.ID, nil
}

func (r *Replicate) Status(ctx context.Context, jobID string) (*Job, error) {
	url := fmt.Sprintf("%s/v1/predictions/%s", r.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var status struct {
		Status string          `json:"status"`
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("could not decode status response: %w", err)
	}

	job := &Job{ID: jobID, Reason: status.Error}
	switch status.Status {
	case "starting":
		job.State = JobPending
	case "processing":
		job.State = JobProcessing
	case "succeeded":
		job.State = JobSucceeded
		job.Output = decodeOutput(status.Output)
	case "canceled":
		job.State = JobCanceled
	default:
		job.State = JobFailed
	}
	return job, nil
}

// decodeOutput tolerates Replicate's output being either a single URL string
// or an array of them.
func decodeOutput(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}
