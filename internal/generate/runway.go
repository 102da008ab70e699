package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
)

const runwayAPIVersion = "2024-11-06"

// runwayRatios is the provider's allowed ratio enum, keyed by canonical
// ratio. Runway rejects anything outside its set, so normalization happens
// before submission rather than passing values through.
var runwayRatios = map[string]string{
	RatioLandscape: "1280:768",
	RatioPortrait:  "768:1280",
}

// Runway drives Runway ML's generation API. Text-to-video and image-to-video
// are separate endpoints with separate models; the keyframe decides which.
type Runway struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewRunway(baseURL, token string) *Runway {
	return &Runway{client: &http.Client{}, baseURL: baseURL, token: token}
}

func (r *Runway) Name() string { return "runway/gen3a" }

func (r *Runway) Submit(ctx context.Context, in Input) (string, error) {
	ratio := NormalizeChoice(runwayRatios[in.AspectRatio], []string{"1280:768", "768:1280"}, "1280:768")
	duration := in.Duration
	if duration != 5 && duration != 10 {
		duration = 5
	}

	endpoint := r.baseURL + "/v1/text_to_video"
	payload := map[string]any{
		"promptText": in.Prompt,
		"model":      "gen3a",
		"duration":   duration,
		"ratio":      ratio,
		"seed":       rand.Intn(1000000),
	}
	if in.KeyframeImage != "" {
		endpoint = r.baseURL + "/v1/image_to_video"
		payload["model"] = "gen3a_turbo"
		payload["promptImage"] = in.KeyframeImage
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("could not marshal generation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create generation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &SubmitError{Provider: r.Name(), StatusCode: resp.StatusCode, Body: string(bodyBytes)}
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

func (r *Runway) Status(ctx context.Context, jobID string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/tasks/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var task struct {
		Status  string   `json:"status"`
		Output  []string `json:"output"`
		Failure string   `json:"failure"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("could not decode status response: %w", err)
	}

	job := &Job{ID: jobID, Reason: task.Failure}
	switch task.Status {
	case "PENDING":
		job.State = JobPending
	case "RUNNING":
		job.State = JobProcessing
	case "SUCCEEDED":
		job.State = JobSucceeded
		job.Output = task.Output
	case "CANCELLED":
		job.State = JobCanceled
	default:
		job.State = JobFailed
	}
	return job, nil
}
