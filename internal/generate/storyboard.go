package generate

import (
	"context"
	"fmt"
	"log/slog"
)

// ImageGenerator is the always-available text-to-image path used for the
// degraded mode. Satisfied by the gateway client.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string) ([]string, error)
}

// Fallback delivers a degraded visual result when no video provider can.
type Fallback interface {
	Deliver(ctx context.Context, in Input, emit Emitter) error
}

// StoryboardFallback renders a static six-panel storyboard image via the
// text-to-image path, so the user always gets something visual back even
// when every video candidate is down.
type StoryboardFallback struct {
	gen ImageGenerator
}

func NewStoryboardFallback(gen ImageGenerator) *StoryboardFallback {
	return &StoryboardFallback{gen: gen}
}

func (f *StoryboardFallback) Deliver(ctx context.Context, in Input, emit Emitter) error {
	_ = emit.Content("\n\nNo video models are available right now. Generating a six-panel storyboard as an alternative...")

	urls, err := f.gen.GenerateImages(ctx, storyboardPrompt(in))
	if err != nil {
		slog.Warn("Storyboard fallback failed", "error", err)
		_ = emit.Content("\n\nThe storyboard could not be generated either. Please try again later.")
		return nil
	}
	if len(urls) == 0 {
		_ = emit.Content("\n\nThe response did not include any images. Please try again later.")
		return nil
	}
	if err := emit.Images(urls); err != nil {
		return err
	}
	_ = emit.Content("\n\nStoryboard generated as an alternative.")
	return nil
}

func storyboardPrompt(in Input) string {
	orientation := "horizontal 16:9"
	if in.AspectRatio == RatioPortrait {
		orientation = "vertical 9:16"
	}
	theme := in.Prompt
	if theme == "" {
		theme = "the video the user requested"
	}
	return fmt.Sprintf(
		"Create a cinematic storyboard of 6 panels in a 3x2 grid, consistent style across panels, "+
			"varied framing with a logical transition between scenes. Keep the composition %s. "+
			"Theme: %s. Avoid any text inside the image.",
		orientation, theme,
	)
}
