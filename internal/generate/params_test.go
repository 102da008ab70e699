package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRatio(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantRatio   string
		wantCleaned string
	}{
		{"no tag defaults to landscape", "a dog running", RatioLandscape, "a dog running"},
		{"portrait tag", "a dog running [ratio:720:1280]", RatioPortrait, "a dog running"},
		{"canonical portrait tag", "[ratio:9:16] a dog", RatioPortrait, "a dog"},
		{"full hd portrait", "a dog [ratio:1080:1920]", RatioPortrait, "a dog"},
		{"landscape tag", "a dog [ratio:1280:720]", RatioLandscape, "a dog"},
		{"unknown tag treated as landscape", "a dog [ratio:4:3]", RatioLandscape, "a dog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, cleaned := ExtractRatio(tt.in)
			assert.Equal(t, tt.wantRatio, ratio)
			assert.Equal(t, tt.wantCleaned, cleaned, "tag must never reach the model as text")
		})
	}
}

func TestNormalizeChoice(t *testing.T) {
	allowed := []string{"5s", "9s"}
	assert.Equal(t, "9s", NormalizeChoice("9s", allowed, "5s"))
	assert.Equal(t, "5s", NormalizeChoice("7s", allowed, "5s"))
	assert.Equal(t, "5s", NormalizeChoice("", allowed, "5s"))
}

func TestReplicateInputShapes(t *testing.T) {
	in := Input{Prompt: "waves", AspectRatio: RatioPortrait}

	t.Run("aspect ratio shape", func(t *testing.T) {
		got := AspectRatioInput(in)
		assert.Equal(t, "waves", got["prompt"])
		assert.Equal(t, RatioPortrait, got["aspect_ratio"])
	})

	t.Run("dimensions shape", func(t *testing.T) {
		got := DimensionsInput(in)
		assert.Equal(t, 320, got["width"])
		assert.Equal(t, 512, got["height"])

		landscape := DimensionsInput(Input{Prompt: "waves", AspectRatio: RatioLandscape})
		assert.Equal(t, 512, landscape["width"])
		assert.Equal(t, 320, landscape["height"])
	})
}

func TestSubmitError_Permanent(t *testing.T) {
	permanent := []int{401, 402, 403, 422, 429}
	for _, code := range permanent {
		err := &SubmitError{Provider: "p", StatusCode: code}
		assert.True(t, err.Permanent(), "status %d", code)
		assert.True(t, IsPermanent(err))
	}

	transient := []int{500, 502, 503, 504, 408}
	for _, code := range transient {
		err := &SubmitError{Provider: "p", StatusCode: code}
		assert.False(t, err.Permanent(), "status %d", code)
	}

	assert.False(t, IsPermanent(assert.AnError))
}
