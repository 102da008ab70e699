package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"deepview/backend/internal/stream"
)

func intp(v int) *int { return &v }

func TestApply_TextAppends(t *testing.T) {
	s, ev := stream.Apply(stream.State{}, stream.Delta{Content: "Hel"})
	assert.True(t, ev.Text)
	s, ev = stream.Apply(s, stream.Delta{Content: "lo"})
	assert.True(t, ev.Text)
	assert.Equal(t, "Hello", s.Content)
}

func TestApply_MediaReplacesNotAppends(t *testing.T) {
	s, ev := stream.Apply(stream.State{}, stream.Delta{Images: []string{"https://a/1.png", "https://a/2.png"}})
	assert.True(t, ev.Images)
	assert.Len(t, s.Images, 2)

	s, ev = stream.Apply(s, stream.Delta{Images: []string{"https://a/3.png"}})
	assert.True(t, ev.Images)
	assert.Equal(t, []string{"https://a/3.png"}, s.Images, "a later set replaces the earlier one")
}

func TestApply_ProgressIsolation(t *testing.T) {
	s, _ := stream.Apply(stream.State{}, stream.Delta{Content: "Generating"})

	s, ev := stream.Apply(s, stream.Delta{Progress: intp(40)})
	assert.True(t, ev.Progress)
	assert.False(t, ev.Text)
	assert.Equal(t, "Generating", s.Content, "progress must not touch content")
	assert.Equal(t, 40, s.Progress)
	assert.True(t, s.GeneratingVideo)

	s, _ = stream.Apply(s, stream.Delta{Content: "..."})
	assert.Equal(t, 40, s.Progress, "content must not reset progress")
}

func TestApply_PlaceholderSanitization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"video element with body", "before <video>inner</video> after", "before  after"},
		{"bare closing tag", "text</video>", "text"},
		{"bracket placeholder", "here [video] there", "here  there"},
		{"image placeholders", "a <image> b [image] c", "a  b  c"},
		{"case insensitive", "x [VIDEO] y", "x  y"},
		{"plain text untouched", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stream.Sanitize(tt.in))
		})
	}
}

func TestApply_PlaceholderOnlyDeltaChangesNothing(t *testing.T) {
	s, ev := stream.Apply(stream.State{Content: "x"}, stream.Delta{Content: "[video]"})
	assert.False(t, ev.Any())
	assert.Equal(t, "x", s.Content)
}

func TestEvents_Media(t *testing.T) {
	assert.True(t, stream.Events{Images: true}.Media())
	assert.True(t, stream.Events{Videos: true}.Media())
	assert.False(t, stream.Events{Text: true, Progress: true}.Media())
}
