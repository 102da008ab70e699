package stream

import "regexp"

// State accumulates one assistant response over the lifetime of a stream.
// It is a plain value threaded through Apply, so the whole reconciliation
// logic is testable without a live network.
type State struct {
	Content         string
	Images          []string
	Videos          []string
	Progress        int
	GeneratingVideo bool
}

// Events flags which aspects of the state a delta changed, so the session
// invokes exactly the callbacks needed and nothing re-renders superfluously.
type Events struct {
	Text     bool
	Images   bool
	Videos   bool
	Progress bool
}

// Any reports whether the delta changed anything at all.
func (e Events) Any() bool { return e.Text || e.Images || e.Videos || e.Progress }

// Media reports a change that must bypass text coalescing and flush
// immediately.
func (e Events) Media() bool { return e.Images || e.Videos }

// Apply folds one delta into the state and reports what changed.
//
// Text deltas append (after placeholder sanitization); image and video sets
// replace rather than append, last write wins. A progress delta only touches
// the progress fields — it must never overwrite content state, and content
// frames never reset progress.
func Apply(s State, d Delta) (State, Events) {
	var ev Events
	if d.Content != "" {
		if clean := Sanitize(d.Content); clean != "" {
			s.Content += clean
			ev.Text = true
		}
	}
	if d.Images != nil {
		s.Images = append([]string(nil), d.Images...)
		ev.Images = true
	}
	if d.Videos != nil {
		s.Videos = append([]string(nil), d.Videos...)
		ev.Videos = true
	}
	if d.Progress != nil {
		s.Progress = *d.Progress
		s.GeneratingVideo = true
		ev.Progress = true
	}
	return s, ev
}

// placeholderPattern matches literal media placeholder tokens a model might
// emit inline. The structured image/video payload is the source of truth for
// media, so these tokens are stripped from text.
var placeholderPattern = regexp.MustCompile(`(?is)<video>.*?</video>|</?video>|\[video\]|</?image>|\[image\]`)

// Sanitize removes inline media placeholder tokens from a text delta.
func Sanitize(text string) string {
	return placeholderPattern.ReplaceAllString(text, "")
}
