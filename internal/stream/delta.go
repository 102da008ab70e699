package stream

import (
	"encoding/json"
)

// Delta is the normalized interpretation of one frame payload. A nil media
// slice means the frame carried no media field; an empty one never escapes
// normalization. Progress is a pointer so a literal 0 still counts as present.
type Delta struct {
	Content  string
	Images   []string
	Videos   []string
	Progress *int
}

// Wire shapes of the gateway envelope. Media fields stay raw because
// providers are inconsistent about their shape; normalizeMedia resolves them.
type chunkEnvelope struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Delta   *payloadBody `json:"delta,omitempty"`
	Message *payloadBody `json:"message,omitempty"`
}

type payloadBody struct {
	Content       string          `json:"content,omitempty"`
	Images        json.RawMessage `json:"images,omitempty"`
	Videos        json.RawMessage `json:"videos,omitempty"`
	VideoProgress *float64        `json:"videoProgress,omitempty"`
}

// DecodeDelta parses a frame payload into a Delta. A JSON error means the
// frame is likely truncated; the caller pushes it back to the parser rather
// than surfacing the error.
//
// Field precedence follows the protocol: delta wins over message (the final
// non-streamed message shape) when both are present.
func DecodeDelta(payload string) (Delta, error) {
	var env chunkEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Delta{}, err
	}
	var d Delta
	if len(env.Choices) == 0 {
		return d, nil
	}
	first := env.Choices[0]

	pick := func(f func(*payloadBody) bool) {
		if first.Delta != nil && f(first.Delta) {
			return
		}
		if first.Message != nil {
			f(first.Message)
		}
	}

	pick(func(b *payloadBody) bool {
		if b.Content == "" {
			return false
		}
		d.Content = b.Content
		return true
	})
	pick(func(b *payloadBody) bool {
		urls := NormalizeMedia(b.Images)
		if len(urls) == 0 {
			return false
		}
		d.Images = urls
		return true
	})
	pick(func(b *payloadBody) bool {
		urls := NormalizeMedia(b.Videos)
		if len(urls) == 0 {
			return false
		}
		d.Videos = urls
		return true
	})
	pick(func(b *payloadBody) bool {
		if b.VideoProgress == nil {
			return false
		}
		p := int(*b.VideoProgress)
		d.Progress = &p
		return true
	})
	return d, nil
}

// mediaEntry is the exhaustive set of shapes providers use for one media
// element: a bare URL string, {url}, {image_url:{url}} or {video_url:{url}}.
type mediaEntry struct {
	URL      string `json:"url,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
	VideoURL *struct {
		URL string `json:"url"`
	} `json:"video_url,omitempty"`
}

func (e mediaEntry) resolve() string {
	switch {
	case e.ImageURL != nil && e.ImageURL.URL != "":
		return e.ImageURL.URL
	case e.VideoURL != nil && e.VideoURL.URL != "":
		return e.VideoURL.URL
	default:
		return e.URL
	}
}

// NormalizeMedia resolves a raw media field into a flat URL list. The field
// may be an array or a single scalar, and each element may be any mediaEntry
// shape. Unresolvable entries are filtered out; an empty result means the
// field is treated as absent.
func NormalizeMedia(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var urls []string
	appendOne := func(item json.RawMessage) {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				urls = append(urls, s)
			}
			return
		}
		var entry mediaEntry
		if err := json.Unmarshal(item, &entry); err == nil {
			if u := entry.resolve(); u != "" {
				urls = append(urls, u)
			}
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, item := range items {
			appendOne(item)
		}
		return urls
	}
	appendOne(raw)
	return urls
}
