package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// This package writes the chat-completion SSE envelope the client streaming
// session expects: `data: {"choices":[{"delta":{...}}]}\n\n` frames ending
// with `data: [DONE]\n\n`. Synthetic frames produced by the generation
// orchestrator go through the same writer as pass-through bytes from the AI
// gateway, so the two paths are transport-indistinguishable.

// SetHeaders configures the response for SSE streaming. Must be called
// before the first write.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

type delta struct {
	Content       string   `json:"content,omitempty"`
	Images        []string `json:"images,omitempty"`
	Videos        []string `json:"videos,omitempty"`
	VideoProgress *int     `json:"videoProgress,omitempty"`
}

type chunk struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Delta delta `json:"delta"`
}

// Writer emits delta frames to an HTTP response, flushing after every write.
// Safe for concurrent use.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps a ResponseWriter. It fails if the writer cannot flush,
// since buffered SSE defeats the point.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

func (w *Writer) writeDelta(d delta) error {
	data, err := json.Marshal(chunk{Choices: []choice{{Delta: d}}})
	if err != nil {
		return fmt.Errorf("marshal delta frame: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		// A write failure here is a strong indicator the client disconnected.
		return fmt.Errorf("write delta frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// Content emits a text delta frame.
func (w *Writer) Content(text string) error {
	return w.writeDelta(delta{Content: text})
}

// Images emits an image-set frame. Sets replace, they never append.
func (w *Writer) Images(urls []string) error {
	return w.writeDelta(delta{Images: urls})
}

// Videos emits a video-set frame.
func (w *Writer) Videos(urls []string) error {
	return w.writeDelta(delta{Videos: urls})
}

// Progress emits a videoProgress frame, clamped to 1..99 so the bar never
// shows done before the terminal result arrives.
func (w *Writer) Progress(percent int) error {
	if percent < 1 {
		percent = 1
	}
	if percent > 99 {
		percent = 99
	}
	return w.writeDelta(delta{VideoProgress: &percent})
}

// Done emits the stream terminator.
func (w *Writer) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line. Clients ignore it; load balancers see
// traffic and keep the connection open.
func (w *Writer) Comment(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// Copy forwards an upstream SSE body verbatim, flushing chunk by chunk. Used
// for the gateway pass-through path; the upstream frames already carry their
// own [DONE] terminator.
func (w *Writer) Copy(r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.mu.Lock()
			_, werr := w.w.Write(buf[:n])
			if werr == nil {
				w.flusher.Flush()
			}
			w.mu.Unlock()
			if werr != nil {
				return fmt.Errorf("forward stream: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
