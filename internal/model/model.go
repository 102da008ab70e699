package model

import (
	"encoding/json"
	"time"
)

// Roles used across the wire protocol and storage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation modes supported by the chat endpoint.
const (
	ModeFormal    = "formal"
	ModeDeveloper = "developer"
)

// Message is one turn in a conversation as the UI layer sees it: plain text
// plus flattened media URI lists. On the wire the media is expanded into a
// multi-part content array (see ExpandParts).
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
	Videos  []string `json:"videos,omitempty"`
}

// ExpandParts converts a Message into the wire shape expected by the chat
// endpoint: one text part plus one part per image/video. Messages without
// attachments keep their plain-string content.
func (m Message) ExpandParts() WireMessage {
	if len(m.Images) == 0 && len(m.Videos) == 0 {
		return WireMessage{Role: m.Role, Content: Text(m.Content)}
	}
	parts := []Part{{Type: PartText, Text: m.Content}}
	for _, img := range m.Images {
		parts = append(parts, Part{Type: PartImageURL, ImageURL: &URLRef{URL: img}})
	}
	for _, vid := range m.Videos {
		parts = append(parts, Part{Type: PartVideoURL, VideoURL: &URLRef{URL: vid}})
	}
	return WireMessage{Role: m.Role, Content: Content{Parts: parts}}
}

// Part types in a multi-part content array.
const (
	PartText     = "text"
	PartImageURL = "image_url"
	PartVideoURL = "video_url"
)

// Part is one element of a multi-part message content array.
type Part struct {
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	ImageURL *URLRef `json:"image_url,omitempty"`
	VideoURL *URLRef `json:"video_url,omitempty"`
}

// URLRef wraps a URL so media parts match the gateway's nested shape.
type URLRef struct {
	URL string `json:"url"`
}

// WireMessage is one turn as it travels over the chat endpoint. Content is
// polymorphic: either a plain string or an array of Parts.
type WireMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content models the string-or-parts union of the wire protocol. When Parts
// is non-nil the message is multi-part; otherwise Value holds plain text.
type Content struct {
	Value string
	Parts []Part
}

// Text builds a plain-string Content.
func Text(s string) Content { return Content{Value: s} }

// MarshalJSON emits either the plain string or the parts array.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts either a JSON string or an array of parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Value = s
		c.Parts = nil
		return nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	c.Parts = parts
	c.Value = ""
	return nil
}

// PlainText returns the textual portion of the content: the string itself,
// or the first text part of a multi-part array.
func (c Content) PlainText() string {
	if c.Parts == nil {
		return c.Value
	}
	for _, p := range c.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// HasPart reports whether a multi-part content contains a part of the given type.
func (c Content) HasPart(partType string) bool {
	for _, p := range c.Parts {
		if p.Type == partType {
			return true
		}
	}
	return false
}

// FirstURL returns the URL of the first part of the given type, or "".
func (c Content) FirstURL(partType string) string {
	for _, p := range c.Parts {
		if p.Type != partType {
			continue
		}
		switch {
		case p.ImageURL != nil:
			return p.ImageURL.URL
		case p.VideoURL != nil:
			return p.VideoURL.URL
		}
	}
	return ""
}

// CountParts returns the number of parts of the given type.
func (c Content) CountParts(partType string) int {
	n := 0
	for _, p := range c.Parts {
		if p.Type == partType {
			n++
		}
	}
	return n
}

// ChatRequest is the body of POST /api/v1/chat. ConversationID is optional;
// when present the server persists the exchange as a side effect.
type ChatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []WireMessage `json:"messages"`
	Mode           string        `json:"mode,omitempty"`
}

// LastUserMessage returns the trailing message if its role is user, else nil.
func (r *ChatRequest) LastUserMessage() *WireMessage {
	if len(r.Messages) == 0 {
		return nil
	}
	last := &r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return nil
	}
	return last
}

// Conversation stores metadata about one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is a persisted message row. Media lists are stored as JSON
// columns so the reconciled assistant output round-trips losslessly.
type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Images         []string  `json:"images,omitempty"`
	Videos         []string  `json:"videos,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FullConversation includes the conversation metadata and all its messages.
type FullConversation struct {
	Conversation
	Messages []StoredMessage `json:"messages"`
}
