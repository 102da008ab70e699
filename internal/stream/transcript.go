package stream

import "deepview/backend/internal/model"

// Transcript is the running message list a UI renders. It enforces the
// upsert invariant: a stream mutates exactly one tail assistant entry, never
// creating two consecutive assistant messages.
type Transcript struct {
	Messages []model.Message
}

// Append adds a finished message (typically the user's turn) to the list.
func (t *Transcript) Append(msg model.Message) {
	t.Messages = append(t.Messages, msg)
}

// UpsertAssistant replaces the tail assistant entry with the current stream
// state, or appends a new one if the tail has a different role. This holds
// even when a stream delivers images before any text delta: the first event
// creates the assistant message with empty text.
func (t *Transcript) UpsertAssistant(s State) {
	msg := model.Message{
		Role:    model.RoleAssistant,
		Content: s.Content,
		Images:  s.Images,
		Videos:  s.Videos,
	}
	if n := len(t.Messages); n > 0 && t.Messages[n-1].Role == model.RoleAssistant {
		t.Messages[n-1] = msg
		return
	}
	t.Messages = append(t.Messages, msg)
}

// Last returns the tail message, or nil for an empty transcript.
func (t *Transcript) Last() *model.Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}
