package classify

import (
	"strings"

	"deepview/backend/internal/model"
)

// Intent is the backend path a chat request should take.
type Intent int

const (
	IntentChat Intent = iota
	IntentImageGeneration
	IntentVideoGeneration
	IntentAnalysis
)

func (i Intent) String() string {
	switch i {
	case IntentImageGeneration:
		return "image_generation"
	case IntentVideoGeneration:
		return "video_generation"
	case IntentAnalysis:
		return "multimodal_analysis"
	default:
		return "plain_chat"
	}
}

// Classifier decides intent from the latest user message with a short list
// of ordered rules. Keyword sets are injected from configuration so
// localization never touches this package.
//
// Known limitation: generation intent is plain case-insensitive substring
// matching (a creation verb plus a media noun), so unrelated sentences that
// happen to contain both words will false-positive. No more precise signal
// exists in the request, so the behavior is kept as-is.
type Classifier struct {
	videoVerbs []string
	videoNouns []string
	imageVerbs []string
	imageNouns []string
}

func New(videoVerbs, videoNouns, imageVerbs, imageNouns []string) *Classifier {
	return &Classifier{
		videoVerbs: lowerAll(videoVerbs),
		videoNouns: lowerAll(videoNouns),
		imageVerbs: lowerAll(imageVerbs),
		imageNouns: lowerAll(imageNouns),
	}
}

// Classify applies the rules in precedence order and returns on the first
// match:
//
//  1. a video attachment means "analyze this", never "generate a new one",
//     so it wins over any generation keyword in the text;
//  2. creation verb + video noun;
//  3. creation verb + image noun;
//  4. an image attachment without generation intent is analysis;
//  5. everything else is plain chat.
func (c *Classifier) Classify(messages []model.WireMessage) Intent {
	if len(messages) == 0 {
		return IntentChat
	}
	last := messages[len(messages)-1]
	text := strings.ToLower(last.Content.PlainText())

	if last.Content.HasPart(model.PartVideoURL) {
		return IntentAnalysis
	}
	if containsAny(text, c.videoVerbs) && containsAny(text, c.videoNouns) {
		return IntentVideoGeneration
	}
	if containsAny(text, c.imageVerbs) && containsAny(text, c.imageNouns) {
		return IntentImageGeneration
	}
	if last.Content.HasPart(model.PartImageURL) {
		return IntentAnalysis
	}
	return IntentChat
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}
