package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a completion request. A message with
// Parts is sent as a content array (text + image); otherwise Content is sent
// as a plain string.
type Message struct {
	Role    string
	Content string
	Parts   []Part
}

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

type Part struct {
	Type PartType
	Text string
	// ImageURL is either a data: URL with inlined bytes or an external http(s) URL.
	ImageURL string
}

func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

func ImageMessage(role, text, imageURL string) Message {
	return Message{
		Role:    role,
		Content: text,
		Parts: []Part{
			{Type: PartText, Text: text},
			{Type: PartImage, ImageURL: imageURL},
		},
	}
}

// HasImage reports whether the message carries an image part.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer sends one completion request and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
