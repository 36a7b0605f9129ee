package chat

import (
	"context"
	"log"

	"github.com/suPer8Hu/macrolog/internal/ai"
)

// ImageSource turns a stored image reference into the URL placed in the
// request: a data URL for local files, the URL itself for external ones.
type ImageSource interface {
	ImageURL(ctx context.Context, ref string) (string, error)
}

// Turn is the message being answered.
type Turn struct {
	Text     string
	ImageRef string
}

type Builder struct {
	images ImageSource
}

func NewBuilder(images ImageSource) *Builder {
	return &Builder{images: images}
}

// Build assembles system, history turns, then the current turn. A history
// image that cannot be loaded degrades to text; a failing current image is
// returned as *ImageLoadError.
func (b *Builder) Build(ctx context.Context, systemPrompt string, history Compacted, current Turn) ([]ai.Message, error) {
	out := make([]ai.Message, 0, len(history.Turns)+2)
	out = append(out, ai.TextMessage(ai.RoleSystem, systemPrompt+history.SystemSuffix()))

	for _, m := range history.Turns {
		ref := m.imageRef()
		if ref == "" {
			out = append(out, ai.TextMessage(m.Role, m.Content))
			continue
		}
		url, err := b.resolve(ctx, ref)
		if err != nil {
			log.Printf("chat: history image dropped msg=%d ref=%q err=%v", m.ID, ref, err)
			out = append(out, ai.TextMessage(m.Role, textOrPlaceholder(m.Content)))
			continue
		}
		out = append(out, ai.ImageMessage(m.Role, textOrPlaceholder(m.Content), url))
	}

	if current.ImageRef == "" {
		out = append(out, ai.TextMessage(ai.RoleUser, current.Text))
		return out, nil
	}
	url, err := b.resolve(ctx, current.ImageRef)
	if err != nil {
		return nil, &ImageLoadError{Ref: current.ImageRef, Err: err}
	}
	out = append(out, ai.ImageMessage(ai.RoleUser, textOrPlaceholder(current.Text), url))
	return out, nil
}

func (b *Builder) resolve(ctx context.Context, ref string) (string, error) {
	if b.images == nil {
		return "", errNoImageSource
	}
	return b.images.ImageURL(ctx, ref)
}

func textOrPlaceholder(s string) string {
	if s == "" {
		return ImagePlaceholder
	}
	return s
}
