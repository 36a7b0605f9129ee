package chat

import (
	"fmt"
	"strings"
)

// ImagePlaceholder stands in for a turn that carries only an image.
const ImagePlaceholder = "(An image was sent)"

// Compactor bounds the history sent with each turn. Histories longer than
// Threshold keep only the last Keep messages as turns; the rest become one
// "<speaker>: <content>" line each in a summary for the system prompt.
type Compactor struct {
	Threshold int
	Keep      int
}

func NewCompactor(threshold, keep int) Compactor {
	if threshold <= 0 {
		threshold = 15
	}
	if keep <= 0 || keep > threshold {
		keep = min(5, threshold)
	}
	return Compactor{Threshold: threshold, Keep: keep}
}

type Compacted struct {
	// Lines holds one condensed line per dropped message; nil when nothing
	// was compacted.
	Lines []string
	Turns []Message
}

func (c Compactor) Compact(history []Message) Compacted {
	if len(history) <= c.Threshold {
		return Compacted{Turns: history}
	}
	cut := len(history) - c.Keep
	lines := make([]string, 0, cut)
	for _, m := range history[:cut] {
		lines = append(lines, condense(m))
	}
	return Compacted{Lines: lines, Turns: history[cut:]}
}

// SystemSuffix is the block appended to the system prompt, or "".
func (c Compacted) SystemSuffix() string {
	if len(c.Lines) == 0 {
		return ""
	}
	return fmt.Sprintf("\n\n[Earlier conversation summary]\n%s\n\n(The above summarizes earlier conversation; the history below holds the latest %d messages.)",
		strings.Join(c.Lines, "\n"), len(c.Turns))
}

func condense(m Message) string {
	speaker := "User"
	if m.Role == RoleAssistant {
		speaker = "AI"
	}
	text := strings.Join(strings.Fields(m.Content), " ")
	if text == "" && m.imageRef() != "" {
		text = ImagePlaceholder
	}
	return speaker + ": " + text
}
