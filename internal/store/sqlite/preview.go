package sqlite

import (
	"strings"

	"github.com/loopmarked/dashboard/internal/store"
)

const previewMaxRunes = 80

// Preview is the conversation summary line stored when msg is inserted.
func Preview(msg *store.Message) string {
	if msg.Kind == store.MessageKindOffer {
		return "Offer: " + msg.Content
	}

	text := strings.Join(strings.Fields(msg.Content), " ")
	runes := []rune(text)
	if len(runes) <= previewMaxRunes {
		return text
	}
	return string(runes[:previewMaxRunes-1]) + "…"
}
