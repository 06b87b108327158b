package conversation

import "github.com/quanghia/lectura/internal/store"

// Pair is one (prompt, reply) exchange handed to the responder as context.
type Pair struct {
	Prompt string
	Reply  string
}

// PairHistory reshapes a chronological message window into exchange pairs.
// Messages are walked two at a time; a pair is kept only when the first is
// a user message and the second an assistant message. Anything else at
// that offset is dropped silently, as is a trailing unpaired message. The
// store tolerates arbitrary interleavings, so pairing must be lossy rather
// than strict.
func PairHistory(messages []store.Message) []Pair {
	var pairs []Pair
	for i := 0; i+1 < len(messages); i += 2 {
		prompt, reply := messages[i], messages[i+1]
		if prompt.Type == store.MessageTypeUser && reply.Type == store.MessageTypeAssistant {
			pairs = append(pairs, Pair{Prompt: prompt.Content, Reply: reply.Content})
		}
	}
	return pairs
}
