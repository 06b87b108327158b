package conversation

import (
	"testing"

	"github.com/quanghia/lectura/internal/store"
)

func msg(t, content string) store.Message {
	return store.Message{Type: t, Content: content}
}

func TestPairHistoryDropsTrailingUser(t *testing.T) {
	in := []store.Message{
		msg(store.MessageTypeUser, "u1"),
		msg(store.MessageTypeAssistant, "a1"),
		msg(store.MessageTypeUser, "u2"),
		msg(store.MessageTypeAssistant, "a2"),
		msg(store.MessageTypeUser, "u3"),
	}
	pairs := PairHistory(in)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0] != (Pair{"u1", "a1"}) || pairs[1] != (Pair{"u2", "a2"}) {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestPairHistoryBrokenAlternation(t *testing.T) {
	in := []store.Message{
		msg(store.MessageTypeUser, "u1"),
		msg(store.MessageTypeUser, "u2"),
		msg(store.MessageTypeAssistant, "a1"),
	}
	if pairs := PairHistory(in); len(pairs) != 0 {
		t.Fatalf("expected no pairs for broken alternation, got %+v", pairs)
	}
}

func TestPairHistoryAssistantFirstOffset(t *testing.T) {
	in := []store.Message{
		msg(store.MessageTypeAssistant, "a0"),
		msg(store.MessageTypeUser, "u1"),
		msg(store.MessageTypeUser, "u2"),
		msg(store.MessageTypeAssistant, "a2"),
	}
	pairs := PairHistory(in)
	if len(pairs) != 1 || pairs[0] != (Pair{"u2", "a2"}) {
		t.Fatalf("expected single (u2,a2) pair, got %+v", pairs)
	}
}

func TestPairHistoryEmpty(t *testing.T) {
	if pairs := PairHistory(nil); pairs != nil {
		t.Fatalf("expected nil for empty history, got %+v", pairs)
	}
}
