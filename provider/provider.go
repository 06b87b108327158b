package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/quanghia/lectura/config"
	"github.com/quanghia/lectura/internal/conversation"
	openai_provider "github.com/quanghia/lectura/provider/openai"
)

// Client represents different responder backends.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Responder is the interface the chat service uses to obtain a reply to a
// new message, given the session's recent exchange pairs. Implementations
// never retry; failures surface as *ResponderError.
type Responder interface {
	Reply(ctx context.Context, message string, history []conversation.Pair) (string, error)
	Model() string
}

// ResponderError wraps any failure of the external responder call.
type ResponderError struct {
	Err error
}

func (e *ResponderError) Error() string { return fmt.Sprintf("responder: %v", e.Err) }
func (e *ResponderError) Unwrap() error { return e.Err }

// NewResponder creates a responder backed by the given client type.
func NewResponder(client Client, cfg config.ResponderConfig) (Responder, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("responder api key not set")
		}
		return errWrap{openai_provider.NewClient(cfg)}, nil
	case Anthropic:
		return nil, errors.New("anthropic responder not implemented yet")
	default:
		return nil, fmt.Errorf("unsupported responder client %q", client)
	}
}

// errWrap folds backend errors into *ResponderError so callers can map
// them to a gateway failure without knowing the backend.
type errWrap struct {
	inner Responder
}

func (w errWrap) Reply(ctx context.Context, message string, history []conversation.Pair) (string, error) {
	reply, err := w.inner.Reply(ctx, message, history)
	if err != nil {
		return "", &ResponderError{Err: err}
	}
	return reply, nil
}

func (w errWrap) Model() string { return w.inner.Model() }
