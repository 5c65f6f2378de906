package bus

import "github.com/tinyland-inc/mediaclaw/pkg/media"

// Kind classifies an inbound platform event.
type Kind string

const (
	KindCommand  Kind = "command"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindOther    Kind = "other"
)

// HasMedia reports whether the kind carries a file reference to relay.
func (k Kind) HasMedia() bool {
	return k == KindPhoto || k == KindVideo || k == KindDocument
}

type InboundMessage struct {
	Channel   string                `json:"channel"`
	SenderID  string                `json:"sender_id"`
	ChatID    string                `json:"chat_id"`
	MessageID string                `json:"message_id,omitempty"`
	Kind      Kind                  `json:"kind"`
	Command   string                `json:"command,omitempty"`
	Media     *media.MediaReference `json:"media,omitempty"`
}

type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	ReplyTo string `json:"reply_to,omitempty"`
	Content string `json:"content"`
	HTML    bool   `json:"html,omitempty"`
}
