// Package bus defines the canonical message shapes that flow between
// channel handlers, the agent client, and the outbound dispatcher, plus
// the per-instance bounded queue that preserves per-conversation
// ordering.
package bus

import "time"

// MessageKind tags the shape of an InboundMessage's payload. Keeping this
// a closed tag, rather than a record with every field optional, means a
// handler switching on Kind knows exactly which fields are populated.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindMedia       MessageKind = "media"
	KindAudio       MessageKind = "audio"
	KindReaction    MessageKind = "reaction"
	KindQuoted      MessageKind = "quoted"
	KindGroupEvent  MessageKind = "group_event"
	KindUnsupported MessageKind = "unsupported"
)

// MediaAttachment describes one media item attached to a message.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// QuotedMessage carries the metadata of a message being replied to.
type QuotedMessage struct {
	MessageID string `json:"message_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// InboundMessage is the canonical, channel-agnostic shape every channel
// handler normalizes its provider payload into before the rest of the
// pipeline (access engine, tracing, agent client) ever sees it.
type InboundMessage struct {
	Instance   string            `json:"instance"`
	Channel    string            `json:"channel"`
	Kind       MessageKind       `json:"kind"`
	MessageID  string            `json:"message_id,omitempty"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	IsGroup    bool              `json:"is_group"`
	Content    string            `json:"content,omitempty"`
	Media      []MediaAttachment `json:"media,omitempty"`
	Quoted     *QuotedMessage    `json:"quoted,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// HasMedia reports whether any media attachment is present.
func (m InboundMessage) HasMedia() bool { return len(m.Media) > 0 }

// HasQuoted reports whether the message quotes another.
func (m InboundMessage) HasQuoted() bool { return m.Quoted != nil }

// OutboundMessage is the reply handed to the Outbound Dispatcher.
type OutboundMessage struct {
	Instance string `json:"instance"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
}

// DefaultQueueCapacity is the default per-instance backpressure bound.
const DefaultQueueCapacity = 256

// Queue is a bounded, per-instance FIFO that preserves arrival order for
// a given conversation. One Queue is owned by exactly one instance
// worker; overflow is the caller's signal to reject the webhook with 429
// rather than block.
type Queue struct {
	ch chan InboundMessage
}

// NewQueue creates a bounded inbound queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan InboundMessage, capacity)}
}

// TryEnqueue attempts a non-blocking enqueue; returns false on overflow.
func (q *Queue) TryEnqueue(msg InboundMessage) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// Receive returns the channel to range over for consumption.
func (q *Queue) Receive() <-chan InboundMessage { return q.ch }

// Close closes the queue. Safe to call once the owning worker has
// stopped consuming.
func (q *Queue) Close() { close(q.ch) }
