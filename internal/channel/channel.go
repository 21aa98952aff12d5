// ABOUTME: Channel-agnostic message types and the adapter contract
// ABOUTME: Adapters translate wire payloads at the boundary; the core sees only these types

package channel

import (
	"errors"
	"time"
)

// ErrNoAdapter is returned when no adapter is registered for a channel.
var ErrNoAdapter = errors.New("no adapter for channel")

// Kind identifies a communication channel.
type Kind string

const (
	KindChat      Kind = "chat"
	KindEmail     Kind = "email"
	KindMessaging Kind = "messaging" // WhatsApp/Telegram-style apps
)

// Synchronous reports whether a channel expects near-real-time replies.
// Synchronous channels get a chat-timeout timer; asynchronous ones do not.
func (k Kind) Synchronous() bool {
	return k == KindChat || k == KindMessaging
}

// Direction of a message relative to the customer.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// Identity carries the channel-reachable identifiers of a sender. A
// customer with an Email set is reachable asynchronously after a chat
// times out.
type Identity struct {
	Email             string
	Phone             string
	SocialID          string
	DeviceFingerprint string
}

// HasAsync reports whether the identity is reachable on an asynchronous
// channel.
func (i Identity) HasAsync() bool {
	return i.Email != "" || i.Phone != ""
}

// ConversationHints carries channel-specific threading information used to
// reattach a message to an existing conversation.
type ConversationHints struct {
	EmailThreadID string
	SessionID     string
}

// NormalizedMessage is the channel-agnostic form every adapter produces.
// It is immutable after creation.
type NormalizedMessage struct {
	ID             string
	Channel        Kind
	Direction      Direction
	SenderType     SenderType
	SenderIdentity Identity
	Content        string
	ContentType    string
	Attachments    []Attachment
	Hints          ConversationHints
	Timestamp      time.Time
}

// Attachment is a file carried by a message.
type Attachment struct {
	Filename string
	MimeType string
	URL      string
}

// OutboundMessage is what the core hands an adapter to deliver.
type OutboundMessage struct {
	Content     string
	ContentType string
	RecipientID string
	Attachments []Attachment
}

// DeliveryResult reports the outcome of an outbound send.
type DeliveryResult struct {
	Success          bool
	ChannelMessageID string
	Error            string
}
