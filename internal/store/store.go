// ABOUTME: Store interface and aggregate types for deskflow persistence
// ABOUTME: States are stored as strings; the engines own the typed enums

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating an entity whose id already exists
var ErrDuplicate = errors.New("already exists")

// Conversation is the customer-dialogue aggregate. It is owned by the
// conversation engine and mutated only through its operations.
type Conversation struct {
	ID              string
	CustomerID      string
	State           string
	ChannelsUsed    []string
	CurrentChannel  string
	AssignedAgentID string
	Intent          string
	Severity        string
	Sentiment       string
	RequiredSkills  []string
	SLATier         string

	FirstResponseDueAt *time.Time
	ResolutionDueAt    *time.Time
	FirstResponseAt    *time.Time
	SLABreached        bool

	// Customer identities reachable per channel; used for channel continuity
	CustomerEmail string
	CustomerPhone string

	ResolutionID  string
	MessageCount  int
	LastMessageAt *time.Time
	ResolvedAt    *time.Time

	DeflectionAttempts   int
	LastDeflectionAt     *time.Time
	DeflectionSuccessful bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one message within a conversation, annotated after
// classification.
type Message struct {
	ID             string
	ConversationID string
	Channel        string
	Direction      string
	SenderType     string
	Content        string
	ContentType    string

	// Classification annotations (rolled up into the conversation too)
	Intent    string
	Severity  string
	Sentiment string

	// Threading hints preserved for conversation reattachment
	EmailThreadID string
	SessionID     string

	CreatedAt time.Time
}

// Resolution tracks a long-running technical incident linked to a
// conversation.
type Resolution struct {
	ID             string
	ConversationID string
	IssueType      string
	OwningTeam     string
	OwnerID        string
	Status         string
	Priority       string

	EtaWindowHours       int
	ExpectedResolutionAt *time.Time

	SLAStartedAt          time.Time
	SLATotalPausedSeconds int64

	RootCause      string
	FixDescription string

	IsRecurrence       bool
	ParentResolutionID string
	RecurrenceCount    int

	// LastInternalUpdateAt feeds the silence monitor
	LastInternalUpdateAt *time.Time
	// LastCustomerUpdateAt records the newest customer-facing message
	LastCustomerUpdateAt *time.Time

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// ResolutionUpdate is an immutable append-only audit record of one change.
type ResolutionUpdate struct {
	ID           string
	ResolutionID string
	UpdateType   string
	Content      string
	Visibility   string // internal or customer
	AuthorID     string
	AuthorSource string
	CreatedAt    time.Time
}

// SwarmRecord tracks the external collaboration channel opened for a
// resolution.
type SwarmRecord struct {
	ID           string
	ResolutionID string
	ChannelID    string
	Status       string // open or archived
	CreatedAt    time.Time
	ArchivedAt   *time.Time
}

// ResolutionArchive is the structured snapshot written when a resolution
// resolves, kept for offline learning.
type ResolutionArchive struct {
	ID           string
	ResolutionID string
	Data         []byte // JSON snapshot
	CreatedAt    time.Time
}

// Store is the persistence boundary for the orchestration core.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, conv *Conversation) error
	// ListConversationsByCustomer returns the customer's conversations,
	// newest first.
	ListConversationsByCustomer(ctx context.Context, customerID string, limit int) ([]*Conversation, error)
	// FindConversationByEmailThread locates the conversation containing a
	// message with the given email thread id.
	FindConversationByEmailThread(ctx context.Context, threadID string) (*Conversation, error)

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Resolutions
	CreateResolution(ctx context.Context, res *Resolution) error
	GetResolution(ctx context.Context, id string) (*Resolution, error)
	UpdateResolution(ctx context.Context, res *Resolution) error
	GetResolutionByConversation(ctx context.Context, conversationID string) (*Resolution, error)

	// Resolution updates (append-only)
	SaveResolutionUpdate(ctx context.Context, upd *ResolutionUpdate) error
	ListResolutionUpdates(ctx context.Context, resolutionID string) ([]*ResolutionUpdate, error)

	// Swarm records
	CreateSwarmRecord(ctx context.Context, rec *SwarmRecord) error
	UpdateSwarmRecord(ctx context.Context, rec *SwarmRecord) error
	GetSwarmByResolution(ctx context.Context, resolutionID string) (*SwarmRecord, error)

	// Archives
	SaveResolutionArchive(ctx context.Context, arc *ResolutionArchive) error

	// Close releases any resources held by the store
	Close() error
}
