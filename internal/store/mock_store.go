// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation       // keyed by conversation ID
	messages      map[string][]*Message          // keyed by conversation ID
	resolutions   map[string]*Resolution         // keyed by resolution ID
	updates       map[string][]*ResolutionUpdate // keyed by resolution ID
	swarms        map[string]*SwarmRecord        // keyed by resolution ID
	archives      []*ResolutionArchive

	// FailNext makes the next mutating call fail with the given error,
	// simulating a storage outage.
	FailNext error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		resolutions:   make(map[string]*Resolution),
		updates:       make(map[string][]*ResolutionUpdate),
		swarms:        make(map[string]*SwarmRecord),
	}
}

// failNextLocked consumes and returns the injected failure, if any.
// Must be called with mu held.
func (m *MockStore) failNextLocked() error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	return nil
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicate
	}
	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// UpdateConversation replaces a stored conversation.
func (m *MockStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	if _, ok := m.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	c := *conv
	c.UpdatedAt = time.Now()
	m.conversations[c.ID] = &c
	return nil
}

// ListConversationsByCustomer returns the customer's conversations, newest first.
func (m *MockStore) ListConversationsByCustomer(ctx context.Context, customerID string, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Conversation
	for _, c := range m.conversations {
		if c.CustomerID == customerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindConversationByEmailThread locates a conversation via a message's
// email thread hint.
func (m *MockStore) FindConversationByEmailThread(ctx context.Context, threadID string) (*Conversation, error) {
	if threadID == "" {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for convID, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.EmailThreadID == threadID {
				if c, ok := m.conversations[convID]; ok {
					result := *c
					return &result, nil
				}
			}
		}
	}
	return nil, ErrNotFound
}

// SaveMessage appends a message to its conversation.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	cp := *msg
	m.messages[cp.ConversationID] = append(m.messages[cp.ConversationID], &cp)
	return nil
}

// ListMessagesByConversation returns a conversation's messages in insertion order.
func (m *MockStore) ListMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CreateResolution stores a new resolution.
func (m *MockStore) CreateResolution(ctx context.Context, res *Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	if _, exists := m.resolutions[res.ID]; exists {
		return ErrDuplicate
	}
	r := *res
	m.resolutions[r.ID] = &r
	return nil
}

// GetResolution retrieves a resolution by ID.
func (m *MockStore) GetResolution(ctx context.Context, id string) (*Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.resolutions[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *r
	return &result, nil
}

// UpdateResolution replaces a stored resolution.
func (m *MockStore) UpdateResolution(ctx context.Context, res *Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	if _, ok := m.resolutions[res.ID]; !ok {
		return ErrNotFound
	}
	r := *res
	r.UpdatedAt = time.Now()
	m.resolutions[r.ID] = &r
	return nil
}

// GetResolutionByConversation returns the newest resolution linked to a conversation.
func (m *MockStore) GetResolutionByConversation(ctx context.Context, conversationID string) (*Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *Resolution
	for _, r := range m.resolutions {
		if r.ConversationID != conversationID {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	result := *newest
	return &result, nil
}

// SaveResolutionUpdate appends an audit record.
func (m *MockStore) SaveResolutionUpdate(ctx context.Context, upd *ResolutionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	cp := *upd
	m.updates[cp.ResolutionID] = append(m.updates[cp.ResolutionID], &cp)
	return nil
}

// ListResolutionUpdates returns a resolution's audit records in insertion order.
func (m *MockStore) ListResolutionUpdates(ctx context.Context, resolutionID string) ([]*ResolutionUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	upds := m.updates[resolutionID]
	out := make([]*ResolutionUpdate, 0, len(upds))
	for _, u := range upds {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// CreateSwarmRecord stores a swarm channel record.
func (m *MockStore) CreateSwarmRecord(ctx context.Context, rec *SwarmRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	cp := *rec
	m.swarms[cp.ResolutionID] = &cp
	return nil
}

// UpdateSwarmRecord replaces a swarm channel record.
func (m *MockStore) UpdateSwarmRecord(ctx context.Context, rec *SwarmRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	if _, ok := m.swarms[rec.ResolutionID]; !ok {
		return ErrNotFound
	}
	cp := *rec
	m.swarms[cp.ResolutionID] = &cp
	return nil
}

// GetSwarmByResolution retrieves the swarm record for a resolution.
func (m *MockStore) GetSwarmByResolution(ctx context.Context, resolutionID string) (*SwarmRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.swarms[resolutionID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *rec
	return &result, nil
}

// SaveResolutionArchive appends an offline-learning snapshot.
func (m *MockStore) SaveResolutionArchive(ctx context.Context, arc *ResolutionArchive) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextLocked(); err != nil {
		return err
	}
	cp := *arc
	m.archives = append(m.archives, &cp)
	return nil
}

// Archives returns the saved snapshots (test helper).
func (m *MockStore) Archives() []*ResolutionArchive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ResolutionArchive, len(m.archives))
	copy(out, m.archives)
	return out
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error { return nil }
