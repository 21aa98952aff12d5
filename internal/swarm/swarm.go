// ABOUTME: External collaboration channel ("swarm") service contract
// ABOUTME: Slack-backed in production, simulated otherwise; failures never block orchestration

// Package swarm opens a dedicated collaboration channel per resolution so
// cross-team work happens in one place. Every operation degrades
// gracefully: a swarm failure is logged by the caller and orchestration
// continues without it.
package swarm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Service is the external collaboration channel contract.
type Service interface {
	// CreateChannel opens a channel and returns its id.
	CreateChannel(ctx context.Context, name, topic string) (string, error)
	// PostMessage posts into an existing channel.
	PostMessage(ctx context.Context, channelID, text string) error
	// ArchiveChannel closes the channel when the work is done.
	ArchiveChannel(ctx context.Context, channelID string) error
}

// SimulatedService records swarm activity in memory. It stands in for a
// real chat-ops integration in development and tests.
type SimulatedService struct {
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*SimulatedChannel
}

// SimulatedChannel is one recorded channel with its message log.
type SimulatedChannel struct {
	ID       string
	Name     string
	Topic    string
	Messages []string
	Archived bool
}

// NewSimulatedService creates an in-memory swarm service.
func NewSimulatedService(logger *slog.Logger) *SimulatedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedService{
		logger:   logger.With("component", "swarm-sim"),
		channels: make(map[string]*SimulatedChannel),
	}
}

// CreateChannel records a new channel and returns its generated id.
func (s *SimulatedService) CreateChannel(ctx context.Context, name, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "swarm-" + uuid.New().String()
	s.channels[id] = &SimulatedChannel{ID: id, Name: name, Topic: topic}
	s.logger.Info("simulated swarm channel created", "channel_id", id, "name", name)
	return id, nil
}

// PostMessage appends to the channel's message log.
func (s *SimulatedService) PostMessage(ctx context.Context, channelID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.channels[channelID]; ok {
		ch.Messages = append(ch.Messages, text)
	}
	s.logger.Debug("simulated swarm message", "channel_id", channelID)
	return nil
}

// ArchiveChannel marks the channel archived.
func (s *SimulatedService) ArchiveChannel(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.channels[channelID]; ok {
		ch.Archived = true
	}
	s.logger.Info("simulated swarm channel archived", "channel_id", channelID)
	return nil
}

// Channel returns a copy of one recorded channel.
func (s *SimulatedService) Channel(channelID string) (SimulatedChannel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return SimulatedChannel{}, false
	}
	cp := *ch
	cp.Messages = append([]string(nil), ch.Messages...)
	return cp, true
}
