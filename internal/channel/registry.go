// ABOUTME: Adapter registry mapping channel kinds to delivery implementations
// ABOUTME: Includes a simulated adapter used when no real channel is wired

package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Adapter delivers outbound messages on one channel. Implementations own
// the wire protocol; the core never sees it.
type Adapter interface {
	Name() Kind
	Send(ctx context.Context, msg OutboundMessage) (DeliveryResult, error)
}

// Registry maps channel kinds to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
	logger   *slog.Logger
}

// NewRegistry creates an empty adapter registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[Kind]Adapter),
		logger:   logger.With("component", "channels"),
	}
}

// Register installs an adapter, replacing any existing one for the kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
	r.logger.Info("channel adapter registered", "channel", a.Name())
}

// Send delivers a message on the given channel. Returns ErrNoAdapter if
// none is registered.
func (r *Registry) Send(ctx context.Context, kind Kind, msg OutboundMessage) (DeliveryResult, error) {
	r.mu.RLock()
	a, ok := r.adapters[kind]
	r.mu.RUnlock()

	if !ok {
		return DeliveryResult{Success: false, Error: ErrNoAdapter.Error()}, ErrNoAdapter
	}
	return a.Send(ctx, msg)
}

// SimulatedAdapter logs outbound messages and reports success. It stands in
// for real channel integrations in development and tests.
type SimulatedAdapter struct {
	kind   Kind
	logger *slog.Logger

	mu   sync.Mutex
	sent []OutboundMessage
}

// NewSimulatedAdapter creates a simulated adapter for the given kind.
func NewSimulatedAdapter(kind Kind, logger *slog.Logger) *SimulatedAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedAdapter{
		kind:   kind,
		logger: logger.With("component", "channel-sim", "channel", kind),
	}
}

// Name returns the channel kind this adapter serves.
func (a *SimulatedAdapter) Name() Kind { return a.kind }

// Send records the message and reports success.
func (a *SimulatedAdapter) Send(ctx context.Context, msg OutboundMessage) (DeliveryResult, error) {
	a.mu.Lock()
	a.sent = append(a.sent, msg)
	a.mu.Unlock()

	a.logger.Info("simulated delivery",
		"recipient", msg.RecipientID,
		"content_length", len(msg.Content))
	return DeliveryResult{
		Success:          true,
		ChannelMessageID: "sim-" + uuid.New().String(),
	}, nil
}

// Sent returns a copy of everything delivered through this adapter.
func (a *SimulatedAdapter) Sent() []OutboundMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]OutboundMessage, len(a.sent))
	copy(out, a.sent)
	return out
}
