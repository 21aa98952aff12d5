// ABOUTME: Tests for the simulated swarm service
// ABOUTME: Covers channel lifecycle and message recording

package swarm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedService_ChannelLifecycle(t *testing.T) {
	s := NewSimulatedService(nil)
	ctx := context.Background()

	id, err := s.CreateChannel(ctx, "res-abc12345", "P1 payment_failure for conversation conv-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "swarm-"))

	require.NoError(t, s.PostMessage(ctx, id, "kickoff"))
	require.NoError(t, s.PostMessage(ctx, id, "root cause found"))
	require.NoError(t, s.ArchiveChannel(ctx, id))

	ch, ok := s.Channel(id)
	require.True(t, ok)
	assert.Equal(t, "res-abc12345", ch.Name)
	assert.Equal(t, []string{"kickoff", "root cause found"}, ch.Messages)
	assert.True(t, ch.Archived)
}

func TestSimulatedService_UnknownChannel(t *testing.T) {
	s := NewSimulatedService(nil)

	_, ok := s.Channel("swarm-missing")
	assert.False(t, ok)

	// Posting into an unknown channel is a silent no-op, matching the
	// degrade-gracefully contract.
	assert.NoError(t, s.PostMessage(context.Background(), "swarm-missing", "hello"))
}
