// ABOUTME: Tests for the channel adapter registry
// ABOUTME: Covers delivery, missing adapters, and the simulated adapter

package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Send_NoAdapter(t *testing.T) {
	r := NewRegistry(nil)

	res, err := r.Send(context.Background(), KindEmail, OutboundMessage{Content: "hi"})
	assert.ErrorIs(t, err, ErrNoAdapter)
	assert.False(t, res.Success)
}

func TestRegistry_Send_SimulatedAdapter(t *testing.T) {
	r := NewRegistry(nil)
	sim := NewSimulatedAdapter(KindChat, nil)
	r.Register(sim)

	res, err := r.Send(context.Background(), KindChat, OutboundMessage{
		Content:     "hello there",
		RecipientID: "cust-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ChannelMessageID)

	sent := sim.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello there", sent[0].Content)
	assert.Equal(t, "cust-1", sent[0].RecipientID)
}

func TestKind_Synchronous(t *testing.T) {
	assert.True(t, KindChat.Synchronous())
	assert.True(t, KindMessaging.Synchronous())
	assert.False(t, KindEmail.Synchronous())
}

func TestIdentity_HasAsync(t *testing.T) {
	assert.True(t, Identity{Email: "a@b.com"}.HasAsync())
	assert.True(t, Identity{Phone: "+15551234"}.HasAsync())
	assert.False(t, Identity{SocialID: "@user", DeviceFingerprint: "fp"}.HasAsync())
}
