package torrents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct{ sent []string }

func (s *fakeSink) Send(event string, _ interface{}) error {
	s.sent = append(s.sent, event)
	return nil
}

func TestRegistryPeekWithoutSession(t *testing.T) {
	r := NewRegistry(Config{ScratchRoot: t.TempDir()}, nil)
	_, ok := r.Peek("nobody")
	assert.False(t, ok)
}

func TestRegistrySessionPerUser(t *testing.T) {
	r := NewRegistry(Config{ScratchRoot: t.TempDir(), DisableDHT: true}, nil)

	alice, err := r.Session("alice")
	require.NoError(t, err)
	bob, err := r.Session("bob")
	require.NoError(t, err)
	assert.NotSame(t, alice, bob)

	// Per-user idempotence: a repeat request returns the same session.
	again, err := r.Session("alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)

	got, ok := r.Peek("bob")
	assert.True(t, ok)
	assert.Same(t, bob, got)
}

func TestRegistryChannelLifecycle(t *testing.T) {
	r := NewRegistry(Config{ScratchRoot: t.TempDir()}, nil)

	_, ok := r.Channel("u1")
	assert.False(t, ok)

	first := &fakeSink{}
	assert.Nil(t, r.SetChannel("u1", first))

	got, ok := r.Channel("u1")
	assert.True(t, ok)
	assert.Same(t, first, got)

	// A reconnect supersedes the old channel and hands it back for closing.
	second := &fakeSink{}
	prev := r.SetChannel("u1", second)
	assert.Same(t, first, prev)

	// Removing the superseded channel leaves the newer one in place.
	r.RemoveChannel("u1", first)
	got, ok = r.Channel("u1")
	assert.True(t, ok)
	assert.Same(t, second, got)

	r.RemoveChannel("u1", second)
	_, ok = r.Channel("u1")
	assert.False(t, ok)
}
