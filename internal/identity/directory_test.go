package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	d.Add("alice", "Alice")

	ok, err := d.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	name, err := d.DisplayName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	_, err = d.DisplayName(ctx, "stranger")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestMemoryDirectoryOpenMode(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	d.Open = true

	ok, err := d.Exists(ctx, "guest-7")
	require.NoError(t, err)
	assert.True(t, ok)

	// Open mode never admits an empty id.
	ok, err = d.Exists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// Existence in open mode does not grant a display name.
	_, err = d.DisplayName(ctx, "guest-7")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
