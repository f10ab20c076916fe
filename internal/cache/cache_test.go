package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("org1:query", []string{"result"})

	v, ok := c.Get("org1:query")
	require.True(t, ok)
	assert.Equal(t, []string{"result"}, v)

	_, ok = c.Get("org1:other")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)

	c.SetWithTTL("key", "value", 20*time.Millisecond)

	_, ok := c.Get("key")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCache_DeletePrefix(t *testing.T) {
	c := New(time.Minute)

	c.Set("org1:a", 1)
	c.Set("org1:b", 2)
	c.Set("org2:a", 3)

	deleted := c.DeletePrefix("org1:")
	assert.Equal(t, 2, deleted)

	_, ok := c.Get("org1:a")
	assert.False(t, ok)
	_, ok = c.Get("org2:a")
	assert.True(t, ok)
}

func TestCache_Flush(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1)
	c.Flush()

	_, ok := c.Get("a")
	assert.False(t, ok)
}
