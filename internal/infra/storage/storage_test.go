package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPut(t *testing.T) {
	m := NewMemory("http://files.local/")
	data := []byte("model")

	url, err := m.Put(context.Background(), "uploads/u1/abc.rbxm", "", data)
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/uploads/u1/abc.rbxm", url)

	data[0] = 'X'
	got, ok := m.Get("uploads/u1/abc.rbxm")
	require.True(t, ok)
	assert.Equal(t, "model", string(got), "stored bytes are copied")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a/b.PNG"))
	assert.Equal(t, "image/jpeg", ContentType("x.jpg"))
	assert.Equal(t, "application/octet-stream", ContentType("x.rbxm"))
	assert.Equal(t, "application/octet-stream", ContentType("noext"))
}
