package storage

import (
	"context"
	"path"
	"strings"
	"sync"
)

// Memory is an in-process uploads.Sink used when no object store is configured.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	BaseURL string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	return &Memory{objects: make(map[string][]byte), BaseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Memory) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = cp
	m.mu.Unlock()
	return m.BaseURL + "/" + key, nil
}

// Get returns the stored bytes for key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	return b, ok
}

var contentTypes = map[string]string{
	".png": "image/png",
	".jpg": "image/jpeg",
	".mp3": "audio/mpeg",
	".ogg": "audio/ogg",
	".lua": "text/x-lua",
	".obj": "text/plain",
}

// ContentType maps an object key to a MIME type, defaulting to octet-stream.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
