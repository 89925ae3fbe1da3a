package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		CatalogURL:        srv.URL,
		GamesURL:          srv.URL,
		BadgesURL:         srv.URL,
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxPages:          5,
	}, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestScanCatalogDrainsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search/items/details", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "13365322", q.Get("CreatorTargetId"))
		assert.Equal(t, "User", q.Get("CreatorType"))

		switch q.Get("Cursor") {
		case "":
			writeJSON(w, map[string]any{
				"nextPageCursor": "page2",
				"data": []map[string]any{
					{"id": 101, "itemType": "Asset", "assetType": 10, "name": "Huge Cosmic Dragon Pet"},
					{"id": 7, "itemType": "Bundle", "name": "Some Bundle"},
				},
			})
		case "page2":
			writeJSON(w, map[string]any{
				"nextPageCursor": nil,
				"data": []map[string]any{
					{"id": 102, "itemType": "Asset", "assetType": 13, "name": "Logo", "description": "decal"},
				},
			})
		default:
			t.Errorf("unexpected cursor %q", q.Get("Cursor"))
		}
	})
	c := newTestClient(t, mux)

	var mu sync.Mutex
	var observed []int
	c.OnRequest = func(endpoint string, status int, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "catalog", endpoint)
		observed = append(observed, status)
	}

	got, err := c.Scan(context.Background(), assets.Target{ID: "13365322", Kind: assets.TargetUser})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "101", got[0].ID)
	assert.Equal(t, assets.KindPet, got[0].Kind)
	assert.Equal(t, assets.RarityHuge, got[0].Rarity)
	assert.JSONEq(t, `{"id":101,"itemType":"Asset","assetType":10,"name":"Huge Cosmic Dragon Pet"}`, string(got[0].Metadata))

	assert.Equal(t, "102", got[1].ID)
	assert.Equal(t, assets.KindTexture, got[1].Kind)
	assert.Equal(t, "decal", got[1].Description)

	assert.Equal(t, []int{200, 200}, observed)
}

func TestScanGroupUsesGroupCreatorType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search/items/details", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Group", r.URL.Query().Get("CreatorType"))
		writeJSON(w, map[string]any{"data": []any{}})
	})
	c := newTestClient(t, mux)

	got, err := c.Scan(context.Background(), assets.Target{ID: "5060810", Kind: assets.TargetGroup})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanPlaceListsPassesAndBadges(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/games/3317771874/game-passes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		writeJSON(w, map[string]any{
			"data": []map[string]any{{"id": 11, "name": "VIP", "displayName": "VIP Pass"}},
		})
	})
	mux.HandleFunc("/v1/universes/3317771874/badges", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			writeJSON(w, map[string]any{
				"nextPageCursor": "b2",
				"data":           []map[string]any{{"id": 21, "name": "Hatch a Huge Egg", "description": "egg badge"}},
			})
			return
		}
		writeJSON(w, map[string]any{
			"data": []map[string]any{{"id": 22, "name": "Reach Tech World"}},
		})
	})
	c := newTestClient(t, mux)

	got, err := c.Scan(context.Background(), assets.Target{ID: "3317771874", Kind: assets.TargetPlace})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "gamepass:11", got[0].ID)
	assert.Equal(t, "VIP Pass", got[0].Name)
	assert.Equal(t, assets.KindUnknown, got[0].Kind)

	assert.Equal(t, "badge:21", got[1].ID)
	assert.Equal(t, assets.KindEgg, got[1].Kind)

	assert.Equal(t, "badge:22", got[2].ID)
	assert.Equal(t, assets.KindWorld, got[2].Kind)
}

func TestScanFailuresAreSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"bad item", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"data": []any{"not an object"}})
		}},
		{"endless pagination", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"nextPageCursor": "c" + r.URL.Query().Get("Cursor"), "data": []any{}})
		}},
		{"repeated cursor", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"nextPageCursor": "same", "data": []any{}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Scan(context.Background(), assets.Target{ID: "1", Kind: assets.TargetUser})
			require.Error(t, err)
			assert.True(t, errors.Is(err, assets.ErrSourceUnavailable), "got %v", err)
		})
	}
}

func TestScanUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{CatalogURL: url, RequestsPerSecond: 1000, Timeout: time.Second}, zerolog.Nop())
	_, err := c.Scan(context.Background(), assets.Target{ID: "1", Kind: assets.TargetUser})
	assert.ErrorIs(t, err, assets.ErrSourceUnavailable)
}

func TestScanUnsupportedKind(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	_, err := c.Scan(context.Background(), assets.Target{ID: "1", Kind: "planet"})
	assert.ErrorIs(t, err, assets.ErrSourceUnavailable)
}
