package lavalink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		Address:  strings.TrimPrefix(server.URL, "http://"),
		Password: "youshallnotpass",
		UserID:   "12345",
	})
	require.NoError(t, err)
	return client, server
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&Config{UserID: "1"})
	assert.Error(t, err)

	_, err = NewClient(&Config{Address: "localhost:2333"})
	assert.Error(t, err)
}

func TestLoadTracksSingleTrack(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/loadtracks", r.URL.Path)
		assert.Equal(t, "https://example.com/song", r.URL.Query().Get("identifier"))
		assert.Equal(t, "youshallnotpass", r.Header.Get("Authorization"))
		io.WriteString(w, `{
			"loadType": "track",
			"data": {"encoded": "abc", "info": {"title": "A Song", "uri": "https://example.com/song", "length": 180000}}
		}`)
	})

	result, err := client.LoadTracks(context.Background(), "https://example.com/song")
	require.NoError(t, err)
	assert.Equal(t, LoadKindTrack, result.Kind)
	require.Len(t, result.Tracks, 1)
	assert.Equal(t, "A Song", result.Tracks[0].Info.Title)
	assert.Equal(t, "abc", result.Tracks[0].Encoded)
}

func TestLoadTracksPlaylist(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"loadType": "playlist",
			"data": {
				"info": {"name": "My List", "selectedTrack": -1},
				"tracks": [
					{"encoded": "a", "info": {"title": "one"}},
					{"encoded": "b", "info": {"title": "two"}}
				]
			}
		}`)
	})

	result, err := client.LoadTracks(context.Background(), "https://example.com/playlist")
	require.NoError(t, err)
	assert.Equal(t, LoadKindPlaylist, result.Kind)
	require.NotNil(t, result.Playlist)
	assert.Equal(t, "My List", result.Playlist.Name)
	assert.Len(t, result.Tracks, 2)
}

func TestLoadTracksSearch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"loadType": "search",
			"data": [
				{"encoded": "a", "info": {"title": "hit one"}},
				{"encoded": "b", "info": {"title": "hit two"}}
			]
		}`)
	})

	result, err := client.LoadTracks(context.Background(), "scsearch:something")
	require.NoError(t, err)
	assert.Equal(t, LoadKindSearch, result.Kind)
	assert.Len(t, result.Tracks, 2)
}

func TestLoadTracksEmptyAndError(t *testing.T) {
	responses := map[string]string{
		"empty": `{"loadType": "empty", "data": {}}`,
		"error": `{"loadType": "error", "data": {"message": "boom", "severity": "common"}}`,
	}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, responses[r.URL.Query().Get("identifier")])
	})

	result, err := client.LoadTracks(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, LoadKindEmpty, result.Kind)
	assert.Empty(t, result.Tracks)

	result, err = client.LoadTracks(context.Background(), "error")
	require.NoError(t, err)
	assert.Equal(t, LoadKindError, result.Kind)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "boom")
}

func TestLoadTracksHTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.LoadTracks(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPlayerUpdateRequiresSession(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	err := client.Play(context.Background(), "guild-1", Track{Encoded: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
}

func TestPlayerUpdatePayloads(t *testing.T) {
	type captured struct {
		method string
		path   string
		query  string
		body   string
	}
	var last captured
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last = captured{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)}
		io.WriteString(w, `{}`)
	})
	client.mu.Lock()
	client.sessionID = "sess-1"
	client.mu.Unlock()

	ctx := context.Background()

	require.NoError(t, client.Play(ctx, "guild-1", Track{Encoded: "abc"}))
	assert.Equal(t, http.MethodPatch, last.method)
	assert.Equal(t, "/v4/sessions/sess-1/players/guild-1", last.path)
	assert.Equal(t, "noReplace=false", last.query)
	assert.JSONEq(t, `{"encodedTrack":"abc"}`, last.body)

	require.NoError(t, client.StopPlayback(ctx, "guild-1"))
	assert.JSONEq(t, `{"encodedTrack":null}`, last.body)

	require.NoError(t, client.SetPaused(ctx, "guild-1", true))
	assert.JSONEq(t, `{"paused":true}`, last.body)

	require.NoError(t, client.Seek(ctx, "guild-1", 90*time.Second))
	assert.JSONEq(t, `{"position":90000}`, last.body)

	require.NoError(t, client.SetVolume(ctx, "guild-1", 50))
	assert.JSONEq(t, `{"volume":50}`, last.body)

	require.NoError(t, client.UpdateVoice(ctx, "guild-1", "tok", "endpoint", "voice-sess"))
	assert.JSONEq(t, `{"voice":{"token":"tok","endpoint":"endpoint","sessionId":"voice-sess"}}`, last.body)

	require.NoError(t, client.DestroyPlayer(ctx, "guild-1"))
	assert.Equal(t, http.MethodDelete, last.method)
	assert.Equal(t, "/v4/sessions/sess-1/players/guild-1", last.path)
}
