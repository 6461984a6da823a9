package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Config configures a Client.
type Config struct {
	// Address is the host:port of the Lavalink node.
	Address  string
	Password string
	// UserID is the bot application id, sent on the websocket handshake.
	UserID     string
	HTTPClient *http.Client
}

// Client talks to one Lavalink node: REST for loads and player updates,
// websocket for events. Safe for concurrent use.
type Client struct {
	address    string
	password   string
	userID     string
	httpClient *http.Client

	mu        sync.RWMutex
	sessionID string
	connected bool

	events chan Event
	done   chan struct{}
}

// NewClient creates a client for a single Lavalink node.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("lavalink address is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("lavalink user id is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		address:    cfg.Address,
		password:   cfg.Password,
		userID:     cfg.UserID,
		httpClient: httpClient,
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
	}, nil
}

// Events returns the stream of decoded gateway events. The channel is
// closed when the client gives up reconnecting or Close is called.
func (c *Client) Events() <-chan Event { return c.events }

// SessionID returns the session assigned by the node's ready event.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Connected reports whether the websocket is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// LoadTracks resolves a URL or search query into tracks.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	endpoint := fmt.Sprintf("/v4/loadtracks?identifier=%s", url.QueryEscape(identifier))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		LoadType string          `json:"loadType"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode load result: %w", err)
	}

	result := &LoadResult{Kind: LoadKind(raw.LoadType)}
	switch result.Kind {
	case LoadKindTrack:
		var track Track
		if err := json.Unmarshal(raw.Data, &track); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		result.Tracks = []Track{track}
	case LoadKindPlaylist:
		var playlist struct {
			Info   PlaylistInfo `json:"info"`
			Tracks []Track      `json:"tracks"`
		}
		if err := json.Unmarshal(raw.Data, &playlist); err != nil {
			return nil, fmt.Errorf("decode playlist: %w", err)
		}
		result.Playlist = &playlist.Info
		result.Tracks = playlist.Tracks
	case LoadKindSearch:
		if err := json.Unmarshal(raw.Data, &result.Tracks); err != nil {
			return nil, fmt.Errorf("decode search result: %w", err)
		}
	case LoadKindEmpty:
	case LoadKindError:
		var loadErr LoadError
		if err := json.Unmarshal(raw.Data, &loadErr); err != nil {
			return nil, fmt.Errorf("decode load error: %w", err)
		}
		result.Error = &loadErr
	default:
		return nil, fmt.Errorf("unknown load type %q", raw.LoadType)
	}
	return result, nil
}

// Play starts a track on a guild player, replacing whatever plays.
func (c *Client) Play(ctx context.Context, guildID string, track Track) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{EncodedTrack: &track.Encoded})
}

// StopPlayback stops the guild player without destroying it. Lavalink
// stops on an explicit null encodedTrack, which omitempty would drop,
// so the body is built by hand.
func (c *Client) StopPlayback(ctx context.Context, guildID string) error {
	return c.patchPlayer(ctx, guildID, []byte(`{"encodedTrack":null}`))
}

// SetPaused pauses or resumes the guild player.
func (c *Client) SetPaused(ctx context.Context, guildID string, paused bool) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Paused: &paused})
}

// Seek moves the playhead of the current track.
func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	ms := position.Milliseconds()
	return c.updatePlayer(ctx, guildID, playerUpdate{Position: &ms})
}

// SetVolume sets the guild player volume, 0 to 1000.
func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Volume: &volume})
}

// UpdateVoice forwards Discord voice credentials so the node can join
// the voice channel.
func (c *Client) UpdateVoice(ctx context.Context, guildID, token, endpoint, sessionID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Voice: &voiceUpdate{
		Token:     token,
		Endpoint:  endpoint,
		SessionID: sessionID,
	}})
}

// DestroyPlayer tears down the guild player on the node.
func (c *Client) DestroyPlayer(ctx context.Context, guildID string) error {
	session := c.SessionID()
	if session == "" {
		return fmt.Errorf("lavalink session not ready")
	}
	endpoint := fmt.Sprintf("/v4/sessions/%s/players/%s", session, guildID)
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	return err
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode player update: %w", err)
	}
	return c.patchPlayer(ctx, guildID, payload)
}

func (c *Client) patchPlayer(ctx context.Context, guildID string, payload []byte) error {
	session := c.SessionID()
	if session == "" {
		return fmt.Errorf("lavalink session not ready")
	}
	endpoint := fmt.Sprintf("/v4/sessions/%s/players/%s?noReplace=false", session, guildID)
	_, err := c.do(ctx, http.MethodPatch, endpoint, payload)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.address+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lavalink request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("lavalink %s %s: status %d: %s", method, endpoint, resp.StatusCode, string(body))
	}
	return body, nil
}
