package lavalink

import (
	"context"
	"sync"
	"time"
)

// Node is the per-guild playback handle on a Lavalink client. It holds
// the partial voice credentials Discord delivers across two gateway
// events and forwards them once both halves arrive.
type Node struct {
	client  *Client
	guildID string

	mu             sync.Mutex
	voiceToken     string
	voiceEndpoint  string
	voiceSessionID string
}

// GuildID returns the guild this node plays for.
func (n *Node) GuildID() string { return n.guildID }

// Play starts a track, replacing the current one.
func (n *Node) Play(ctx context.Context, track Track) error {
	return n.client.Play(ctx, n.guildID, track)
}

// Stop halts playback without destroying the player.
func (n *Node) Stop(ctx context.Context) error {
	return n.client.StopPlayback(ctx, n.guildID)
}

// SetPaused pauses or resumes playback.
func (n *Node) SetPaused(ctx context.Context, paused bool) error {
	return n.client.SetPaused(ctx, n.guildID, paused)
}

// Seek moves the playhead.
func (n *Node) Seek(ctx context.Context, position time.Duration) error {
	return n.client.Seek(ctx, n.guildID, position)
}

// Destroy tears down the player on the node.
func (n *Node) Destroy(ctx context.Context) error {
	return n.client.DestroyPlayer(ctx, n.guildID)
}

// OnVoiceServerUpdate records the token and endpoint half of the voice
// credentials and forwards if complete.
func (n *Node) OnVoiceServerUpdate(ctx context.Context, token, endpoint string) error {
	n.mu.Lock()
	n.voiceToken = token
	n.voiceEndpoint = endpoint
	n.mu.Unlock()
	return n.forwardVoice(ctx)
}

// OnVoiceStateUpdate records the session half of the voice credentials
// and forwards if complete. An empty session id means the bot left the
// voice channel and clears the stored credentials.
func (n *Node) OnVoiceStateUpdate(ctx context.Context, sessionID string) error {
	n.mu.Lock()
	if sessionID == "" {
		n.voiceToken, n.voiceEndpoint, n.voiceSessionID = "", "", ""
		n.mu.Unlock()
		return nil
	}
	n.voiceSessionID = sessionID
	n.mu.Unlock()
	return n.forwardVoice(ctx)
}

func (n *Node) forwardVoice(ctx context.Context) error {
	n.mu.Lock()
	token, endpoint, session := n.voiceToken, n.voiceEndpoint, n.voiceSessionID
	n.mu.Unlock()
	if token == "" || endpoint == "" || session == "" {
		return nil
	}
	return n.client.UpdateVoice(ctx, n.guildID, token, endpoint, session)
}

// Pool owns the guild-to-node mapping for one Lavalink client.
type Pool struct {
	client *Client

	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewPool creates a pool over a client.
func NewPool(client *Client) *Pool {
	return &Pool{
		client: client,
		nodes:  make(map[string]*Node),
	}
}

// Client returns the underlying Lavalink client.
func (p *Pool) Client() *Client { return p.client }

// Node returns the node for a guild, creating it on first use.
func (p *Pool) Node(guildID string) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	node, ok := p.nodes[guildID]
	if !ok {
		node = &Node{client: p.client, guildID: guildID}
		p.nodes[guildID] = node
	}
	return node
}

// Lookup returns the node for a guild if one exists.
func (p *Pool) Lookup(guildID string) (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	node, ok := p.nodes[guildID]
	return node, ok
}

// Remove drops the node for a guild after destroying its player.
func (p *Pool) Remove(ctx context.Context, guildID string) {
	p.mu.Lock()
	node, ok := p.nodes[guildID]
	delete(p.nodes, guildID)
	p.mu.Unlock()
	if ok {
		_ = node.Destroy(ctx)
	}
}
