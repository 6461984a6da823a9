package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxReconnectAttempts = 10
	reconnectDelay       = 3 * time.Second
)

// Connect opens the websocket to the node and starts the read loop. The
// loop reconnects on failure, up to maxReconnectAttempts tries spaced
// reconnectDelay apart; after that the event channel is closed and the
// client stays down until Connect is called again.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	go c.readLoop(ctx, conn)
	return nil
}

// Close tears down the websocket and event stream.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", c.password)
	header.Set("User-Id", c.userID)
	header.Set("Client-Name", "inu/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, "ws://"+c.address+"/v4/websocket", header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("lavalink websocket dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("lavalink websocket dial: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		err := c.readUntilClosed(ctx, conn)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		select {
		case <-c.done:
			close(c.events)
			return
		case <-ctx.Done():
			close(c.events)
			return
		default:
		}
		log.Printf("[Lavalink] websocket closed: %v; reconnecting", err)

		conn = c.reconnect(ctx)
		if conn == nil {
			log.Printf("[Lavalink] gave up after %d reconnect attempts", maxReconnectAttempts)
			close(c.events)
			return
		}
	}
}

func (c *Client) readUntilClosed(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	for {
		select {
		case <-c.done:
			return fmt.Errorf("client closed")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(payload)
	}
}

func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			log.Printf("[Lavalink] reconnect attempt %d/%d failed: %v", attempt, maxReconnectAttempts, err)
			continue
		}
		log.Printf("[Lavalink] reconnected on attempt %d", attempt)
		return conn
	}
	return nil
}

// dispatch decodes one gateway message and forwards it as an Event.
// Unknown ops and event types are ignored.
func (c *Client) dispatch(payload []byte) {
	var envelope struct {
		Op        string `json:"op"`
		SessionID string `json:"sessionId"`
		Resumed   bool   `json:"resumed"`
		Type      string `json:"type"`
		GuildID   string `json:"guildId"`
		Track     *Track `json:"track"`
		Reason    string `json:"reason"`
		Exception *struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
			Cause    string `json:"cause"`
		} `json:"exception"`
		State *struct {
			Position  int64 `json:"position"`
			Connected bool  `json:"connected"`
		} `json:"state"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("[Lavalink] undecodable message: %v", err)
		return
	}

	switch envelope.Op {
	case "ready":
		c.mu.Lock()
		c.sessionID = envelope.SessionID
		c.mu.Unlock()
		c.emit(Event{Type: EventReady})

	case "playerUpdate":
		if envelope.State != nil {
			c.emit(Event{Type: EventPlayerUpdate, GuildID: envelope.GuildID, Position: envelope.State.Position})
		}

	case "event":
		switch envelope.Type {
		case "TrackStartEvent":
			c.emit(Event{Type: EventTrackStart, GuildID: envelope.GuildID, Track: envelope.Track})
		case "TrackEndEvent":
			c.emit(Event{Type: EventTrackEnd, GuildID: envelope.GuildID, Track: envelope.Track, Reason: envelope.Reason})
		case "TrackExceptionEvent":
			message := "unknown playback error"
			if envelope.Exception != nil {
				message = envelope.Exception.Message
			}
			c.emit(Event{Type: EventTrackException, GuildID: envelope.GuildID, Track: envelope.Track, Error: message})
		}
	}
}

func (c *Client) emit(event Event) {
	select {
	case c.events <- event:
	default:
		log.Printf("[Lavalink] event buffer full, dropping %s for guild %s", event.Type, event.GuildID)
	}
}
