package music

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
	"github.com/KuramaSyu/inu-sub000/internal/music/resolver"
)

// Registry owns the one-player-per-guild mapping and feeds gateway
// events to the right player.
type Registry struct {
	session  *discordgo.Session
	pool     *lavalink.Pool
	resolver *resolver.Resolver
	history  HistoryRecorder
	waiter   *interaction.Waiter

	mu      sync.Mutex
	players map[string]*Player
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Session  *discordgo.Session
	Pool     *lavalink.Pool
	Resolver *resolver.Resolver
	History  HistoryRecorder
	Waiter   *interaction.Waiter
}

// NewRegistry creates a player registry.
func NewRegistry(cfg *RegistryConfig) *Registry {
	return &Registry{
		session:  cfg.Session,
		pool:     cfg.Pool,
		resolver: cfg.Resolver,
		history:  cfg.History,
		waiter:   cfg.Waiter,
		players:  make(map[string]*Player),
	}
}

// Get returns the guild's player, creating and preparing one on first
// use.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.players[guildID]
	if !ok {
		player = &Player{
			guildID:           guildID,
			session:           r.session,
			voice:             NewSessionVoice(r.session),
			resolver:          r.resolver,
			history:           r.history,
			waiter:            r.waiter,
			onDestroy:         r.remove,
			cleanQueueOnLeave: true,
			lonelyTimeout:     LonelyTimeout,
		}
		player.prepare(r.pool.Node(guildID))
		r.players[guildID] = player
	}
	return player
}

// Lookup returns the guild's player without creating one.
func (r *Registry) Lookup(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.players[guildID]
	return player, ok
}

// Len returns the number of live players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

func (r *Registry) remove(guildID string) {
	r.mu.Lock()
	delete(r.players, guildID)
	r.mu.Unlock()
}

// Run consumes gateway events until the context ends or the event
// stream closes. Events for guilds without a player are dropped.
func (r *Registry) Run(ctx context.Context) error {
	events := r.pool.Client().Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				log.Printf("[Music] gateway event stream closed")
				return nil
			}
			r.handleEvent(ctx, event)
		}
	}
}

func (r *Registry) handleEvent(ctx context.Context, event lavalink.Event) {
	if event.Type == lavalink.EventReady {
		log.Printf("[Music] audio gateway ready")
		return
	}
	player, ok := r.Lookup(event.GuildID)
	if !ok {
		return
	}
	switch event.Type {
	case lavalink.EventTrackStart:
		player.OnTrackStart(event.Track)
	case lavalink.EventTrackEnd:
		player.OnTrackEnd(ctx, event.Reason)
	case lavalink.EventTrackException:
		player.OnTrackException(ctx, event.Error)
	case lavalink.EventPlayerUpdate:
		player.OnPositionUpdate(time.Duration(event.Position) * time.Millisecond)
	}
}
