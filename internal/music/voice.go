package music

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// voiceDebounce absorbs the platform's event reordering before the
// channel population is inspected.
const voiceDebounce = 3 * time.Second

// VoiceController classifies voice-state events and drives the lonely
// lifecycle of each guild's player. Handling is serialised per guild;
// the player's own operation lock orders the resulting state changes
// against concurrent commands.
type VoiceController struct {
	session  *discordgo.Session
	registry *Registry
	debounce time.Duration

	mu         sync.Mutex
	guildLocks map[string]*sync.Mutex
}

// NewVoiceController creates a controller over the player registry.
func NewVoiceController(session *discordgo.Session, registry *Registry) *VoiceController {
	return &VoiceController{
		session:    session,
		registry:   registry,
		debounce:   voiceDebounce,
		guildLocks: make(map[string]*sync.Mutex),
	}
}

func (v *VoiceController) guildLock(guildID string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	lock, ok := v.guildLocks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		v.guildLocks[guildID] = lock
	}
	return lock
}

// HandleVoiceStateUpdate is the discordgo event handler entry point.
func (v *VoiceController) HandleVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.GuildID == "" {
		return
	}
	player, ok := v.registry.Lookup(e.GuildID)
	if !ok {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	go func() {
		lock := v.guildLock(e.GuildID)
		lock.Lock()
		defer lock.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if e.UserID == botID {
			v.handleBotUpdate(ctx, player, e)
			return
		}
		v.handleHumanUpdate(ctx, player)
	}()
}

// handleBotUpdate reacts to the bot itself moving or being dropped.
func (v *VoiceController) handleBotUpdate(ctx context.Context, player *Player, e *discordgo.VoiceStateUpdate) {
	if e.ChannelID == "" {
		player.OnBotDisconnected(ctx)
		return
	}
	if e.ChannelID == player.VoiceChannelID() {
		return
	}
	// Moved to another room: lonely or active depends on who is there.
	player.SetVoiceChannel(e.ChannelID)
	time.Sleep(v.debounce)
	if v.countHumans(e.GuildID, e.ChannelID) == 0 {
		player.OnBotLonely(ctx)
	} else {
		player.OnHumanJoin(ctx)
	}
}

// handleHumanUpdate re-inspects the bot's channel population after the
// debounce and flips the player between active and lonely.
func (v *VoiceController) handleHumanUpdate(ctx context.Context, player *Player) {
	channelID := player.VoiceChannelID()
	if channelID == "" {
		return
	}
	time.Sleep(v.debounce)

	// Re-read after the debounce; the bot may have left meanwhile.
	channelID = player.VoiceChannelID()
	if channelID == "" {
		return
	}
	if v.countHumans(player.GuildID(), channelID) == 0 {
		player.OnBotLonely(ctx)
	} else {
		player.OnHumanJoin(ctx)
	}
}

// countHumans counts non-bot members in a voice channel.
func (v *VoiceController) countHumans(guildID, channelID string) int {
	guild, err := v.session.State.Guild(guildID)
	if err != nil {
		log.Printf("[Voice] guild %s not in state cache: %v", guildID, err)
		return 1 // assume occupied rather than kicking everyone out
	}
	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := v.session.State.Member(guildID, vs.UserID)
		if err != nil || member.User == nil || member.User.Bot {
			continue
		}
		count++
	}
	return count
}
