package music

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Custom ids owned by the control message. The view routes them back to
// player operations.
const (
	ControlSkipOne   = "music:skip1"
	ControlSkipTwo   = "music:skip2"
	ControlShuffle   = "music:shuffle"
	ControlPlayPause = "music:playpause"
	ControlStop      = "music:stop"
)

const queuePreviewLength = 9

// embedColor matches the bot-wide accent colour.
const embedColor = 0x2F3136

// viewSnapshot is the immutable player state a render works from.
type viewSnapshot struct {
	tracks   []Track
	paused   bool
	position time.Duration
	footer   string
}

// BuildNowPlayingEmbed renders the control-message embed: current track
// with link and requester, playhead, a queue preview and an optional
// footer banner.
func BuildNowPlayingEmbed(tracks []Track, position time.Duration, footer string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Now Playing",
		Color: embedColor,
	}
	if len(tracks) == 0 {
		embed.Description = "Nothing is playing."
		return embed
	}

	current := tracks[0]
	embed.Description = fmt.Sprintf("[%s](%s)", current.Title(), current.URI())
	if current.Source.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: current.Source.Info.ArtworkURL}
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  fmt.Sprintf("<@%s>", current.RequesterID),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "Position",
			Value:  fmt.Sprintf("%s / %s", FormatDuration(position), FormatDuration(current.Length())),
			Inline: true,
		},
	)

	if len(tracks) > 1 {
		var b strings.Builder
		for i, track := range tracks[1:] {
			if i >= queuePreviewLength {
				fmt.Fprintf(&b, "… and %d more", len(tracks)-1-queuePreviewLength)
				break
			}
			fmt.Fprintf(&b, "`%2d` %s `%s`\n", i+1, truncate(track.Title(), 40), FormatDuration(track.Length()))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Next up (%d)", len(tracks)-1),
			Value: b.String(),
		})
	}

	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

// BuildControlButtons renders the five-button row. Skips are disabled
// while paused; everything is disabled once the player is gone.
func BuildControlButtons(paused, disabled bool) []discordgo.MessageComponent {
	playPause := discordgo.Button{
		Emoji:    &discordgo.ComponentEmoji{Name: "⏸"},
		Style:    discordgo.SecondaryButton,
		CustomID: ControlPlayPause,
		Disabled: disabled,
	}
	if paused {
		playPause.Emoji = &discordgo.ComponentEmoji{Name: "▶"}
		playPause.Style = discordgo.SuccessButton
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Emoji:    &discordgo.ComponentEmoji{Name: "⏭"},
				Label:    "1",
				Style:    discordgo.SecondaryButton,
				CustomID: ControlSkipOne,
				Disabled: disabled || paused,
			},
			discordgo.Button{
				Emoji:    &discordgo.ComponentEmoji{Name: "⏭"},
				Label:    "2",
				Style:    discordgo.SecondaryButton,
				CustomID: ControlSkipTwo,
				Disabled: disabled || paused,
			},
			discordgo.Button{
				Emoji:    &discordgo.ComponentEmoji{Name: "🔀"},
				Style:    discordgo.SecondaryButton,
				CustomID: ControlShuffle,
				Disabled: disabled,
			},
			playPause,
			discordgo.Button{
				Emoji:    &discordgo.ComponentEmoji{Name: "🛑"},
				Style:    discordgo.DangerButton,
				CustomID: ControlStop,
				Disabled: disabled,
			},
		}},
	}
}

// SendQueue updates the control message. Calls within two seconds of
// the last send coalesce into one trailing update; forceLock bypasses
// the rate lock, forceResend posts a fresh message instead of editing.
func (p *Player) SendQueue(forceResend, forceLock bool) {
	p.mu.Lock()
	if p.textChannelID == "" {
		p.mu.Unlock()
		return
	}
	if !forceLock {
		since := time.Since(p.lastViewSend)
		if since < viewSendInterval {
			if !p.viewPending {
				p.viewPending = true
				time.AfterFunc(viewSendInterval-since, func() {
					p.mu.Lock()
					p.viewPending = false
					p.mu.Unlock()
					p.SendQueue(false, true)
				})
			}
			p.mu.Unlock()
			return
		}
	}
	p.lastViewSend = time.Now()
	snapshot := p.snapshotLocked()
	channelID := p.textChannelID
	messageID := p.lastControlMessageID
	p.mu.Unlock()

	embed := BuildNowPlayingEmbed(snapshot.tracks, snapshot.position, snapshot.footer)
	components := BuildControlButtons(snapshot.paused, false)

	if messageID != "" && !forceResend {
		_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channelID,
			ID:         messageID,
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &components,
		})
		if err == nil {
			return
		}
		log.Printf("[Player] control message edit failed for guild %s, resending: %v", p.guildID, err)
	}

	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		log.Printf("[Player] control message send failed for guild %s: %v", p.guildID, err)
		return
	}
	if messageID != "" {
		if err := p.session.ChannelMessageDelete(channelID, messageID); err != nil {
			log.Printf("[Player] stale control message delete failed for guild %s: %v", p.guildID, err)
		}
	}
	p.mu.Lock()
	p.lastControlMessageID = msg.ID
	p.mu.Unlock()
}

// ControlMessageID returns the id of the live control message.
func (p *Player) ControlMessageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastControlMessageID
}

// DisableMessageButtons greys out the button row on a given message,
// used for stale control messages and on disconnect.
func (p *Player) DisableMessageButtons(channelID, messageID string) {
	components := BuildControlButtons(false, true)
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Components: &components,
	})
	if err != nil {
		log.Printf("[Player] disable buttons failed for message %s: %v", messageID, err)
	}
}

func (p *Player) disableControlButtons() {
	p.mu.Lock()
	channelID := p.textChannelID
	messageID := p.lastControlMessageID
	p.mu.Unlock()
	if channelID == "" || messageID == "" {
		return
	}
	p.DisableMessageButtons(channelID, messageID)
}

func (p *Player) snapshotLocked() viewSnapshot {
	footer := p.footerText
	if footer != "" && time.Now().After(p.footerExpires) {
		p.footerText = ""
		footer = ""
	}
	return viewSnapshot{
		tracks:   p.q.Snapshot(),
		paused:   p.paused,
		position: p.position,
		footer:   footer,
	}
}
