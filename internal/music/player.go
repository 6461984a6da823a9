package music

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
	"github.com/KuramaSyu/inu-sub000/internal/music/resolver"
)

const (
	// LonelyTimeout is how long the bot stays alone in voice before
	// leaving with the queue saved.
	LonelyTimeout = 10 * time.Minute

	// viewSendInterval coalesces bursts of control-message updates.
	viewSendInterval = 2 * time.Second

	// footerTTL is how long a banner stays on the control message.
	footerTTL = 2 * time.Minute

	// maxSearchChoices caps the buttons of an ambiguous-search prompt.
	maxSearchChoices = 5
)

// ErrNotInVoice is returned when the caller is not in a voice channel.
var ErrNotInVoice = errors.New("you are not in a voice channel")

// ErrNoTracksInQueue is returned by operations that need a queue.
var ErrNoTracksInQueue = errors.New("the queue is empty")

// VoiceState is the player's channel-population state.
type VoiceState int

const (
	VoiceActive VoiceState = iota
	VoiceLonely
)

// HistoryRecorder persists plays for the history resolver strategy.
type HistoryRecorder interface {
	Record(ctx context.Context, guildID, title, uri string) error
}

// AudioGateway is the per-guild playback surface of the audio node.
type AudioGateway interface {
	Play(ctx context.Context, track lavalink.Track) error
	Stop(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	Seek(ctx context.Context, position time.Duration) error
	Destroy(ctx context.Context) error
}

// VoiceConnector is the slice of the chat session the player uses to
// manage its voice connection.
type VoiceConnector interface {
	// UserChannel returns the voice channel a user sits in, empty when
	// they are not in voice.
	UserChannel(guildID, userID string) (string, error)

	// Join connects the bot to a voice channel.
	Join(guildID, channelID string) error

	// Rejoin re-establishes a dropped voice session on the same channel.
	Rejoin(guildID, channelID string) error

	// Leave disconnects the bot from voice.
	Leave(guildID string) error
}

type sessionVoice struct {
	session *discordgo.Session
}

// NewSessionVoice wraps a discordgo session as a VoiceConnector.
func NewSessionVoice(s *discordgo.Session) VoiceConnector {
	return &sessionVoice{session: s}
}

func (v *sessionVoice) UserChannel(guildID, userID string) (string, error) {
	voiceState, err := v.session.State.VoiceState(guildID, userID)
	if err != nil || voiceState == nil {
		return "", nil
	}
	return voiceState.ChannelID, nil
}

func (v *sessionVoice) Join(guildID, channelID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

func (v *sessionVoice) Rejoin(guildID, channelID string) error {
	_, err := v.session.ChannelVoiceJoin(guildID, channelID, false, true)
	return err
}

func (v *sessionVoice) Leave(guildID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, "", false, true)
}

// Player orchestrates playback for one guild: queue, voice lifecycle,
// lonely auto-leave and the control message. At most one exists per
// guild; the Registry enforces that.
type Player struct {
	guildID  string
	session  *discordgo.Session
	voice    VoiceConnector
	node     AudioGateway
	resolver *resolver.Resolver
	history  HistoryRecorder
	waiter   *interaction.Waiter

	// onDestroy removes the player from the registry.
	onDestroy func(guildID string)

	// opMu serialises whole mutating operations, so a queue change and
	// the gateway call it implies reach the node in call order.
	opMu sync.Mutex

	lonelyTimeout time.Duration

	mu                   sync.Mutex
	q                    queue
	textChannelID        string
	voiceChannelID       string
	lastControlMessageID string
	voiceState           VoiceState
	lonelyTimer          *time.Timer
	cleanQueueOnLeave    bool
	footerText           string
	footerExpires        time.Time
	playing              bool
	paused               bool
	position             time.Duration
	lastViewSend         time.Time
	viewPending          bool
	destroyed            bool
}

// PlayReport is the per-line outcome of a multi-line play call.
type PlayReport struct {
	Query string
	Title string
	Err   error
}

// GuildID returns the guild this player serves.
func (p *Player) GuildID() string { return p.guildID }

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Queue returns a copy of the queue, current track first.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Snapshot()
}

// prepare binds the gateway node handle. Called once by the registry.
func (p *Player) prepare(node AudioGateway) {
	p.mu.Lock()
	p.node = node
	p.mu.Unlock()
}

// Play resolves a query and enqueues the results, joining the caller's
// voice channel first if needed. Multi-line queries resolve serially
// with a short backoff and report per line. An ambiguous search asks
// the caller to choose. A queue that survived an earlier leave resumes
// from its head. The control message updates at most once.
func (p *Player) Play(ctx context.Context, ic *interaction.Context, query string) ([]PlayReport, error) {
	if err := p.ensureVoice(ic); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.textChannelID = ic.ChannelID()
	p.mu.Unlock()

	// Resolution may park on a selection prompt, so it runs before the
	// operation lock is taken.
	lines := splitQueryLines(query)
	multiLine := len(lines) > 1
	reports := make([]PlayReport, 0, len(lines))
	var added []Track
	for _, line := range lines {
		tracks, title, err := p.resolveLine(ctx, ic, line, multiLine)
		reports = append(reports, PlayReport{Query: line, Title: title, Err: err})
		if err != nil {
			continue
		}
		added = append(added, tracks...)
	}
	if len(added) == 0 {
		if len(reports) == 1 && reports[0].Err != nil {
			return reports, reports[0].Err
		}
		return reports, ErrNoTracksInQueue
	}

	p.opMu.Lock()
	p.mu.Lock()
	p.q.Append(added...)
	p.mu.Unlock()
	err := p.startIfIdle(ctx)
	p.opMu.Unlock()
	if err != nil {
		return reports, err
	}
	p.SendQueue(false, false)
	return reports, nil
}

// PlayAt resolves a single query and inserts the first result at a
// 1-based queue position, clamped to the queue bounds.
func (p *Player) PlayAt(ctx context.Context, ic *interaction.Context, position int, query string) (Track, error) {
	if err := p.ensureVoice(ic); err != nil {
		return Track{}, err
	}
	p.mu.Lock()
	p.textChannelID = ic.ChannelID()
	p.mu.Unlock()

	tracks, _, err := p.resolveLine(ctx, ic, query, false)
	if err != nil {
		return Track{}, err
	}
	track := tracks[0]

	p.opMu.Lock()
	p.mu.Lock()
	p.q.InsertAt(position, track)
	p.mu.Unlock()
	err = p.startIfIdle(ctx)
	p.opMu.Unlock()
	if err != nil {
		return track, err
	}
	p.SendQueue(false, false)
	return track, nil
}

// startIfIdle starts the head track when tracks are queued but nothing
// is streaming: the very first play, and a queue that survived a
// queue-preserving leave. The head is re-prepended and advanced past so
// a fresh voice session streams it from the start. Callers hold opMu.
func (p *Player) startIfIdle(ctx context.Context) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	current, ok := p.q.Current()
	if !ok {
		p.mu.Unlock()
		return nil
	}
	p.q.Prepend(current)
	head, _ := p.q.Advance(1)
	p.position = 0
	p.mu.Unlock()

	if err := p.node.Play(ctx, head.Source); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	p.mu.Lock()
	p.playing = true
	p.paused = false
	p.mu.Unlock()
	return nil
}

// resolveLine resolves one query line into tracks, retrying empty
// results once after a sub-second backoff and asking the caller on an
// ambiguous search result.
func (p *Player) resolveLine(ctx context.Context, ic *interaction.Context, line string, multiLine bool) ([]Track, string, error) {
	result, _, err := p.resolver.Resolve(ctx, p.guildID, line)
	var noResults *resolver.NoResultsError
	if errors.As(err, &noResults) {
		time.Sleep(time.Duration(rand.Int63n(int64(time.Second))))
		result, _, err = p.resolver.Resolve(ctx, p.guildID, line)
	}
	if err != nil {
		return nil, "", err
	}

	requester := ic.AuthorID()
	switch result.Kind {
	case lavalink.LoadKindTrack:
		track := Track{Source: result.Tracks[0], RequesterID: requester}
		p.recordHistory(ctx, track)
		return []Track{track}, track.Title(), nil

	case lavalink.LoadKindPlaylist:
		tracks := make([]Track, 0, len(result.Tracks))
		for _, t := range result.Tracks {
			tracks = append(tracks, Track{Source: t, RequesterID: requester})
		}
		name := ""
		if result.Playlist != nil {
			name = result.Playlist.Name
		}
		return tracks, name, nil

	case lavalink.LoadKindSearch:
		var chosen lavalink.Track
		if multiLine {
			chosen, _ = resolver.PickFirst(result.Tracks, true)
		} else if len(result.Tracks) == 1 {
			chosen = result.Tracks[0]
		} else {
			picked, err := p.askForTrack(ic, result.Tracks)
			if err != nil {
				return nil, "", err
			}
			chosen = picked
		}
		track := Track{Source: chosen, RequesterID: requester}
		p.recordHistory(ctx, track)
		return []Track{track}, track.Title(), nil
	}
	return nil, "", &resolver.NoResultsError{Query: line, Strategy: "load"}
}

// askForTrack presents the top search candidates as buttons.
func (p *Player) askForTrack(ic *interaction.Context, candidates []lavalink.Track) (lavalink.Track, error) {
	n := len(candidates)
	if n > maxSearchChoices {
		n = maxSearchChoices
	}
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = truncate(fmt.Sprintf("%d. %s", i+1, candidates[i].Info.Title), 80)
	}
	label, answer, err := interaction.Ask(ic, p.waiter, interaction.AskOptions{
		Title:              "Which one?",
		Labels:             labels,
		Ephemeral:          true,
		DeleteAfterTimeout: true,
	})
	if err != nil {
		return lavalink.Track{}, err
	}
	if answer == nil {
		return lavalink.Track{}, fmt.Errorf("track selection timed out")
	}
	if err := answer.Defer(true, true); err != nil {
		log.Printf("[Player] selection ack failed: %v", err)
	}
	for i, l := range labels {
		if l == label {
			return candidates[i], nil
		}
	}
	return candidates[0], nil
}

func (p *Player) recordHistory(ctx context.Context, track Track) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(ctx, p.guildID, track.Title(), track.URI()); err != nil {
		log.Printf("[Player] history record failed for guild %s: %v", p.guildID, err)
	}
}

// Skip drops amount tracks from the head. An emptied queue cascades to
// the track-end behaviour and leaves voice.
func (p *Player) Skip(ctx context.Context, amount int) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.doSkip(ctx, amount)
}

func (p *Player) doSkip(ctx context.Context, amount int) error {
	p.mu.Lock()
	if p.q.Empty() {
		p.mu.Unlock()
		return ErrNoTracksInQueue
	}
	next, ok := p.q.Advance(amount)
	p.position = 0
	p.mu.Unlock()

	if !ok {
		return p.doLeave(ctx, false, true)
	}
	if err := p.node.Play(ctx, next.Source); err != nil {
		return fmt.Errorf("skip: %w", err)
	}
	p.mu.Lock()
	p.playing = true
	p.paused = false
	p.mu.Unlock()
	p.SendQueue(false, false)
	return nil
}

// Pause pauses playback and banners who did it.
func (p *Player) Pause(ctx context.Context, byName string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	if err := p.node.SetPaused(ctx, true); err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = true
	p.setFooterLocked(fmt.Sprintf("Paused by %s", byName))
	p.mu.Unlock()
	p.SendQueue(false, false)
	return nil
}

// Resume resumes playback.
func (p *Player) Resume(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	if err := p.node.SetPaused(ctx, false); err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = false
	p.clearFooterLocked()
	p.mu.Unlock()
	p.SendQueue(false, false)
	return nil
}

// Stop clears the queue, stops the node and leaves voice for good.
func (p *Player) Stop(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	p.q.Clear()
	p.mu.Unlock()
	if err := p.node.Stop(ctx); err != nil {
		log.Printf("[Player] stop failed for guild %s: %v", p.guildID, err)
	}
	return p.doLeave(ctx, false, true)
}

// Clear drops everything except the current track.
func (p *Player) Clear() {
	p.opMu.Lock()
	p.mu.Lock()
	if current, ok := p.q.Current(); ok {
		p.q.Clear()
		p.q.Append(current)
	}
	p.mu.Unlock()
	p.opMu.Unlock()
	p.SendQueue(false, false)
}

// Shuffle reorders the queue, keeping the current track in place.
func (p *Player) Shuffle(byName string) {
	p.opMu.Lock()
	p.mu.Lock()
	p.q.Shuffle()
	p.setFooterLocked(fmt.Sprintf("Music was shuffled by %s", byName))
	p.mu.Unlock()
	p.opMu.Unlock()
	p.SendQueue(false, false)
}

// Seek moves the playhead per a seek expression; relative values are
// clamped to the track bounds.
func (p *Player) Seek(ctx context.Context, expression string) (time.Duration, error) {
	position, relative, err := ParseSeek(expression)
	if err != nil {
		return 0, err
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	current, ok := p.q.Current()
	playhead := p.position
	p.mu.Unlock()
	if !ok {
		return 0, ErrNoTracksInQueue
	}
	target := ResolveSeek(position, relative, playhead, current.Length())
	if err := p.node.Seek(ctx, target); err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.position = target
	p.mu.Unlock()
	return target, nil
}

// Fix recovers from gateway drift: rejoin the voice channel, then
// bounce pause so the node re-streams.
func (p *Player) Fix(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	channelID := p.voiceChannelID
	p.mu.Unlock()
	if channelID == "" {
		return ErrNotInVoice
	}
	if err := p.voice.Rejoin(p.guildID, channelID); err != nil {
		return fmt.Errorf("rejoin voice: %w", err)
	}
	if err := p.node.SetPaused(ctx, true); err != nil {
		return err
	}
	return p.node.SetPaused(ctx, false)
}

// Leave ends the voice connection. With cleanQueueOnLeave the player is
// destroyed and removed from the registry; otherwise the queue stays
// for a later resume, current track still at the head. Leaving twice
// is a no-op.
func (p *Player) Leave(ctx context.Context, silent, clean bool) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.doLeave(ctx, silent, clean)
}

func (p *Player) doLeave(ctx context.Context, silent, clean bool) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.cleanQueueOnLeave = clean
	alreadyGone := p.voiceChannelID == ""
	p.voiceChannelID = ""
	p.playing = false
	p.stopLonelyTimerLocked()
	destroy := clean
	if destroy {
		p.destroyed = true
	}
	p.mu.Unlock()

	if !alreadyGone {
		if err := p.voice.Leave(p.guildID); err != nil {
			log.Printf("[Player] voice disconnect failed for guild %s: %v", p.guildID, err)
		}
	}
	if destroy {
		if err := p.node.Destroy(ctx); err != nil {
			log.Printf("[Player] node destroy failed for guild %s: %v", p.guildID, err)
		}
		if !silent {
			p.disableControlButtons()
		}
		if p.onDestroy != nil {
			p.onDestroy(p.guildID)
		}
		return nil
	}
	if !silent {
		p.mu.Lock()
		p.setFooterLocked("I left the channel, queue saved")
		p.mu.Unlock()
		p.SendQueue(false, true)
	}
	return nil
}

// OnBotLonely is invoked by the voice controller when the bot is the
// only participant left. Playback pauses and the lonely timer starts.
func (p *Player) OnBotLonely(ctx context.Context) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	if p.voiceState == VoiceLonely || p.destroyed {
		p.mu.Unlock()
		return
	}
	p.voiceState = VoiceLonely
	p.setFooterLocked(fmt.Sprintf("Everyone left. I'll leave in %s, the queue will be saved", FormatDuration(p.lonelyTimeout)))
	p.lonelyTimer = time.AfterFunc(p.lonelyTimeout, p.onLonelyFire)
	p.mu.Unlock()

	if err := p.node.SetPaused(ctx, true); err != nil {
		log.Printf("[Player] lonely pause failed for guild %s: %v", p.guildID, err)
	}
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.SendQueue(false, false)
}

// OnHumanJoin cancels a pending lonely leave and resumes playback.
func (p *Player) OnHumanJoin(ctx context.Context) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	if p.voiceState != VoiceLonely {
		p.mu.Unlock()
		return
	}
	p.voiceState = VoiceActive
	p.stopLonelyTimerLocked()
	p.clearFooterLocked()
	p.mu.Unlock()

	if err := p.node.SetPaused(ctx, false); err != nil {
		log.Printf("[Player] resume after lonely failed for guild %s: %v", p.guildID, err)
	}
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.SendQueue(false, false)
}

func (p *Player) onLonelyFire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p.mu.Lock()
	p.voiceState = VoiceActive
	p.lonelyTimer = nil
	p.mu.Unlock()

	if err := p.Leave(ctx, false, false); err != nil {
		log.Printf("[Player] lonely leave failed for guild %s: %v", p.guildID, err)
	}
}

func (p *Player) stopLonelyTimerLocked() {
	if p.lonelyTimer != nil {
		p.lonelyTimer.Stop()
		p.lonelyTimer = nil
	}
}

// OnBotDisconnected handles a voice drop seen on the gateway, whether
// initiated by us or by a moderator. Buttons are disabled and the
// gateway session destroyed. With cleanQueueOnLeave the player is
// removed; otherwise the queue survives for a later resume, with the
// interrupted track still at the head.
func (p *Player) OnBotDisconnected(ctx context.Context) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.voiceChannelID = ""
	p.playing = false
	p.stopLonelyTimerLocked()
	clean := p.cleanQueueOnLeave
	if clean {
		p.destroyed = true
	}
	p.mu.Unlock()

	p.disableControlButtons()
	if err := p.node.Destroy(ctx); err != nil {
		log.Printf("[Player] node destroy failed for guild %s: %v", p.guildID, err)
	}
	if clean && p.onDestroy != nil {
		p.onDestroy(p.guildID)
	}
}

// CleanQueueOnLeave reports whether the next disconnect wipes the queue.
func (p *Player) CleanQueueOnLeave() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleanQueueOnLeave
}

// OnTrackEnd advances the queue or leaves when it runs dry.
func (p *Player) OnTrackEnd(ctx context.Context, reason string) {
	// A replaced track means a skip or new play already acted.
	if reason == "replaced" || reason == "stopped" {
		return
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	next, ok := p.q.Advance(1)
	p.position = 0
	if !ok {
		p.playing = false
	}
	p.mu.Unlock()

	if !ok {
		if err := p.doLeave(ctx, false, true); err != nil {
			log.Printf("[Player] leave after queue end failed for guild %s: %v", p.guildID, err)
		}
		return
	}
	if err := p.node.Play(ctx, next.Source); err != nil {
		log.Printf("[Player] next track failed for guild %s: %v", p.guildID, err)
	}
}

// OnTrackException banners the failure and skips the broken track.
func (p *Player) OnTrackException(ctx context.Context, message string) {
	log.Printf("[Player] track exception in guild %s: %s", p.guildID, message)
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	p.setFooterLocked("Track unplayable, skipping")
	p.mu.Unlock()
	if err := p.doSkip(ctx, 1); err != nil && !errors.Is(err, ErrNoTracksInQueue) {
		log.Printf("[Player] skip after exception failed for guild %s: %v", p.guildID, err)
	}
}

// OnTrackStart refreshes the control message.
func (p *Player) OnTrackStart(track *lavalink.Track) {
	p.mu.Lock()
	p.playing = true
	p.position = 0
	p.mu.Unlock()
	p.SendQueue(false, false)
}

// OnPositionUpdate records the node's playhead report.
func (p *Player) OnPositionUpdate(position time.Duration) {
	p.mu.Lock()
	p.position = position
	p.mu.Unlock()
}

// ensureVoice joins the caller's voice channel if the bot is absent.
func (p *Player) ensureVoice(ic *interaction.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.mu.Lock()
	connected := p.voiceChannelID != ""
	p.mu.Unlock()
	if connected {
		return nil
	}
	channelID, err := p.voice.UserChannel(p.guildID, ic.AuthorID())
	if err != nil || channelID == "" {
		return ErrNotInVoice
	}
	if err := p.voice.Join(p.guildID, channelID); err != nil {
		return fmt.Errorf("join voice channel: %w", err)
	}
	p.mu.Lock()
	p.voiceChannelID = channelID
	p.voiceState = VoiceActive
	p.destroyed = false
	p.cleanQueueOnLeave = true
	p.mu.Unlock()
	return nil
}

// VoiceChannelID returns the joined voice channel, empty when absent.
func (p *Player) VoiceChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannelID
}

// SetVoiceChannel records a move initiated by the platform.
func (p *Player) SetVoiceChannel(channelID string) {
	p.mu.Lock()
	p.voiceChannelID = channelID
	p.mu.Unlock()
}

func (p *Player) setFooterLocked(text string) {
	p.footerText = text
	p.footerExpires = time.Now().Add(footerTTL)
}

func (p *Player) clearFooterLocked() {
	p.footerText = ""
	p.footerExpires = time.Time{}
}

func splitQueryLines(query string) []string {
	raw := strings.Split(query, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
