// Package polls runs reaction-based polls: creation, vote tracking,
// rendering and exactly-once finalisation.
package polls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/repositories/postgres"
	"github.com/KuramaSyu/inu-sub000/internal/uuid"
)

// Store is the persistence the engine needs.
type Store interface {
	Create(ctx context.Context, poll postgres.Poll, options []postgres.PollOption) ([]postgres.PollOption, error)
	SetMessageID(ctx context.Context, pollID, messageID string) error
	Get(ctx context.Context, pollID string) (postgres.Poll, []postgres.PollOption, error)
	All(ctx context.Context) ([]postgres.Poll, map[string][]postgres.PollOption, error)
	AddVote(ctx context.Context, pollID string, optionID int, userID string) error
	RemoveVote(ctx context.Context, pollID string, optionID int, userID string) error
	Votes(ctx context.Context, pollID string) (map[int][]string, error)
	Delete(ctx context.Context, pollID string) error
}

// CreateOptions describes a poll to create.
type CreateOptions struct {
	Title       string
	Description string
	Anonymous   bool
	Duration    time.Duration
	CreatorID   string
	GuildID     string
	ChannelID   string
	// Options pairs a reaction emoji with a description, in order.
	Options []postgres.PollOption
}

// Engine drives the poll lifecycle. One finalizer goroutine sleeps per
// live poll; the finalizing set makes finalisation exactly-once even
// when a startup rescan races a running timer.
type Engine struct {
	session *discordgo.Session
	store   Store
	chart   ChartRenderer
	ids     uuid.Generator

	mu sync.Mutex
	// reaction → option id, per published poll message
	reactions map[string]map[string]int
	// message id → poll id, for reaction routing
	messages   map[string]string
	finalizing map[string]struct{}
}

// Config configures an Engine.
type Config struct {
	Session *discordgo.Session
	Store   Store
	Chart   ChartRenderer
	IDs     uuid.Generator
}

// New creates a poll engine.
func New(cfg *Config) *Engine {
	chart := cfg.Chart
	if chart == nil {
		chart = NewDonutRenderer()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}
	return &Engine{
		session:    cfg.Session,
		store:      cfg.Store,
		chart:      chart,
		ids:        ids,
		reactions:  make(map[string]map[string]int),
		messages:   make(map[string]string),
		finalizing: make(map[string]struct{}),
	}
}

// Create persists and publishes a poll, adds one reaction per option,
// and starts the finalizer.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (string, error) {
	if len(opts.Options) < 2 {
		return "", fmt.Errorf("a poll needs at least two options")
	}
	poll := postgres.Poll{
		PollID:      e.ids.New(),
		Title:       opts.Title,
		Description: opts.Description,
		Anonymous:   opts.Anonymous,
		Starts:      time.Now(),
		Expires:     time.Now().Add(opts.Duration),
		CreatorID:   opts.CreatorID,
		GuildID:     opts.GuildID,
		ChannelID:   opts.ChannelID,
	}
	options, err := e.store.Create(ctx, poll, opts.Options)
	if err != nil {
		return "", fmt.Errorf("persist poll: %w", err)
	}

	if err := e.publish(ctx, poll, options); err != nil {
		return "", err
	}
	go e.finalizeAt(poll.PollID, poll.Expires)
	return poll.PollID, nil
}

// publish posts the poll message, seeds its reactions and caches the
// reaction mapping.
func (e *Engine) publish(ctx context.Context, poll postgres.Poll, options []postgres.PollOption) error {
	embed, err := e.renderEmbed(ctx, poll, options)
	if err != nil {
		return err
	}
	msg, err := e.session.ChannelMessageSendEmbed(poll.ChannelID, embed)
	if err != nil {
		return fmt.Errorf("publish poll: %w", err)
	}
	if err := e.store.SetMessageID(ctx, poll.PollID, msg.ID); err != nil {
		return fmt.Errorf("record poll message: %w", err)
	}

	for _, option := range options {
		if err := e.session.MessageReactionAdd(poll.ChannelID, msg.ID, option.Reaction); err != nil {
			log.Printf("[Polls] seeding reaction %s failed: %v", option.Reaction, err)
		}
	}
	e.cache(poll.PollID, msg.ID, options)
	return nil
}

func (e *Engine) cache(pollID, messageID string, options []postgres.PollOption) {
	byReaction := make(map[string]int, len(options))
	for _, option := range options {
		byReaction[option.Reaction] = option.OptionID
	}
	e.mu.Lock()
	e.reactions[pollID] = byReaction
	e.messages[messageID] = pollID
	e.mu.Unlock()
}

// HandleReactionAdd records a vote when a cached poll reaction fires.
func (e *Engine) HandleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	e.vote(r.MessageID, r.Emoji.APIName(), r.UserID, true)
}

// HandleReactionRemove retracts a vote.
func (e *Engine) HandleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	e.vote(r.MessageID, r.Emoji.APIName(), r.UserID, false)
}

func (e *Engine) vote(messageID, reaction, userID string, add bool) {
	e.mu.Lock()
	pollID, ok := e.messages[messageID]
	var optionID int
	if ok {
		optionID, ok = e.reactions[pollID][reaction]
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	if add {
		err = e.store.AddVote(ctx, pollID, optionID, userID)
	} else {
		err = e.store.RemoveVote(ctx, pollID, optionID, userID)
	}
	if err != nil {
		log.Printf("[Polls] vote update failed for poll %s: %v", pollID, err)
	}
}

// Refresh re-renders the poll message from the stored votes.
func (e *Engine) Refresh(ctx context.Context, pollID string) error {
	poll, options, err := e.store.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.MessageID == "" {
		return fmt.Errorf("poll %s is not published", pollID)
	}
	embed, err := e.renderEmbed(ctx, poll, options)
	if err != nil {
		return err
	}
	_, err = e.session.ChannelMessageEditEmbed(poll.ChannelID, poll.MessageID, embed)
	return err
}

// renderEmbed builds the live poll embed: bars and counts for anonymous
// polls, member lists otherwise.
func (e *Engine) renderEmbed(ctx context.Context, poll postgres.Poll, options []postgres.PollOption) (*discordgo.MessageEmbed, error) {
	votes, err := e.store.Votes(ctx, poll.PollID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, voters := range votes {
		total += len(voters)
	}

	embed := &discordgo.MessageEmbed{
		Title:       poll.Title,
		Description: poll.Description,
		Color:       0x5B8DEF,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Ends %s", poll.Expires.UTC().Format("2006-01-02 15:04 MST")),
		},
	}
	for _, option := range options {
		voters := votes[option.OptionID]
		name := fmt.Sprintf("%s %s", option.Reaction, option.Description)
		var value string
		if poll.Anonymous {
			value = fmt.Sprintf("%s %d", bar(len(voters), total), len(voters))
		} else if len(voters) == 0 {
			value = "nobody yet"
		} else {
			mentions := make([]string, len(voters))
			for i, id := range voters {
				mentions[i] = "<@" + id + ">"
			}
			value = strings.Join(mentions, ", ")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value})
	}
	return embed, nil
}

// bar renders a ten-slot progress bar.
func bar(count, total int) string {
	if total == 0 {
		return strings.Repeat("░", 10)
	}
	filled := count * 10 / total
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// Rescan reschedules a finalizer for every stored poll. Called once at
// startup; already-expired polls finalise immediately.
func (e *Engine) Rescan(ctx context.Context) error {
	pollsList, options, err := e.store.All(ctx)
	if err != nil {
		return fmt.Errorf("rescan polls: %w", err)
	}
	for _, poll := range pollsList {
		if poll.MessageID != "" {
			e.cache(poll.PollID, poll.MessageID, options[poll.PollID])
		}
		go e.finalizeAt(poll.PollID, poll.Expires)
	}
	log.Printf("[Polls] rescheduled %d poll finalizers", len(pollsList))
	return nil
}

// finalizeAt sleeps until the expiry, then finalises.
func (e *Engine) finalizeAt(pollID string, expires time.Time) {
	if wait := time.Until(expires); wait > 0 {
		time.Sleep(wait)
	}
	e.finalize(pollID)
}

// finalize publishes the result embed with the chart exactly once and
// removes the poll.
func (e *Engine) finalize(pollID string) {
	e.mu.Lock()
	if _, busy := e.finalizing[pollID]; busy {
		e.mu.Unlock()
		return
	}
	e.finalizing[pollID] = struct{}{}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poll, options, err := e.store.Get(ctx, pollID)
	if err != nil {
		// Already finalised by a previous run.
		if !errors.Is(err, postgres.ErrNotFound) {
			log.Printf("[Polls] finalize load failed for %s: %v", pollID, err)
		}
		return
	}
	votes, err := e.store.Votes(ctx, pollID)
	if err != nil {
		log.Printf("[Polls] finalize votes failed for %s: %v", pollID, err)
		return
	}

	slices := make([]ChartSlice, 0, len(options))
	for _, option := range options {
		slices = append(slices, ChartSlice{Label: option.Description, Count: len(votes[option.OptionID])})
	}
	chart, err := e.chart.Render(poll.Title, slices)
	if err != nil {
		log.Printf("[Polls] chart render failed for %s: %v", pollID, err)
	}

	embed, err := e.renderEmbed(ctx, poll, options)
	if err != nil {
		log.Printf("[Polls] finalize render failed for %s: %v", pollID, err)
		return
	}
	embed.Title = "Poll finished: " + poll.Title

	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if chart != nil {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://results.png"}
		send.Files = []*discordgo.File{{
			Name:        "results.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(chart),
		}}
	}
	if _, err := e.session.ChannelMessageSendComplex(poll.ChannelID, send); err != nil {
		log.Printf("[Polls] finalize publish failed for %s: %v", pollID, err)
		return
	}

	if err := e.store.Delete(ctx, pollID); err != nil {
		log.Printf("[Polls] finalize delete failed for %s: %v", pollID, err)
	}
	e.mu.Lock()
	delete(e.reactions, pollID)
	if poll.MessageID != "" {
		delete(e.messages, poll.MessageID)
	}
	e.mu.Unlock()
}
