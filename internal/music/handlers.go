package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
	"github.com/KuramaSyu/inu-sub000/internal/music/resolver"
	"github.com/KuramaSyu/inu-sub000/internal/pipeline"
)

// NewRouter wires the music slash command and the control-message
// buttons into a pipeline router.
func NewRouter(registry *Registry) *pipeline.Router {
	h := &handlers{registry: registry}
	r := pipeline.NewRouter("music").Use(pipeline.GuildOnlyMiddleware())
	r.Subcommand("play", h.play)
	r.Subcommand("play-at", h.playAt)
	r.Subcommand("skip", h.skip)
	r.Subcommand("pause", h.pause)
	r.Subcommand("resume", h.resume)
	r.Subcommand("stop", h.stop)
	r.Subcommand("clear", h.clear)
	r.Subcommand("shuffle", h.shuffle)
	r.Subcommand("seek", h.seek)
	r.Subcommand("fix", h.fix)
	r.Subcommand("leave", h.leave)
	r.Subcommand("queue", h.queue)
	r.Component("skip1", h.buttonSkip(1))
	r.Component("skip2", h.buttonSkip(2))
	r.Component("shuffle", h.buttonShuffle)
	r.Component("playpause", h.buttonPlayPause)
	r.Component("stop", h.buttonStop)
	return r
}

type handlers struct {
	registry *Registry
}

func (h *handlers) displayName(ic *interaction.Context) string {
	if m := ic.Member(); m != nil {
		if m.Nick != "" {
			return m.Nick
		}
		if m.User != nil {
			return m.User.Username
		}
	}
	if u := ic.Author(); u != nil {
		return u.Username
	}
	return "someone"
}

func (h *handlers) play(ic *interaction.Context) error {
	query := optionString(ic, "query")
	if query == "" {
		return pipeline.NewUserError("Tell me what to play.", pipeline.ErrorCodeBadRequest)
	}
	player := h.registry.Get(ic.GuildID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	reports, err := player.Play(ctx, ic, query)
	if err != nil {
		return playError(err)
	}

	if len(reports) > 1 {
		_, rerr := ic.Respond(interaction.NewEmbedResponse(buildReportEmbed(reports)))
		return rerr
	}
	_, rerr := ic.Respond(interaction.NewResponse(
		fmt.Sprintf("Queued **%s**.", reports[0].Title)).WithDeleteAfter(30 * time.Second))
	return rerr
}

func (h *handlers) playAt(ic *interaction.Context) error {
	query := optionString(ic, "query")
	position := int(optionInt(ic, "position"))
	if query == "" {
		return pipeline.NewUserError("Tell me what to play.", pipeline.ErrorCodeBadRequest)
	}
	player := h.registry.Get(ic.GuildID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	track, err := player.PlayAt(ctx, ic, position, query)
	if err != nil {
		return playError(err)
	}
	_, rerr := ic.Respond(interaction.NewResponse(
		fmt.Sprintf("Queued **%s** at position %d.", track.Title(), position)).WithDeleteAfter(30 * time.Second))
	return rerr
}

func (h *handlers) skip(ic *interaction.Context) error {
	amount := int(optionInt(ic, "amount"))
	if amount < 1 {
		amount = 1
	}
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Skip(ctx, amount); err != nil {
		return playError(err)
	}
	return h.ack(ic, "Skipped.")
}

func (h *handlers) pause(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Pause(ctx, h.displayName(ic)); err != nil {
		return err
	}
	return h.ack(ic, "Paused.")
}

func (h *handlers) resume(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Resume(ctx); err != nil {
		return err
	}
	return h.ack(ic, "Resumed.")
}

func (h *handlers) stop(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Stop(ctx); err != nil {
		return err
	}
	return h.ack(ic, "Stopped, queue cleared.")
}

func (h *handlers) clear(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	player.Clear()
	return h.ack(ic, "Queue cleared, current track keeps playing.")
}

func (h *handlers) shuffle(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	player.Shuffle(h.displayName(ic))
	return h.ack(ic, "Shuffled.")
}

func (h *handlers) seek(ic *interaction.Context) error {
	expression := optionString(ic, "position")
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	target, err := player.Seek(ctx, expression)
	if err != nil {
		var bad *ErrBadSeekExpression
		if errors.As(err, &bad) {
			return pipeline.NewUserError(bad.Error(), pipeline.ErrorCodeBadRequest)
		}
		return playError(err)
	}
	return h.ack(ic, fmt.Sprintf("Jumped to %s.", FormatDuration(target)))
}

func (h *handlers) fix(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Fix(ctx); err != nil {
		return playError(err)
	}
	return h.ack(ic, "Gave the voice connection a kick.")
}

func (h *handlers) leave(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Leave(ctx, false, true); err != nil {
		return err
	}
	return h.ack(ic, "Bye.")
}

func (h *handlers) queue(ic *interaction.Context) error {
	player, err := h.activePlayer(ic)
	if err != nil {
		return err
	}
	player.SendQueue(true, true)
	return h.ack(ic, "Here you go.")
}

// buttonSkip handles the two skip buttons of the control message.
func (h *handlers) buttonSkip(amount int) pipeline.HandlerFunc {
	return func(ic *interaction.Context) error {
		player, err := h.buttonPlayer(ic)
		if err != nil || player == nil {
			return err
		}
		ctx, cancel := opCtx()
		defer cancel()
		if err := player.Skip(ctx, amount); err != nil {
			return playError(err)
		}
		return ic.Defer(true, false)
	}
}

func (h *handlers) buttonShuffle(ic *interaction.Context) error {
	player, err := h.buttonPlayer(ic)
	if err != nil || player == nil {
		return err
	}
	player.Shuffle(h.displayName(ic))
	return ic.Defer(true, false)
}

func (h *handlers) buttonPlayPause(ic *interaction.Context) error {
	player, err := h.buttonPlayer(ic)
	if err != nil || player == nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if player.Paused() {
		err = player.Resume(ctx)
	} else {
		err = player.Pause(ctx, h.displayName(ic))
	}
	if err != nil {
		return err
	}
	return ic.Defer(true, false)
}

func (h *handlers) buttonStop(ic *interaction.Context) error {
	player, err := h.buttonPlayer(ic)
	if err != nil || player == nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := player.Stop(ctx); err != nil {
		return err
	}
	return ic.Defer(true, false)
}

// buttonPlayer resolves the player behind a control button. Clicks on a
// stale control message get its buttons disabled and the live message
// refreshed instead; those return a nil player with no error.
func (h *handlers) buttonPlayer(ic *interaction.Context) (*Player, error) {
	player, ok := h.registry.Lookup(ic.GuildID())
	if !ok {
		_, err := ic.Respond(interaction.NewResponse("").
			WithComponents(BuildControlButtons(false, true)...).AsUpdate())
		return nil, err
	}
	if messageID := ic.MessageID(); messageID != "" && messageID != player.ControlMessageID() {
		_, err := ic.Respond(interaction.NewResponse("").
			WithComponents(BuildControlButtons(false, true)...).AsUpdate())
		player.SendQueue(false, false)
		return nil, err
	}
	return player, nil
}

// activePlayer returns the guild's player or a user error if none.
func (h *handlers) activePlayer(ic *interaction.Context) (*Player, error) {
	player, ok := h.registry.Lookup(ic.GuildID())
	if !ok {
		return nil, pipeline.NewUserError("Nothing is playing here.", pipeline.ErrorCodeBadRequest)
	}
	return player, nil
}

func (h *handlers) ack(ic *interaction.Context, message string) error {
	_, err := ic.Respond(interaction.NewEphemeralResponse(message).WithDeleteAfter(15 * time.Second))
	return err
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// playError translates player failures into user-facing errors.
func playError(err error) error {
	switch {
	case errors.Is(err, ErrNotInVoice):
		return pipeline.NewUserError("Join a voice channel first.", pipeline.ErrorCodeBadRequest)
	case errors.Is(err, ErrNoTracksInQueue):
		return pipeline.NewUserError("The queue is empty.", pipeline.ErrorCodeBadRequest)
	}
	var noResults *resolver.NoResultsError
	if errors.As(err, &noResults) {
		return &pipeline.HandlerError{
			Err:         err,
			UserMessage: noResultsMessage(noResults),
			ShowToUser:  true,
			Code:        pipeline.ErrorCodeNotFound,
		}
	}
	return err
}

func noResultsMessage(e *resolver.NoResultsError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found nothing for `%s`.\n", e.Query)
	for _, line := range e.Guidance() {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

// buildReportEmbed renders the per-line table of a multi-line play.
func buildReportEmbed(reports []PlayReport) *discordgo.MessageEmbed {
	var b strings.Builder
	queued := 0
	for _, report := range reports {
		if report.Err != nil {
			fmt.Fprintf(&b, "❌ `%s`\n", truncate(report.Query, 40))
			continue
		}
		queued++
		fmt.Fprintf(&b, "✅ %s\n", truncate(report.Title, 40))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Queued %d of %d", queued, len(reports)),
		Description: b.String(),
		Color:       embedColor,
	}
}

func optionString(ic *interaction.Context, name string) string {
	if opt := findOption(ic, name); opt != nil {
		return opt.StringValue()
	}
	return ""
}

func optionInt(ic *interaction.Context, name string) int64 {
	if opt := findOption(ic, name); opt != nil {
		return opt.IntValue()
	}
	return 0
}

func findOption(ic *interaction.Context, name string) *discordgo.ApplicationCommandInteractionDataOption {
	if ic.Interaction.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	options := ic.Interaction.ApplicationCommandData().Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		options = options[0].Options
	}
	for _, opt := range options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}
