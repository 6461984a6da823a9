package interaction

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// DefaultAskTimeout is how long prompts wait for a click.
const DefaultAskTimeout = 120 * time.Second

// AskOptions configures a button prompt.
type AskOptions struct {
	// Title is the prompt text.
	Title string

	// Labels name the buttons, one per choice.
	Labels []string

	// AllowedUsers may answer; defaults to the invoking user.
	AllowedUsers []string

	// Timeout after which the ask gives up. Zero means DefaultAskTimeout.
	Timeout time.Duration

	// Ephemeral makes the prompt visible only to the invoker.
	Ephemeral bool

	// DeleteAfterTimeout removes the prompt when nobody answered.
	DeleteAfterTimeout bool
}

// Ask publishes a prompt with one button per label and waits for a click
// from an allowed user. It returns the chosen label and a fresh Context
// bound to the button interaction. On timeout both results are zero.
func Ask(c *Context, w *Waiter, opts AskOptions) (string, *Context, error) {
	if len(opts.Labels) == 0 {
		return "", nil, fmt.Errorf("ask needs at least one label")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	allowed := opts.AllowedUsers
	if len(allowed) == 0 && c.AuthorID() != "" {
		allowed = []string{c.AuthorID()}
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	prefix := "ask:" + nonce

	buttons := make([]discordgo.MessageComponent, 0, len(opts.Labels))
	for i, label := range opts.Labels {
		buttons = append(buttons, discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("%s:%d", prefix, i),
		})
	}

	ch, cancel := w.Register(prefix, allowed)
	defer cancel()

	proxy, err := c.Respond(&Response{
		Content:    opts.Title,
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}},
		Ephemeral:  opts.Ephemeral,
	})
	if err != nil {
		return "", nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case answer := <-ch:
		idx := parseAskIndex(answer.CustomID(), prefix)
		if idx < 0 || idx >= len(opts.Labels) {
			return "", nil, fmt.Errorf("ask got malformed custom id %q", answer.CustomID())
		}
		return opts.Labels[idx], answer, nil
	case <-timer.C:
		if opts.DeleteAfterTimeout && proxy != nil {
			_ = proxy.Delete()
		}
		return "", nil, nil
	}
}

func parseAskIndex(customID, prefix string) int {
	rest := strings.TrimPrefix(customID, prefix+":")
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return idx
}

// ModalQuestion describes one text input of a modal prompt.
type ModalQuestion struct {
	Label     string
	Style     discordgo.TextInputStyle
	MinLength int
	MaxLength int
	Required  bool
	Value     string
}

// ModalOptions configures a modal prompt.
type ModalOptions struct {
	Title     string
	Questions []ModalQuestion
	Timeout   time.Duration
}

// AskWithModal publishes a platform modal as the initial response and
// waits for the submit. It returns the answers in question order and a
// fresh Context bound to the submit interaction. Length and required
// constraints ride on the inputs and are enforced by the platform. Only
// legal while the interaction is still in its initial state.
func AskWithModal(c *Context, w *Waiter, opts ModalOptions) ([]string, *Context, error) {
	if len(opts.Questions) == 0 {
		return nil, nil, fmt.Errorf("modal needs at least one question")
	}
	if c.State() != StateInitial {
		return nil, nil, &ErrIllegalTransition{From: c.State(), To: StateCreated}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	prefix := "modal:" + nonce

	rows := make([]discordgo.MessageComponent, 0, len(opts.Questions))
	for i, q := range opts.Questions {
		style := q.Style
		if style == 0 {
			style = discordgo.TextInputShort
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  fmt.Sprintf("q%d", i),
				Label:     q.Label,
				Style:     style,
				MinLength: q.MinLength,
				MaxLength: q.MaxLength,
				Required:  q.Required,
				Value:     q.Value,
			},
		}})
	}

	allowed := []string(nil)
	if c.AuthorID() != "" {
		allowed = []string{c.AuthorID()}
	}
	ch, cancel := w.Register(prefix, allowed)
	defer cancel()

	err := c.transport.RespondInitial(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   prefix,
			Title:      opts.Title,
			Components: rows,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	// The modal consumed the initial response slot.
	c.mu.Lock()
	c.state = StateCreated
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case answer := <-ch:
		values := extractModalValues(answer, len(opts.Questions))
		return values, answer, nil
	case <-timer.C:
		return nil, nil, nil
	}
}

func extractModalValues(c *Context, n int) []string {
	values := make([]string, n)
	data := c.Interaction.ModalSubmitData()
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			input, ok := inner.(*discordgo.TextInput)
			if !ok {
				continue
			}
			var idx int
			if _, err := fmt.Sscanf(input.CustomID, "q%d", &idx); err == nil && idx >= 0 && idx < n {
				values[idx] = input.Value
			}
		}
	}
	return values
}
