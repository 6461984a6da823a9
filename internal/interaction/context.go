package interaction

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ValidityWindow is how long an interaction token is trusted. Discord
// allows 15 minutes; the margin absorbs clock skew and in-flight calls.
const ValidityWindow = 14*time.Minute + 48*time.Second

// ErrNoResponse is returned when an operation needs a previous response
// and none exists.
var ErrNoResponse = errors.New("interaction has no response yet")

// Context wraps one Discord interaction and owns its response lifecycle.
// All response operations funnel through the same state machine, so a
// caller can fire Respond without caring whether the interaction was
// already deferred, answered, or has expired. Two Contexts are the same
// interaction iff their Key matches; the Registry hands out one live
// Context per interaction id.
type Context struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate

	transport Transport
	createdAt time.Time

	mu            sync.Mutex
	state         State
	proxies       []Proxy
	deferInFlight chan struct{}
}

// NewContext builds a Context in the Initial state. The creation time is
// decoded from the interaction snowflake so validity tracks Discord's
// clock, not ours.
func NewContext(t Transport, s *discordgo.Session, i *discordgo.InteractionCreate) *Context {
	createdAt := time.Now()
	if ts, err := discordgo.SnowflakeTimestamp(i.ID); err == nil {
		createdAt = ts
	}
	return &Context{
		Session:     s,
		Interaction: i,
		transport:   t,
		createdAt:   createdAt,
		state:       StateInitial,
	}
}

// Key identifies the interaction. Contexts with equal keys are equal.
func (c *Context) Key() string {
	return c.Interaction.ID
}

// Equal reports whether both contexts wrap the same interaction.
func (c *Context) Equal(other *Context) bool {
	return other != nil && c.Key() == other.Key()
}

// State returns the current response state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CreatedAt returns when Discord minted the interaction.
func (c *Context) CreatedAt() time.Time {
	return c.createdAt
}

// IsValid reports whether the interaction token is still usable. Once
// false, responses fall back to plain channel messages.
func (c *Context) IsValid() bool {
	return time.Since(c.createdAt) < ValidityWindow
}

// Defer acknowledges the interaction without content, buying the 15
// minute edit window. With update true the acknowledgement targets the
// source message (component interactions). With background true the
// network call runs in a goroutine; a concurrent Respond waits for it.
// A second Defer is a no-op.
func (c *Context) Defer(update, background bool) error {
	c.mu.Lock()
	switch c.state {
	case StateDeferredCreate, StateDeferredUpdate:
		c.mu.Unlock()
		return nil
	case StateInitial:
	default:
		from := c.state
		c.mu.Unlock()
		return &ErrIllegalTransition{From: from, To: StateDeferredCreate}
	}

	respType := discordgo.InteractionResponseDeferredChannelMessageWithSource
	target := StateDeferredCreate
	if update && c.MessageID() != "" {
		respType = discordgo.InteractionResponseDeferredMessageUpdate
		target = StateDeferredUpdate
	}
	c.state = target
	done := make(chan struct{})
	c.deferInFlight = done
	c.mu.Unlock()

	call := func() error {
		err := c.transport.RespondInitial(c.Interaction.Interaction, &discordgo.InteractionResponse{
			Type: respType,
		})
		c.mu.Lock()
		if err != nil {
			// Roll back so a later Respond sees the prior state.
			c.state = StateInitial
		} else {
			c.proxies = append(c.proxies, NewInitialProxy(c.transport, c.Interaction.Interaction))
		}
		c.deferInFlight = nil
		c.mu.Unlock()
		close(done)
		return err
	}

	if background {
		go func() {
			if err := call(); err != nil {
				log.Printf("[Interaction] background defer failed: %v", err)
			}
		}()
		return nil
	}
	return call()
}

// Respond sends r through whatever path the current state requires and
// returns a proxy to the resulting message. It waits for an in-flight
// background Defer first, so defer-then-respond races compose.
func (c *Context) Respond(r *Response) (Proxy, error) {
	c.mu.Lock()
	for c.deferInFlight != nil {
		done := c.deferInFlight
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}

	if !c.IsValid() && c.state != StateRest {
		if CanTransition(c.state, StateRest) {
			c.state = StateRest
		}
	}

	var proxy Proxy
	var err error
	switch c.state {
	case StateInitial:
		proxy, err = c.respondInitialLocked(r)
	case StateDeferredCreate, StateDeferredUpdate:
		proxy, err = c.respondDeferredLocked(r)
	case StateCreated:
		proxy, err = c.respondCreatedLocked(r)
	case StateRest:
		proxy, err = c.respondRestLocked(r)
	default:
		err = &ErrIllegalTransition{From: c.state, To: StateCreated}
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if r.DeleteAfter > 0 {
		proxy.DeleteAfter(r.DeleteAfter)
	}
	return proxy, nil
}

// respondInitialLocked issues the one-shot initial response.
func (c *Context) respondInitialLocked(r *Response) (Proxy, error) {
	respType := discordgo.InteractionResponseChannelMessageWithSource
	if r.Update && c.MessageID() != "" {
		respType = discordgo.InteractionResponseUpdateMessage
	}
	err := c.transport.RespondInitial(c.Interaction.Interaction, &discordgo.InteractionResponse{
		Type: respType,
		Data: r.interactionData(),
	})
	if err != nil {
		return nil, err
	}
	proxy := NewInitialProxy(c.transport, c.Interaction.Interaction)
	c.proxies = append(c.proxies, proxy)
	c.state = StateCreated
	return proxy, nil
}

// respondDeferredLocked edits the deferred placeholder (or the source
// message for deferred updates). Ephemeral was fixed at defer time and is
// silently ignored here.
func (c *Context) respondDeferredLocked(r *Response) (Proxy, error) {
	proxy := c.lastInitialProxyLocked()
	if proxy == nil {
		proxy = NewInitialProxy(c.transport, c.Interaction.Interaction)
		c.proxies = append(c.proxies, proxy)
	}
	if err := proxy.Edit(r); err != nil {
		return nil, err
	}
	c.state = StateCreated
	return proxy, nil
}

// respondCreatedLocked either edits the most recent proxy or appends a
// followup webhook message.
func (c *Context) respondCreatedLocked(r *Response) (Proxy, error) {
	if r.Update {
		if last := c.lastProxyLocked(); last != nil {
			if err := last.Edit(r); err != nil {
				return nil, err
			}
			return last, nil
		}
	}
	msg, err := c.transport.FollowupCreate(c.Interaction.Interaction, r.webhookParams())
	if err != nil {
		return nil, err
	}
	proxy := NewWebhookProxy(c.transport, c.Interaction.Interaction, msg)
	c.proxies = append(c.proxies, proxy)
	return proxy, nil
}

// respondRestLocked falls back to plain channel messages after the token
// window closed.
func (c *Context) respondRestLocked(r *Response) (Proxy, error) {
	if r.Update {
		if last := c.lastProxyLocked(); last != nil {
			if err := last.Edit(r); err != nil {
				return nil, err
			}
			return last, nil
		}
	}
	msg, err := c.transport.ChannelSend(c.ChannelID(), r.messageSend())
	if err != nil {
		return nil, err
	}
	proxy := NewRestProxy(c.transport, msg)
	c.proxies = append(c.proxies, proxy)
	return proxy, nil
}

// Execute always sends a followup webhook message, never an edit.
func (c *Context) Execute(r *Response) (Proxy, error) {
	update := r.Update
	r.Update = false
	proxy, err := c.Respond(r)
	r.Update = update
	return proxy, err
}

// EditLast edits the most recent response. Forbidden errors after a
// user-visible state change are logged, not propagated.
func (c *Context) EditLast(r *Response) error {
	c.mu.Lock()
	last := c.lastProxyLocked()
	c.mu.Unlock()
	if last == nil {
		return ErrNoResponse
	}
	err := last.Edit(r)
	if IsForbidden(err) {
		log.Printf("[Interaction] edit forbidden on %s: %v", c.Key(), err)
		return nil
	}
	return err
}

// DeleteLast deletes the most recent response and pops its proxy.
func (c *Context) DeleteLast() error {
	c.mu.Lock()
	last := c.lastProxyLocked()
	if last != nil {
		c.proxies = c.proxies[:len(c.proxies)-1]
		if len(c.proxies) == 0 && c.state == StateCreated {
			c.state = StateDeleted
		}
	}
	c.mu.Unlock()
	if last == nil {
		return ErrNoResponse
	}
	err := last.Delete()
	if IsForbidden(err) {
		log.Printf("[Interaction] delete forbidden on %s: %v", c.Key(), err)
		return nil
	}
	return err
}

// DeleteInitialResponse deletes the initial response if one exists.
func (c *Context) DeleteInitialResponse() error {
	c.mu.Lock()
	var initial Proxy
	for _, p := range c.proxies {
		if _, ok := p.(*InitialProxy); ok {
			initial = p
			break
		}
	}
	c.mu.Unlock()
	if initial == nil {
		return ErrNoResponse
	}
	return initial.Delete()
}

// LastProxy returns the most recent response proxy, or nil.
func (c *Context) LastProxy() Proxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProxyLocked()
}

func (c *Context) lastProxyLocked() Proxy {
	if len(c.proxies) == 0 {
		return nil
	}
	return c.proxies[len(c.proxies)-1]
}

func (c *Context) lastInitialProxyLocked() *InitialProxy {
	for i := len(c.proxies) - 1; i >= 0; i-- {
		if p, ok := c.proxies[i].(*InitialProxy); ok {
			return p
		}
	}
	return nil
}

// expire moves the context to Rest and stops outstanding timers. Called
// by the registry on eviction.
func (c *Context) expire() {
	c.mu.Lock()
	if CanTransition(c.state, StateRest) {
		c.state = StateRest
	}
	proxies := make([]Proxy, len(c.proxies))
	copy(proxies, c.proxies)
	c.mu.Unlock()

	for _, p := range proxies {
		switch v := p.(type) {
		case *InitialProxy:
			v.stopTimers()
		case *WebhookProxy:
			v.stopTimers()
		case *RestProxy:
			v.stopTimers()
		}
	}
}

// --- identity accessors ---

// Author returns the invoking user.
func (c *Context) Author() *discordgo.User {
	if c.Interaction.Member != nil {
		return c.Interaction.Member.User
	}
	return c.Interaction.User
}

// Member returns the guild member, nil in DMs.
func (c *Context) Member() *discordgo.Member {
	return c.Interaction.Member
}

// AuthorID returns the invoking user's id, or empty.
func (c *Context) AuthorID() string {
	if u := c.Author(); u != nil {
		return u.ID
	}
	return ""
}

// GuildID returns the guild id, empty in DMs.
func (c *Context) GuildID() string {
	return c.Interaction.GuildID
}

// ChannelID returns the channel the interaction came from.
func (c *Context) ChannelID() string {
	return c.Interaction.ChannelID
}

// CustomID returns the component or modal custom id, empty otherwise.
func (c *Context) CustomID() string {
	switch c.Interaction.Type {
	case discordgo.InteractionMessageComponent:
		return c.Interaction.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return c.Interaction.ModalSubmitData().CustomID
	}
	return ""
}

// Values returns select-menu values for component interactions.
func (c *Context) Values() []string {
	if c.Interaction.Type == discordgo.InteractionMessageComponent {
		return c.Interaction.MessageComponentData().Values
	}
	return nil
}

// MessageID returns the id of the message the interaction was invoked on
// (component interactions), or empty.
func (c *Context) MessageID() string {
	if c.Interaction.Message != nil {
		return c.Interaction.Message.ID
	}
	return ""
}

// OriginalMessage returns the message the interaction was invoked on.
func (c *Context) OriginalMessage() *discordgo.Message {
	return c.Interaction.Message
}
