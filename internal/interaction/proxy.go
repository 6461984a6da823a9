package interaction

import (
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Proxy is a handle to one sent message. It captures just enough transport
// state to issue one more edit or delete, whichever backend the message
// lives on (initial-response slot, followup webhook, or plain REST).
type Proxy interface {
	// Edit replaces the message content.
	Edit(r *Response) error

	// Delete removes the message. A 404 is swallowed; the message being
	// gone is the outcome the caller asked for.
	Delete() error

	// Message fetches the full message object. The result is cached.
	Message() (*discordgo.Message, error)

	// DeleteAfter schedules a deletion and returns a cancel func.
	DeleteAfter(d time.Duration) (cancel func())
}

// baseProxy carries the message cache and delete-after plumbing shared by
// all three proxy kinds.
type baseProxy struct {
	mu     sync.Mutex
	cached *discordgo.Message
	timer  *time.Timer
}

func (b *baseProxy) cachedMessage() *discordgo.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cached
}

func (b *baseProxy) cache(m *discordgo.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m != nil {
		b.cached = m
	}
}

func (b *baseProxy) scheduleDelete(d time.Duration, del func() error) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d, func() {
		if err := del(); err != nil {
			log.Printf("[Interaction] delete-after failed: %v", err)
		}
	})
	timer := b.timer
	return func() { timer.Stop() }
}

func (b *baseProxy) stopTimers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// InitialProxy is backed by the interaction's initial-response slot.
type InitialProxy struct {
	baseProxy
	transport   Transport
	interaction *discordgo.Interaction
}

// NewInitialProxy creates a proxy over the initial response.
func NewInitialProxy(t Transport, i *discordgo.Interaction) *InitialProxy {
	return &InitialProxy{transport: t, interaction: i}
}

func (p *InitialProxy) Edit(r *Response) error {
	msg, err := p.transport.EditInitial(p.interaction, r.webhookEdit())
	if err != nil {
		return err
	}
	p.cache(msg)
	return nil
}

func (p *InitialProxy) Delete() error {
	err := p.transport.DeleteInitial(p.interaction)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (p *InitialProxy) Message() (*discordgo.Message, error) {
	if m := p.cachedMessage(); m != nil {
		return m, nil
	}
	msg, err := p.transport.InitialMessage(p.interaction)
	if err != nil {
		return nil, err
	}
	p.cache(msg)
	return msg, nil
}

func (p *InitialProxy) DeleteAfter(d time.Duration) func() {
	return p.scheduleDelete(d, p.Delete)
}

// WebhookProxy is backed by a followup webhook message.
type WebhookProxy struct {
	baseProxy
	transport   Transport
	interaction *discordgo.Interaction
	messageID   string
}

// NewWebhookProxy creates a proxy over a followup message.
func NewWebhookProxy(t Transport, i *discordgo.Interaction, msg *discordgo.Message) *WebhookProxy {
	p := &WebhookProxy{transport: t, interaction: i, messageID: msg.ID}
	p.cache(msg)
	return p
}

func (p *WebhookProxy) Edit(r *Response) error {
	msg, err := p.transport.FollowupEdit(p.interaction, p.messageID, r.webhookEdit())
	if err != nil {
		return err
	}
	p.cache(msg)
	return nil
}

func (p *WebhookProxy) Delete() error {
	err := p.transport.FollowupDelete(p.interaction, p.messageID)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (p *WebhookProxy) Message() (*discordgo.Message, error) {
	if m := p.cachedMessage(); m != nil {
		return m, nil
	}
	msg, err := p.transport.ChannelMessage(p.interaction.ChannelID, p.messageID)
	if err != nil {
		return nil, err
	}
	p.cache(msg)
	return msg, nil
}

func (p *WebhookProxy) DeleteAfter(d time.Duration) func() {
	return p.scheduleDelete(d, p.Delete)
}

// RestProxy is backed by a plain channel message, used once the
// interaction token has expired.
type RestProxy struct {
	baseProxy
	transport Transport
	channelID string
	messageID string
}

// NewRestProxy creates a proxy over a plain channel message.
func NewRestProxy(t Transport, msg *discordgo.Message) *RestProxy {
	p := &RestProxy{transport: t, channelID: msg.ChannelID, messageID: msg.ID}
	p.cache(msg)
	return p
}

func (p *RestProxy) Edit(r *Response) error {
	msg, err := p.transport.ChannelEdit(&discordgo.MessageEdit{
		ID:         p.messageID,
		Channel:    p.channelID,
		Content:    &r.Content,
		Embeds:     &r.Embeds,
		Components: &r.Components,
	})
	if err != nil {
		return err
	}
	p.cache(msg)
	return nil
}

func (p *RestProxy) Delete() error {
	err := p.transport.ChannelDelete(p.channelID, p.messageID)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (p *RestProxy) Message() (*discordgo.Message, error) {
	if m := p.cachedMessage(); m != nil {
		return m, nil
	}
	msg, err := p.transport.ChannelMessage(p.channelID, p.messageID)
	if err != nil {
		return nil, err
	}
	p.cache(msg)
	return msg, nil
}

func (p *RestProxy) DeleteAfter(d time.Duration) func() {
	return p.scheduleDelete(d, p.Delete)
}
