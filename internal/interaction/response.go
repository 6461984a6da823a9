package interaction

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Response is the transport-agnostic payload handed to Respond. The state
// machine decides whether it becomes an initial response, an edit, a
// followup webhook or a plain channel message.
type Response struct {
	// Text content of the response
	Content string

	// Discord embeds
	Embeds []*discordgo.MessageEmbed

	// Interactive components (buttons, select menus, etc)
	Components []discordgo.MessageComponent

	// Whether this response should be ephemeral. The flag is fixed at the
	// first response; Discord silently drops it on later edits.
	Ephemeral bool

	// Update edits the most recent response instead of creating a new one.
	Update bool

	// DeleteAfter schedules a cancellable deletion of the sent message.
	DeleteAfter time.Duration

	// File attachments
	Files []*discordgo.File

	// Allowed mentions configuration
	AllowedMentions *discordgo.MessageAllowedMentions
}

// NewResponse creates a response with the given content.
func NewResponse(content string) *Response {
	return &Response{Content: content}
}

// NewEphemeralResponse creates an ephemeral response.
func NewEphemeralResponse(content string) *Response {
	return &Response{Content: content, Ephemeral: true}
}

// NewEmbedResponse creates a response carrying a single embed.
func NewEmbedResponse(embed *discordgo.MessageEmbed) *Response {
	return &Response{Embeds: []*discordgo.MessageEmbed{embed}}
}

// WithComponents sets the component rows.
func (r *Response) WithComponents(components ...discordgo.MessageComponent) *Response {
	r.Components = components
	return r
}

// WithEmbeds sets the embeds.
func (r *Response) WithEmbeds(embeds ...*discordgo.MessageEmbed) *Response {
	r.Embeds = embeds
	return r
}

// AsEphemeral marks the response ephemeral.
func (r *Response) AsEphemeral() *Response {
	r.Ephemeral = true
	return r
}

// AsUpdate makes the response edit the previous one.
func (r *Response) AsUpdate() *Response {
	r.Update = true
	return r
}

// WithDeleteAfter schedules deletion of the sent message.
func (r *Response) WithDeleteAfter(d time.Duration) *Response {
	r.DeleteAfter = d
	return r
}

// interactionData converts the response for an initial interaction response.
func (r *Response) interactionData() *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:         r.Content,
		Embeds:          r.Embeds,
		Components:      r.Components,
		Files:           r.Files,
		AllowedMentions: r.AllowedMentions,
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// webhookParams converts the response for a followup webhook.
func (r *Response) webhookParams() *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:         r.Content,
		Embeds:          r.Embeds,
		Components:      r.Components,
		Files:           r.Files,
		AllowedMentions: r.AllowedMentions,
	}
	if r.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}

// webhookEdit converts the response for an edit of an existing message.
func (r *Response) webhookEdit() *discordgo.WebhookEdit {
	return &discordgo.WebhookEdit{
		Content:         &r.Content,
		Embeds:          &r.Embeds,
		Components:      &r.Components,
		Files:           r.Files,
		AllowedMentions: r.AllowedMentions,
	}
}

// messageSend converts the response for a plain channel send (Rest state).
func (r *Response) messageSend() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         r.Content,
		Embeds:          r.Embeds,
		Components:      r.Components,
		Files:           r.Files,
		AllowedMentions: r.AllowedMentions,
	}
}
