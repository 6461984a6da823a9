package interaction

import (
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Transport abstracts the Discord calls the response state machine makes,
// so the machine can be exercised in tests without a live session.
type Transport interface {
	// RespondInitial issues the one-shot initial response.
	RespondInitial(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error

	// EditInitial edits the initial response (or its deferred placeholder).
	EditInitial(i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error)

	// DeleteInitial deletes the initial response.
	DeleteInitial(i *discordgo.Interaction) error

	// InitialMessage fetches the message behind the initial response.
	InitialMessage(i *discordgo.Interaction) (*discordgo.Message, error)

	// FollowupCreate sends a followup webhook message.
	FollowupCreate(i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error)

	// FollowupEdit edits a followup webhook message.
	FollowupEdit(i *discordgo.Interaction, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error)

	// FollowupDelete deletes a followup webhook message.
	FollowupDelete(i *discordgo.Interaction, messageID string) error

	// ChannelSend sends a plain channel message (Rest fallback).
	ChannelSend(channelID string, send *discordgo.MessageSend) (*discordgo.Message, error)

	// ChannelEdit edits a plain channel message.
	ChannelEdit(edit *discordgo.MessageEdit) (*discordgo.Message, error)

	// ChannelDelete deletes a plain channel message.
	ChannelDelete(channelID, messageID string) error

	// ChannelMessage fetches a channel message.
	ChannelMessage(channelID, messageID string) (*discordgo.Message, error)
}

// sessionTransport is the production Transport backed by a discordgo session.
type sessionTransport struct {
	session *discordgo.Session
}

// NewSessionTransport wraps a discordgo session as a Transport.
func NewSessionTransport(s *discordgo.Session) Transport {
	return &sessionTransport{session: s}
}

func (t *sessionTransport) RespondInitial(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return t.session.InteractionRespond(i, resp)
}

func (t *sessionTransport) EditInitial(i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return t.session.InteractionResponseEdit(i, edit)
}

func (t *sessionTransport) DeleteInitial(i *discordgo.Interaction) error {
	return t.session.InteractionResponseDelete(i)
}

func (t *sessionTransport) InitialMessage(i *discordgo.Interaction) (*discordgo.Message, error) {
	return t.session.InteractionResponse(i)
}

func (t *sessionTransport) FollowupCreate(i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return t.session.FollowupMessageCreate(i, true, params)
}

func (t *sessionTransport) FollowupEdit(i *discordgo.Interaction, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return t.session.FollowupMessageEdit(i, messageID, edit)
}

func (t *sessionTransport) FollowupDelete(i *discordgo.Interaction, messageID string) error {
	return t.session.FollowupMessageDelete(i, messageID)
}

func (t *sessionTransport) ChannelSend(channelID string, send *discordgo.MessageSend) (*discordgo.Message, error) {
	return t.session.ChannelMessageSendComplex(channelID, send)
}

func (t *sessionTransport) ChannelEdit(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return t.session.ChannelMessageEditComplex(edit)
}

func (t *sessionTransport) ChannelDelete(channelID, messageID string) error {
	return t.session.ChannelMessageDelete(channelID, messageID)
}

func (t *sessionTransport) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	return t.session.ChannelMessage(channelID, messageID)
}

// IsNotFound reports whether err is a Discord 404. Deletes racing deletes
// are expected and get swallowed by the proxies.
func IsNotFound(err error) bool {
	return hasHTTPStatus(err, http.StatusNotFound)
}

// IsForbidden reports whether err is a Discord 403.
func IsForbidden(err error) bool {
	return hasHTTPStatus(err, http.StatusForbidden)
}

func hasHTTPStatus(err error, status int) bool {
	if err == nil {
		return false
	}
	if restErr, ok := err.(*discordgo.RESTError); ok {
		return restErr.Response != nil && restErr.Response.StatusCode == status
	}
	return false
}
