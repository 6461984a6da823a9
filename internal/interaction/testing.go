package interaction

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// FakeCall records one transport invocation for test assertions.
type FakeCall struct {
	Method string
	// ResponseType is set for RespondInitial calls.
	ResponseType discordgo.InteractionResponseType
	Content      string
	ChannelID    string
	MessageID    string
}

// FakeTransport is an in-memory Transport for tests. It records every
// call and fabricates message objects with sequential ids. Individual
// methods can be failed by setting the matching error field.
type FakeTransport struct {
	mu     sync.Mutex
	calls  []FakeCall
	nextID int

	RespondInitialErr error
	FollowupErr       error
	ChannelErr        error
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Calls returns a copy of the recorded calls.
func (f *FakeTransport) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls for one method.
func (f *FakeTransport) CallsTo(method string) []FakeCall {
	var out []FakeCall
	for _, call := range f.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (f *FakeTransport) record(call FakeCall) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.nextID++
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", f.nextID),
		ChannelID: call.ChannelID,
		Content:   call.Content,
	}
}

func (f *FakeTransport) RespondInitial(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	if f.RespondInitialErr != nil {
		return f.RespondInitialErr
	}
	content := ""
	if resp.Data != nil {
		content = resp.Data.Content
	}
	f.record(FakeCall{Method: "RespondInitial", ResponseType: resp.Type, Content: content})
	return nil
}

func (f *FakeTransport) EditInitial(i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	return f.record(FakeCall{Method: "EditInitial", Content: content}), nil
}

func (f *FakeTransport) DeleteInitial(i *discordgo.Interaction) error {
	f.record(FakeCall{Method: "DeleteInitial"})
	return nil
}

func (f *FakeTransport) InitialMessage(i *discordgo.Interaction) (*discordgo.Message, error) {
	return f.record(FakeCall{Method: "InitialMessage"}), nil
}

func (f *FakeTransport) FollowupCreate(i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	if f.FollowupErr != nil {
		return nil, f.FollowupErr
	}
	return f.record(FakeCall{Method: "FollowupCreate", Content: params.Content}), nil
}

func (f *FakeTransport) FollowupEdit(i *discordgo.Interaction, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	return f.record(FakeCall{Method: "FollowupEdit", MessageID: messageID, Content: content}), nil
}

func (f *FakeTransport) FollowupDelete(i *discordgo.Interaction, messageID string) error {
	f.record(FakeCall{Method: "FollowupDelete", MessageID: messageID})
	return nil
}

func (f *FakeTransport) ChannelSend(channelID string, send *discordgo.MessageSend) (*discordgo.Message, error) {
	if f.ChannelErr != nil {
		return nil, f.ChannelErr
	}
	return f.record(FakeCall{Method: "ChannelSend", ChannelID: channelID, Content: send.Content}), nil
}

func (f *FakeTransport) ChannelEdit(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	return f.record(FakeCall{Method: "ChannelEdit", ChannelID: edit.Channel, MessageID: edit.ID, Content: content}), nil
}

func (f *FakeTransport) ChannelDelete(channelID, messageID string) error {
	f.record(FakeCall{Method: "ChannelDelete", ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *FakeTransport) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	return f.record(FakeCall{Method: "ChannelMessage", ChannelID: channelID, MessageID: messageID}), nil
}
