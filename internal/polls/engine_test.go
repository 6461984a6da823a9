package polls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/repositories/postgres"
)

type fakePollStore struct {
	mu      sync.Mutex
	polls   map[string]postgres.Poll
	options map[string][]postgres.PollOption
	// votes[pollID][optionID] is a voter set, mirroring the composite
	// primary key that makes AddVote idempotent.
	votes    map[string]map[int]map[string]struct{}
	getCalls int
}

func newFakePollStore() *fakePollStore {
	return &fakePollStore{
		polls:   make(map[string]postgres.Poll),
		options: make(map[string][]postgres.PollOption),
		votes:   make(map[string]map[int]map[string]struct{}),
	}
}

func (f *fakePollStore) Create(_ context.Context, poll postgres.Poll, options []postgres.PollOption) ([]postgres.PollOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[poll.PollID] = poll
	out := make([]postgres.PollOption, len(options))
	for i, option := range options {
		option.OptionID = i + 1
		option.PollID = poll.PollID
		out[i] = option
	}
	f.options[poll.PollID] = out
	return out, nil
}

func (f *fakePollStore) SetMessageID(_ context.Context, pollID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	poll := f.polls[pollID]
	poll.MessageID = messageID
	f.polls[pollID] = poll
	return nil
}

func (f *fakePollStore) Get(_ context.Context, pollID string) (postgres.Poll, []postgres.PollOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	poll, ok := f.polls[pollID]
	if !ok {
		return postgres.Poll{}, nil, postgres.ErrNotFound
	}
	return poll, f.options[pollID], nil
}

func (f *fakePollStore) All(_ context.Context) ([]postgres.Poll, map[string][]postgres.PollOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var polls []postgres.Poll
	options := make(map[string][]postgres.PollOption)
	for id, poll := range f.polls {
		polls = append(polls, poll)
		options[id] = f.options[id]
	}
	return polls, options, nil
}

func (f *fakePollStore) AddVote(_ context.Context, pollID string, optionID int, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votes[pollID] == nil {
		f.votes[pollID] = make(map[int]map[string]struct{})
	}
	if f.votes[pollID][optionID] == nil {
		f.votes[pollID][optionID] = make(map[string]struct{})
	}
	f.votes[pollID][optionID][userID] = struct{}{}
	return nil
}

func (f *fakePollStore) RemoveVote(_ context.Context, pollID string, optionID int, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voters := f.votes[pollID][optionID]; voters != nil {
		delete(voters, userID)
	}
	return nil
}

func (f *fakePollStore) Votes(_ context.Context, pollID string) (map[int][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int][]string)
	for optionID, voters := range f.votes[pollID] {
		for userID := range voters {
			out[optionID] = append(out[optionID], userID)
		}
	}
	return out, nil
}

func (f *fakePollStore) Delete(_ context.Context, pollID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.polls, pollID)
	delete(f.options, pollID)
	delete(f.votes, pollID)
	return nil
}

func (f *fakePollStore) voteCount(pollID string, optionID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes[pollID][optionID])
}

func testOptions() []postgres.PollOption {
	return []postgres.PollOption{
		{OptionID: 1, PollID: "poll-1", Reaction: "🅰️", Description: "Option A"},
		{OptionID: 2, PollID: "poll-1", Reaction: "🅱️", Description: "Option B"},
	}
}

func newTestEngine(store Store) *Engine {
	return New(&Config{Session: &discordgo.Session{}, Store: store})
}

func reactionAdd(messageID, emoji, userID string) *discordgo.MessageReactionAdd {
	return &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     discordgo.Emoji{Name: emoji},
	}}
}

func reactionRemove(messageID, emoji, userID string) *discordgo.MessageReactionRemove {
	return &discordgo.MessageReactionRemove{MessageReaction: &discordgo.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     discordgo.Emoji{Name: emoji},
	}}
}

func TestCreateRejectsTooFewOptions(t *testing.T) {
	engine := newTestEngine(newFakePollStore())
	_, err := engine.Create(context.Background(), CreateOptions{
		Title:   "lonely",
		Options: []postgres.PollOption{{Reaction: "🅰️"}},
	})
	require.Error(t, err)
}

func TestReactionVoteRouting(t *testing.T) {
	store := newFakePollStore()
	store.polls["poll-1"] = postgres.Poll{PollID: "poll-1", MessageID: "msg-1"}
	store.options["poll-1"] = testOptions()

	engine := newTestEngine(store)
	engine.cache("poll-1", "msg-1", testOptions())

	session := &discordgo.Session{}
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🅰️", "user-1"))
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🅱️", "user-2"))

	assert.Equal(t, 1, store.voteCount("poll-1", 1))
	assert.Equal(t, 1, store.voteCount("poll-1", 2))
}

func TestReactionVoteIdempotent(t *testing.T) {
	store := newFakePollStore()
	engine := newTestEngine(store)
	engine.cache("poll-1", "msg-1", testOptions())

	session := &discordgo.Session{}
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🅰️", "user-1"))
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🅰️", "user-1"))

	assert.Equal(t, 1, store.voteCount("poll-1", 1))
}

func TestReactionRemoveRetractsVote(t *testing.T) {
	store := newFakePollStore()
	engine := newTestEngine(store)
	engine.cache("poll-1", "msg-1", testOptions())

	session := &discordgo.Session{}
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🅰️", "user-1"))
	engine.HandleReactionRemove(session, reactionRemove("msg-1", "🅰️", "user-1"))

	assert.Equal(t, 0, store.voteCount("poll-1", 1))
}

func TestUnknownReactionsIgnored(t *testing.T) {
	store := newFakePollStore()
	engine := newTestEngine(store)
	engine.cache("poll-1", "msg-1", testOptions())

	session := &discordgo.Session{}
	engine.HandleReactionAdd(session, reactionAdd("other-message", "🅰️", "user-1"))
	engine.HandleReactionAdd(session, reactionAdd("msg-1", "🤷", "user-1"))

	assert.Equal(t, 0, store.voteCount("poll-1", 1))
}

func TestRenderEmbedAnonymousUsesBars(t *testing.T) {
	store := newFakePollStore()
	poll := postgres.Poll{PollID: "poll-1", Title: "Anon", Anonymous: true, Expires: time.Now().Add(time.Hour)}
	store.polls["poll-1"] = poll
	store.options["poll-1"] = testOptions()
	require.NoError(t, store.AddVote(context.Background(), "poll-1", 1, "user-1"))

	engine := newTestEngine(store)
	embed, err := engine.renderEmbed(context.Background(), poll, testOptions())
	require.NoError(t, err)
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[0].Value, "█")
	assert.NotContains(t, embed.Fields[0].Value, "user-1")
}

func TestRenderEmbedPublicListsVoters(t *testing.T) {
	store := newFakePollStore()
	poll := postgres.Poll{PollID: "poll-1", Title: "Public", Expires: time.Now().Add(time.Hour)}
	store.polls["poll-1"] = poll
	store.options["poll-1"] = testOptions()
	require.NoError(t, store.AddVote(context.Background(), "poll-1", 1, "user-1"))

	engine := newTestEngine(store)
	embed, err := engine.renderEmbed(context.Background(), poll, testOptions())
	require.NoError(t, err)
	assert.Contains(t, embed.Fields[0].Value, "<@user-1>")
	assert.Equal(t, "nobody yet", embed.Fields[1].Value)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", bar(0, 0))
	assert.Equal(t, "░░░░░░░░░░", bar(0, 4))
	assert.Equal(t, "█████░░░░░", bar(2, 4))
	assert.Equal(t, "██████████", bar(4, 4))
}

func TestFinalizeMissingPollIsSilent(t *testing.T) {
	store := newFakePollStore()
	engine := newTestEngine(store)

	engine.finalize("gone")
	assert.Equal(t, 1, store.getCalls)

	// The finalizing set makes a second attempt a no-op.
	engine.finalize("gone")
	assert.Equal(t, 1, store.getCalls)
}
