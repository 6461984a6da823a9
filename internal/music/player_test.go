package music

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
	"github.com/KuramaSyu/inu-sub000/internal/music/resolver"
)

type fakeNode struct {
	mu       sync.Mutex
	plays    []string
	pauses   []bool
	stops    int
	destroys int
	seeks    []time.Duration
	playErr  error
}

func (f *fakeNode) Play(_ context.Context, track lavalink.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays = append(f.plays, track.Info.Title)
	return nil
}

func (f *fakeNode) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeNode) SetPaused(_ context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, paused)
	return nil
}

func (f *fakeNode) Seek(_ context.Context, position time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, position)
	return nil
}

func (f *fakeNode) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	return nil
}

func (f *fakeNode) played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.plays))
	copy(out, f.plays)
	return out
}

func (f *fakeNode) pausedCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.pauses))
	copy(out, f.pauses)
	return out
}

func (f *fakeNode) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroys
}

type fakeVoice struct {
	mu          sync.Mutex
	userChannel string
	joins       []string
	leaves      int
}

func (f *fakeVoice) UserChannel(string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userChannel, nil
}

func (f *fakeVoice) Join(_, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, channelID)
	return nil
}

func (f *fakeVoice) Rejoin(guildID, channelID string) error {
	return f.Join(guildID, channelID)
}

func (f *fakeVoice) Leave(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeVoice) leaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

type fixedLoader struct {
	result *lavalink.LoadResult
}

func (f *fixedLoader) LoadTracks(context.Context, string) (*lavalink.LoadResult, error) {
	return f.result, nil
}

func newTestPlayer(node AudioGateway, voice VoiceConnector) *Player {
	return &Player{
		guildID:       "guild-1",
		session:       &discordgo.Session{},
		voice:         voice,
		node:          node,
		lonelyTimeout: LonelyTimeout,
	}
}

func playerWithResolver(node AudioGateway, voice VoiceConnector, track Track) *Player {
	p := newTestPlayer(node, voice)
	p.resolver = resolver.New(&resolver.Config{
		Loader: &fixedLoader{result: &lavalink.LoadResult{
			Kind:   lavalink.LoadKindTrack,
			Tracks: []lavalink.Track{track.Source},
		}},
	})
	return p
}

func playInteraction(userID string) *interaction.Context {
	id := fmt.Sprintf("%d", (time.Now().UnixMilli()-1420070400000)<<22)
	return interaction.NewContext(interaction.NewFakeTransport(), &discordgo.Session{}, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      id,
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
		},
	})
}

func TestPlayJoinsAndStartsFirstTrack(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{userChannel: "vc-1"}
	p := playerWithResolver(node, voice, testTrack(7))

	reports, err := p.Play(context.Background(), playInteraction("user-1"), "https://example.com/7")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "track 7", reports[0].Title)
	assert.Equal(t, []string{"vc-1"}, voice.joins)
	assert.Equal(t, []string{"track 7"}, node.played())
	assert.Len(t, p.Queue(), 1)
}

func TestPlayRequiresCallerInVoice(t *testing.T) {
	p := playerWithResolver(&fakeNode{}, &fakeVoice{}, testTrack(0))

	_, err := p.Play(context.Background(), playInteraction("user-1"), "https://example.com/0")
	assert.ErrorIs(t, err, ErrNotInVoice)
}

func TestPlayResumesSavedQueue(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{userChannel: "vc-1"}
	p := playerWithResolver(node, voice, testTrack(9))
	// Queue preserved across an earlier leave, interrupted track at the
	// head, no voice connection.
	p.q.Append(testTrack(0))

	_, err := p.Play(context.Background(), playInteraction("user-1"), "https://example.com/9")
	require.NoError(t, err)

	// The saved head resumes on the fresh session; the new track waits
	// its turn.
	assert.Equal(t, []string{"vc-1"}, voice.joins)
	assert.Equal(t, []string{"track 0"}, node.played())
	queue := p.Queue()
	require.Len(t, queue, 2)
	assert.Equal(t, "track 0", queue[0].Title())
	assert.Equal(t, "track 9", queue[1].Title())
}

func TestPlayWhileStreamingOnlyQueues(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{userChannel: "vc-1"}
	p := playerWithResolver(node, voice, testTrack(3))
	p.voiceChannelID = "vc-1"
	p.playing = true
	p.q.Append(testTrack(0))

	_, err := p.Play(context.Background(), playInteraction("user-1"), "https://example.com/3")
	require.NoError(t, err)
	assert.Empty(t, node.played())
	assert.Len(t, p.Queue(), 2)
}

func TestSkipPlaysNextTrack(t *testing.T) {
	node := &fakeNode{}
	p := newTestPlayer(node, &fakeVoice{})
	p.voiceChannelID = "vc-1"
	p.playing = true
	fillQueue(&p.q, 3)

	require.NoError(t, p.Skip(context.Background(), 1))
	assert.Equal(t, []string{"track 1"}, node.played())
	assert.Len(t, p.Queue(), 2)
}

func TestSkipPastEndLeavesAndDestroys(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{}
	p := newTestPlayer(node, voice)
	p.voiceChannelID = "vc-1"
	p.playing = true
	p.cleanQueueOnLeave = true
	var removed []string
	p.onDestroy = func(guildID string) { removed = append(removed, guildID) }
	fillQueue(&p.q, 2)

	require.NoError(t, p.Skip(context.Background(), 5))
	assert.Empty(t, node.played())
	assert.Equal(t, 1, voice.leaveCount())
	assert.Equal(t, 1, node.destroyCount())
	assert.Equal(t, []string{"guild-1"}, removed)
	assert.Empty(t, p.Queue())
}

func TestConcurrentSkipsReachGatewayInOrder(t *testing.T) {
	node := &fakeNode{}
	p := newTestPlayer(node, &fakeVoice{})
	p.voiceChannelID = "vc-1"
	p.playing = true
	fillQueue(&p.q, 5)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Skip(context.Background(), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"track 1", "track 2"}, node.played())
}

func TestLonelyPauseCancelledByHumanJoin(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{}
	p := newTestPlayer(node, voice)
	p.voiceChannelID = "vc-1"
	p.playing = true
	p.lonelyTimeout = 40 * time.Millisecond

	ctx := context.Background()
	p.OnBotLonely(ctx)
	assert.True(t, p.Paused())

	p.OnHumanJoin(ctx)
	assert.False(t, p.Paused())
	assert.Equal(t, []bool{true, false}, node.pausedCalls())

	// The cancelled timer must not fire a leave.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, voice.leaveCount())
	assert.Equal(t, "vc-1", p.VoiceChannelID())
}

func TestLonelyTimeoutLeavesSavingQueue(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{}
	p := newTestPlayer(node, voice)
	p.voiceChannelID = "vc-1"
	p.playing = true
	p.cleanQueueOnLeave = true
	p.lonelyTimeout = 20 * time.Millisecond
	fillQueue(&p.q, 2)

	p.OnBotLonely(context.Background())

	require.Eventually(t, func() bool {
		return voice.leaveCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, p.VoiceChannelID())
	assert.False(t, p.CleanQueueOnLeave())
	assert.Len(t, p.Queue(), 2)
	assert.Equal(t, 0, node.destroyCount())
}

func TestTrackEndAdvances(t *testing.T) {
	node := &fakeNode{}
	p := newTestPlayer(node, &fakeVoice{})
	p.voiceChannelID = "vc-1"
	p.playing = true
	fillQueue(&p.q, 2)

	p.OnTrackEnd(context.Background(), "finished")
	assert.Equal(t, []string{"track 1"}, node.played())

	// A replaced track means a skip already acted.
	p.OnTrackEnd(context.Background(), "replaced")
	assert.Equal(t, []string{"track 1"}, node.played())
	assert.Len(t, p.Queue(), 1)
}

func TestTrackEndOnLastTrackLeaves(t *testing.T) {
	node := &fakeNode{}
	voice := &fakeVoice{}
	p := newTestPlayer(node, voice)
	p.voiceChannelID = "vc-1"
	p.playing = true
	p.cleanQueueOnLeave = true
	fillQueue(&p.q, 1)

	p.OnTrackEnd(context.Background(), "finished")
	assert.Equal(t, 1, voice.leaveCount())
	assert.Equal(t, 1, node.destroyCount())
	assert.Empty(t, p.Queue())
}

func TestRegistryGetReturnsSameInstance(t *testing.T) {
	client, err := lavalink.NewClient(&lavalink.Config{
		Address:  "localhost:2333",
		Password: "secret",
		UserID:   "42",
	})
	require.NoError(t, err)
	registry := NewRegistry(&RegistryConfig{
		Session: &discordgo.Session{},
		Pool:    lavalink.NewPool(client),
	})

	_, ok := registry.Lookup("guild-1")
	assert.False(t, ok)

	first := registry.Get("guild-1")
	second := registry.Get("guild-1")
	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())

	other := registry.Get("guild-2")
	assert.NotSame(t, first, other)
}
