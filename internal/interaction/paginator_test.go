package interaction

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/interaction/customid"
)

type fakeRenderer struct {
	pages int
}

func (f *fakeRenderer) RenderPage(page int) (*Response, error) {
	return NewResponse(fmt.Sprintf("page %d", page)), nil
}

func (f *fakeRenderer) PageCount() int { return f.pages }

func paginatorClick(transport Transport, typeTag, action string, page int, authorID, clickerID string) *Context {
	id := customid.MustEncode(&customid.State{
		Type:     typeTag,
		CustomID: action,
		Page:     page,
		AuthorID: authorID,
	})
	return NewContext(transport, &discordgo.Session{}, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        snowflakeAt(time.Now()),
			Type:      discordgo.InteractionMessageComponent,
			ChannelID: "chan-1",
			GuildID:   "guild-1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: clickerID}},
			Data:      discordgo.MessageComponentInteractionData{CustomID: id},
			Message:   &discordgo.Message{ID: "widget-msg"},
		},
	})
}

func TestPaginatorRespondAddsNavigation(t *testing.T) {
	transport := NewFakeTransport()
	paginator := NewPaginator("tags", &fakeRenderer{pages: 5})
	ctx := newTestContext(transport)

	require.NoError(t, paginator.Respond(ctx, 0))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.Equal(t, "page 0", calls[0].Content)
}

func TestPaginatorCanHandle(t *testing.T) {
	paginator := NewPaginator("tags", &fakeRenderer{pages: 3})

	assert.True(t, paginator.CanHandle(
		paginatorClick(NewFakeTransport(), "tags", "next", 0, "user-1", "user-1")))
	assert.False(t, paginator.CanHandle(
		paginatorClick(NewFakeTransport(), "autoroles", "next", 0, "user-1", "user-1")))

	plain := componentContext(NewFakeTransport(), "music:skip1", "user-1")
	assert.False(t, paginator.CanHandle(plain))
}

func TestPaginatorNavigation(t *testing.T) {
	tests := []struct {
		name   string
		action string
		page   int
		want   string
	}{
		{"next", "next", 1, "page 2"},
		{"prev", "prev", 2, "page 1"},
		{"first", "first", 4, "page 0"},
		{"last", "last", 0, "page 4"},
		{"next clamps at end", "next", 4, "page 4"},
		{"prev clamps at start", "prev", 0, "page 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewFakeTransport()
			paginator := NewPaginator("tags", &fakeRenderer{pages: 5})
			ctx := paginatorClick(transport, "tags", tt.action, tt.page, "user-1", "user-1")

			require.NoError(t, paginator.Handle(ctx))
			calls := transport.CallsTo("RespondInitial")
			require.Len(t, calls, 1)
			assert.Equal(t, discordgo.InteractionResponseUpdateMessage, calls[0].ResponseType)
			assert.Equal(t, tt.want, calls[0].Content)
		})
	}
}

func TestPaginatorRejectsOtherUsers(t *testing.T) {
	transport := NewFakeTransport()
	paginator := NewPaginator("tags", &fakeRenderer{pages: 3})
	ctx := paginatorClick(transport, "tags", "next", 0, "owner", "intruder")

	require.NoError(t, paginator.Handle(ctx))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Content, "someone else")
}

func TestPaginatorStaleVersion(t *testing.T) {
	transport := NewFakeTransport()
	paginator := NewPaginator("tags", &fakeRenderer{pages: 3})

	stale := fmt.Sprintf(`{"v":%d,"t":"tags","cid":"next","p":0}`, customid.Version+1)
	ctx := NewContext(transport, &discordgo.Session{}, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        snowflakeAt(time.Now()),
			Type:      discordgo.InteractionMessageComponent,
			ChannelID: "chan-1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "user-1"}},
			Data:      discordgo.MessageComponentInteractionData{CustomID: stale},
		},
	})

	require.NoError(t, paginator.Handle(ctx))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Content, "too old")
}
