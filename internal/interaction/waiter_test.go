package interaction

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func componentContext(transport Transport, customID, userID string) *Context {
	return NewContext(transport, &discordgo.Session{}, &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        snowflakeAt(time.Now()),
			Type:      discordgo.InteractionMessageComponent,
			ChannelID: "chan-1",
			GuildID:   "guild-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID},
			},
			Data: discordgo.MessageComponentInteractionData{CustomID: customID},
		},
	})
}

func TestWaiterDeliversMatchingInteraction(t *testing.T) {
	waiter := NewWaiter()
	ch, cancel := waiter.Register("ask:abc:", nil)
	defer cancel()

	ctx := componentContext(NewFakeTransport(), "ask:abc:2", "user-1")
	require.True(t, waiter.Offer(ctx))

	select {
	case got := <-ch:
		assert.Same(t, ctx, got)
	default:
		t.Fatal("expected the context to be delivered")
	}
	assert.Equal(t, 0, waiter.Pending())
}

func TestWaiterIgnoresUnrelatedCustomIDs(t *testing.T) {
	waiter := NewWaiter()
	_, cancel := waiter.Register("ask:abc:", nil)
	defer cancel()

	ctx := componentContext(NewFakeTransport(), "music:skip1", "user-1")
	assert.False(t, waiter.Offer(ctx))
	assert.Equal(t, 1, waiter.Pending())
}

func TestWaiterIgnoresCommands(t *testing.T) {
	waiter := NewWaiter()
	_, cancel := waiter.Register("ask:abc:", nil)
	defer cancel()

	ctx := NewContext(NewFakeTransport(), &discordgo.Session{}, newCommandInteraction(snowflakeAt(time.Now())))
	assert.False(t, waiter.Offer(ctx))
}

func TestWaiterRejectsWrongUser(t *testing.T) {
	waiter := NewWaiter()
	ch, cancel := waiter.Register("ask:abc:", []string{"user-1"})
	defer cancel()

	transport := NewFakeTransport()
	intruder := componentContext(transport, "ask:abc:1", "someone-else")

	// Consumed so the router never sees it, but the wait stays parked.
	assert.True(t, waiter.Offer(intruder))
	assert.Equal(t, 1, waiter.Pending())
	select {
	case <-ch:
		t.Fatal("wrong user must not satisfy the wait")
	default:
	}
	require.Len(t, transport.CallsTo("RespondInitial"), 1)

	owner := componentContext(NewFakeTransport(), "ask:abc:1", "user-1")
	assert.True(t, waiter.Offer(owner))
	select {
	case got := <-ch:
		assert.Same(t, owner, got)
	default:
		t.Fatal("owner click must satisfy the wait")
	}
}

func TestWaiterCancelIsIdempotent(t *testing.T) {
	waiter := NewWaiter()
	_, cancel := waiter.Register("ask:abc:", nil)
	cancel()
	cancel()
	assert.Equal(t, 0, waiter.Pending())

	ctx := componentContext(NewFakeTransport(), "ask:abc:1", "user-1")
	assert.False(t, waiter.Offer(ctx))
}
