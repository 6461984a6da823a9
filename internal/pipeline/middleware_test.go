package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/interaction"
)

func TestDeferMiddlewareFastHandlerSkipsDefer(t *testing.T) {
	transport := interaction.NewFakeTransport()
	ctx := commandContext(transport, "music", "play")

	h := DeferMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		_, err := ctx.Respond(interaction.NewResponse("quick"))
		return err
	}))

	require.NoError(t, h.Handle(ctx))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.Equal(t, "quick", calls[0].Content)
}

func TestDeferMiddlewareSlowHandlerGetsDeferred(t *testing.T) {
	transport := interaction.NewFakeTransport()
	ctx := commandContext(transport, "music", "play")

	h := DeferMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		time.Sleep(DeferBudget + 200*time.Millisecond)
		_, err := ctx.Respond(interaction.NewResponse("slow result"))
		return err
	}))

	require.NoError(t, h.Handle(ctx))

	// The middleware acked the interaction, the handler edited the
	// placeholder; one visible message total.
	assert.Len(t, transport.CallsTo("RespondInitial"), 1)
	edits := transport.CallsTo("EditInitial")
	require.Len(t, edits, 1)
	assert.Equal(t, "slow result", edits[0].Content)
	assert.Equal(t, interaction.StateCreated, ctx.State())
}

func TestErrorMiddlewareShowsUserErrors(t *testing.T) {
	transport := interaction.NewFakeTransport()
	ctx := commandContext(transport, "music", "play")

	h := ErrorMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		return NewUserError("You are not in a voice channel.", ErrorCodeBadRequest)
	}))

	require.NoError(t, h.Handle(ctx))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.Equal(t, "You are not in a voice channel.", calls[0].Content)
}

func TestErrorMiddlewareHidesInternalErrors(t *testing.T) {
	transport := interaction.NewFakeTransport()
	ctx := commandContext(transport, "music", "play")

	h := ErrorMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		return NewInternalError(errors.New("pq: connection refused"))
	}))

	require.NoError(t, h.Handle(ctx))
	calls := transport.CallsTo("RespondInitial")
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Content, "pq:")
}

func TestErrorMiddlewarePassesNil(t *testing.T) {
	transport := interaction.NewFakeTransport()
	ctx := commandContext(transport, "music", "play")

	h := ErrorMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		return nil
	}))

	require.NoError(t, h.Handle(ctx))
	assert.Empty(t, transport.Calls())
}

func TestRecoveryMiddlewareCatchesPanics(t *testing.T) {
	ctx := commandContext(interaction.NewFakeTransport(), "music", "play")

	h := RecoveryMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		panic("index out of range")
	}))

	err := h.Handle(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")
}

func TestRecoveryMiddlewareKeepsErrorPanics(t *testing.T) {
	ctx := commandContext(interaction.NewFakeTransport(), "music", "play")
	sentinel := errors.New("boom")

	h := RecoveryMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		panic(sentinel)
	}))

	assert.ErrorIs(t, h.Handle(ctx), sentinel)
}

func TestGuildOnlyMiddleware(t *testing.T) {
	ctx := commandContext(interaction.NewFakeTransport(), "music", "play")
	ctx.Interaction.GuildID = ""

	h := GuildOnlyMiddleware()(HandlerFunc(func(ctx *interaction.Context) error {
		t.Fatal("handler must not run outside a guild")
		return nil
	}))

	err := h.Handle(ctx)
	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.True(t, handlerErr.ShowToUser)
}
