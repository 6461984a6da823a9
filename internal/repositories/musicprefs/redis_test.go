package musicprefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/testutils"
)

func TestNewRedisRepositoryRequiresClient(t *testing.T) {
	assert.Panics(t, func() {
		NewRedisRepository(&RedisRepoConfig{})
	})
}

func TestSearchEngineRoundTrip(t *testing.T) {
	client := testutils.CreateTestRedisClientOrSkip(t)
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})
	ctx := context.Background()

	// Unset guilds fall back to the default engine.
	engine, err := repo.SearchEngine(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, engine)

	require.NoError(t, repo.SetSearchEngine(ctx, "guild-1", "youtube"))
	engine, err = repo.SearchEngine(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "youtube", engine)

	// Other guilds are unaffected.
	engine, err = repo.SearchEngine(ctx, "guild-2")
	require.NoError(t, err)
	assert.Empty(t, engine)
}

func TestSetSearchEngineOverwrites(t *testing.T) {
	client := testutils.CreateTestRedisClientOrSkip(t)
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})
	ctx := context.Background()

	require.NoError(t, repo.SetSearchEngine(ctx, "guild-1", "youtube"))
	require.NoError(t, repo.SetSearchEngine(ctx, "guild-1", "soundcloud"))

	engine, err := repo.SearchEngine(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "soundcloud", engine)
}
