package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/repositories/postgres"
	"github.com/KuramaSyu/inu-sub000/internal/testutils"
)

func TestTagRepoLifecycle(t *testing.T) {
	db := testutils.CreateTestDatabaseOrSkip(t)
	repo := postgres.NewTagRepo(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, postgres.Tag{
		Key:       "anthem",
		Values:    []string{"https://example.com/anthem", "https://example.com/alt"},
		AuthorIDs: []int64{111},
		GuildIDs:  []int64{222},
		Aliases:   []string{"hymn"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	tag, err := repo.GetByKey(ctx, "222", "anthem")
	require.NoError(t, err)
	assert.Equal(t, id, tag.TagID)
	assert.Equal(t, []string{"https://example.com/anthem", "https://example.com/alt"}, tag.Values)
	assert.Equal(t, []int64{222}, tag.GuildIDs)

	// Aliases resolve like keys.
	tag, err = repo.GetByKey(ctx, "222", "hymn")
	require.NoError(t, err)
	assert.Equal(t, id, tag.TagID)

	// Other guilds cannot see a guild-scoped tag.
	_, err = repo.GetByKey(ctx, "999", "anthem")
	assert.ErrorIs(t, err, postgres.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.GetByKey(ctx, "222", "anthem")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestTagRepoGlobalTags(t *testing.T) {
	db := testutils.CreateTestDatabaseOrSkip(t)
	repo := postgres.NewTagRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, postgres.Tag{
		Key:    "everywhere",
		Values: []string{"https://example.com/global"},
	})
	require.NoError(t, err)

	// An empty guild_ids array means visible from any guild.
	tag, err := repo.GetByKey(ctx, "12345", "everywhere")
	require.NoError(t, err)
	assert.Equal(t, "everywhere", tag.Key)
}

func TestTagRepoDuplicateKeyRejected(t *testing.T) {
	db := testutils.CreateTestDatabaseOrSkip(t)
	repo := postgres.NewTagRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, postgres.Tag{
		Key: "dupe", Values: []string{"v"}, GuildIDs: []int64{222},
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, postgres.Tag{
		Key: "dupe", Values: []string{"v2"}, GuildIDs: []int64{222},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestTagRepoFirstValueBumpsUsage(t *testing.T) {
	db := testutils.CreateTestDatabaseOrSkip(t)
	repo := postgres.NewTagRepo(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, postgres.Tag{
		Key: "counted", Values: []string{"https://example.com/1"}, GuildIDs: []int64{222},
	})
	require.NoError(t, err)

	value, err := repo.FirstValue(ctx, "222", "counted")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1", value)

	tag, err := repo.GetByKey(ctx, "222", "counted")
	require.NoError(t, err)
	assert.Equal(t, id, tag.TagID)
	assert.Equal(t, 1, tag.Uses)
}

func TestTagRepoUpdate(t *testing.T) {
	db := testutils.CreateTestDatabaseOrSkip(t)
	repo := postgres.NewTagRepo(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, postgres.Tag{
		Key: "mutable", Values: []string{"old"}, GuildIDs: []int64{222},
	})
	require.NoError(t, err)

	err = repo.Update(ctx, postgres.Tag{
		TagID: id, Values: []string{"new"}, GuildIDs: []int64{222}, Aliases: []string{"alias"},
	})
	require.NoError(t, err)

	tag, err := repo.GetByKey(ctx, "222", "mutable")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, tag.Values)
	assert.Equal(t, []string{"alias"}, tag.Aliases)

	err = repo.Update(ctx, postgres.Tag{TagID: 999999, Values: []string{"x"}})
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}
