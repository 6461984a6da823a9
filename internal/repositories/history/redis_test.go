package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryJSON(t *testing.T, title, uri string) string {
	t.Helper()
	data, err := json.Marshal(Entry{Title: title, URI: uri, PlayedAt: time.Now().UTC()})
	require.NoError(t, err)
	return string(data)
}

func TestNewRedisRepositoryRequiresClient(t *testing.T) {
	assert.Panics(t, func() {
		NewRedisRepository(&RedisRepoConfig{})
	})
}

func TestRecord(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})

	mock.Regexp().ExpectLPush("music:history:guild-1", `\{.*"title":"A Song".*\}`).SetVal(1)
	mock.ExpectLTrim("music:history:guild-1", 0, 199).SetVal("OK")

	err := repo.Record(context.Background(), "guild-1", "A Song", "https://example.com/song")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRequiresGuild(t *testing.T) {
	client, _ := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})

	err := repo.Record(context.Background(), "", "title", "uri")
	assert.Error(t, err)
}

func TestRecentSkipsUndecodableEntries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})

	mock.ExpectLRange("music:history:guild-1", 0, 9).SetVal([]string{
		entryJSON(t, "newest", "https://example.com/1"),
		"not json",
		entryJSON(t, "oldest", "https://example.com/2"),
	})

	entries, err := repo.Recent(context.Background(), "guild-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newest", entries[0].Title)
	assert.Equal(t, "oldest", entries[1].Title)
}

func TestRecentClampsLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client, MaxEntries: 50})

	mock.ExpectLRange("music:history:guild-1", 0, 49).SetVal(nil)

	_, err := repo.Recent(context.Background(), "guild-1", 9000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFindsNewestMatch(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})

	mock.ExpectLRange("music:history:guild-1", 0, 199).SetVal([]string{
		entryJSON(t, "Daft Punk - One More Time", "https://example.com/new"),
		entryJSON(t, "Daft Punk - Around the World", "https://example.com/old"),
	})

	uri, err := repo.Search(context.Background(), "guild-1", "daft punk")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", uri)
}

func TestSearchNoMatch(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(&RedisRepoConfig{Client: client})

	mock.ExpectLRange("music:history:guild-1", 0, 199).SetVal([]string{
		entryJSON(t, "something else", "https://example.com/x"),
	})

	_, err := repo.Search(context.Background(), "guild-1", "daft punk")
	assert.ErrorIs(t, err, ErrNoMatch)
}
