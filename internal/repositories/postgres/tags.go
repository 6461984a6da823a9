package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pq "github.com/lib/pq"
)

// Tag is the persisted tag row. Value, authors, guilds and aliases are
// postgres arrays.
type Tag struct {
	TagID       int64
	Key         string
	Values      []string
	AuthorIDs   []int64
	GuildIDs    []int64
	Aliases     []string
	LastUse     time.Time
	Uses        int
	Type        int
	InfoVisible bool
}

// TagRepo persists media tags.
type TagRepo struct{ db *sql.DB }

// NewTagRepo creates a tag repository.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

// FirstValue returns the first stored value of a tag visible in the
// guild, matching key or alias, and bumps the usage counters. It
// implements the resolver's tag store.
func (r *TagRepo) FirstValue(ctx context.Context, guildID, key string) (string, error) {
	tag, err := r.GetByKey(ctx, guildID, key)
	if err != nil {
		return "", err
	}
	if len(tag.Values) == 0 {
		return "", fmt.Errorf("tag %q has no value", key)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE tags SET uses = uses + 1, last_use = now() WHERE tag_id = $1`, tag.TagID)
	if err != nil {
		return "", err
	}
	return tag.Values[0], nil
}

// GetByKey finds a tag by key or alias, scoped to the guild or global
// (empty guild_ids array).
func (r *TagRepo) GetByKey(ctx context.Context, guildID, key string) (Tag, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT tag_id, tag_key, tag_value, author_ids, guild_ids, aliases, last_use, uses, type, info_visible
FROM tags
WHERE (tag_key = $1 OR $1 = ANY(aliases))
  AND (guild_ids = '{}' OR $2::BIGINT = ANY(guild_ids))
ORDER BY uses DESC
LIMIT 1
`, key, sqlGuildID(guildID))
	return scanTag(row)
}

// Create inserts a tag; a duplicate key within a shared guild fails.
func (r *TagRepo) Create(ctx context.Context, tag Tag) (int64, error) {
	existing, err := r.GetByKey(ctx, guildOf(tag), tag.Key)
	if err == nil && existing.TagID != 0 {
		return 0, fmt.Errorf("tag %q already exists", tag.Key)
	}
	if err != nil && err != ErrNotFound {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO tags (tag_key, tag_value, author_ids, guild_ids, aliases, uses, type, info_visible)
VALUES ($1,$2,$3,$4,$5,0,$6,$7)
RETURNING tag_id
`, tag.Key, pq.Array(tag.Values), pq.Array(tag.AuthorIDs), pq.Array(tag.GuildIDs),
		pq.Array(tag.Aliases), tag.Type, tag.InfoVisible).Scan(&id)
	return id, err
}

// Update replaces the mutable fields of a tag.
func (r *TagRepo) Update(ctx context.Context, tag Tag) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE tags
SET tag_value = $2, author_ids = $3, guild_ids = $4, aliases = $5, type = $6, info_visible = $7
WHERE tag_id = $1
`, tag.TagID, pq.Array(tag.Values), pq.Array(tag.AuthorIDs), pq.Array(tag.GuildIDs),
		pq.Array(tag.Aliases), tag.Type, tag.InfoVisible)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return err
}

// Delete removes a tag.
func (r *TagRepo) Delete(ctx context.Context, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE tag_id = $1`, tagID)
	return err
}

func scanTag(row *sql.Row) (Tag, error) {
	var tag Tag
	var values, aliases pq.StringArray
	var authors, guilds pq.Int64Array
	err := row.Scan(&tag.TagID, &tag.Key, &values, &authors, &guilds, &aliases,
		&tag.LastUse, &tag.Uses, &tag.Type, &tag.InfoVisible)
	if err == sql.ErrNoRows {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, err
	}
	tag.Values = values
	tag.Aliases = aliases
	tag.AuthorIDs = authors
	tag.GuildIDs = guilds
	return tag, nil
}

// sqlGuildID converts a snowflake to the bigint the array columns use.
// Non-numeric input maps to zero, which matches nothing.
func sqlGuildID(guildID string) int64 {
	var id int64
	fmt.Sscan(guildID, &id)
	return id
}

func guildOf(tag Tag) string {
	if len(tag.GuildIDs) == 0 {
		return ""
	}
	return fmt.Sprint(tag.GuildIDs[0])
}
