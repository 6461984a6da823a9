package postgres

import (
	"context"
	"database/sql"
)

// GuildRepo maintains the canonical guild list.
type GuildRepo struct{ db *sql.DB }

// NewGuildRepo creates a guild repository.
func NewGuildRepo(db *sql.DB) *GuildRepo { return &GuildRepo{db: db} }

// Ensure records a guild; knowing it already is a no-op.
func (r *GuildRepo) Ensure(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guilds (guild_id) VALUES ($1) ON CONFLICT DO NOTHING`, guildID)
	return err
}

// Remove forgets a guild.
func (r *GuildRepo) Remove(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM guilds WHERE guild_id = $1`, guildID)
	return err
}

// All lists every known guild id.
func (r *GuildRepo) All(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT guild_id FROM guilds ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
