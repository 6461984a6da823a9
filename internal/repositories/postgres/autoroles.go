package postgres

import (
	"context"
	"database/sql"
	"time"
)

// AutoroleAssignment is one timed role grant.
type AutoroleAssignment struct {
	ID        int64
	GuildID   string
	UserID    string
	RoleID    string
	EventID   int
	ExpiresAt time.Time
}

// AutoroleRepo persists timed role assignments.
type AutoroleRepo struct{ db *sql.DB }

// NewAutoroleRepo creates an autorole repository.
func NewAutoroleRepo(db *sql.DB) *AutoroleRepo { return &AutoroleRepo{db: db} }

// Upsert inserts or refreshes the assignment for (guild, user, role,
// event) and returns its id.
func (r *AutoroleRepo) Upsert(ctx context.Context, a AutoroleAssignment) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO autorole_events (guild_id, user_id, role_id, event_id, expires_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (guild_id, user_id, role_id, event_id)
DO UPDATE SET expires_at = EXCLUDED.expires_at
RETURNING id
`, a.GuildID, a.UserID, a.RoleID, a.EventID, a.ExpiresAt).Scan(&id)
	return id, err
}

// Unexpired returns all assignments expiring after now, soonest first.
func (r *AutoroleRepo) Unexpired(ctx context.Context) ([]AutoroleAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, guild_id, user_id, role_id, event_id, expires_at
FROM autorole_events
WHERE expires_at > now()
ORDER BY expires_at
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AutoroleAssignment
	for rows.Next() {
		var a AutoroleAssignment
		if err := rows.Scan(&a.ID, &a.GuildID, &a.UserID, &a.RoleID, &a.EventID, &a.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes an assignment by id.
func (r *AutoroleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM autorole_events WHERE id = $1`, id)
	return err
}
