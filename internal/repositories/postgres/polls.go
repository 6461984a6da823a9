package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Poll is the persisted poll row.
type Poll struct {
	PollID      string
	Title       string
	Description string
	Anonymous   bool
	Starts      time.Time
	Expires     time.Time
	CreatorID   string
	GuildID     string
	ChannelID   string
	MessageID   string // empty until published
	PollType    int
}

// PollOption is one votable option of a poll.
type PollOption struct {
	OptionID    int
	PollID      string
	Description string
	Reaction    string
}

// PollRepo persists polls, their options and votes.
type PollRepo struct{ db *sql.DB }

// NewPollRepo creates a poll repository.
func NewPollRepo(db *sql.DB) *PollRepo { return &PollRepo{db: db} }

// Create inserts the poll and its options in one transaction and
// returns the options with their assigned ids.
func (r *PollRepo) Create(ctx context.Context, poll Poll, options []PollOption) ([]PollOption, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO polls (poll_id, title, description, anonymous, starts, expires, creator_id, guild_id, channel_id, message_id, poll_type)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11)
`, poll.PollID, poll.Title, poll.Description, poll.Anonymous, poll.Starts, poll.Expires,
		poll.CreatorID, poll.GuildID, poll.ChannelID, poll.MessageID, poll.PollType)
	if err != nil {
		return nil, fmt.Errorf("insert poll: %w", err)
	}

	out := make([]PollOption, 0, len(options))
	for _, option := range options {
		var id int
		err := tx.QueryRowContext(ctx, `
INSERT INTO poll_options (poll_id, description, reaction)
VALUES ($1,$2,$3)
RETURNING option_id
`, poll.PollID, option.Description, option.Reaction).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert option: %w", err)
		}
		option.OptionID = id
		option.PollID = poll.PollID
		out = append(out, option)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetMessageID marks the poll as published.
func (r *PollRepo) SetMessageID(ctx context.Context, pollID, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE polls SET message_id = $2 WHERE poll_id = $1`, pollID, messageID)
	return err
}

// Get returns one poll with its options.
func (r *PollRepo) Get(ctx context.Context, pollID string) (Poll, []PollOption, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT poll_id, title, description, anonymous, starts, expires, creator_id, guild_id, channel_id, COALESCE(message_id,''), poll_type
FROM polls WHERE poll_id = $1
`, pollID)
	var poll Poll
	err := row.Scan(&poll.PollID, &poll.Title, &poll.Description, &poll.Anonymous, &poll.Starts,
		&poll.Expires, &poll.CreatorID, &poll.GuildID, &poll.ChannelID, &poll.MessageID, &poll.PollType)
	if err == sql.ErrNoRows {
		return Poll{}, nil, ErrNotFound
	}
	if err != nil {
		return Poll{}, nil, err
	}
	options, err := r.options(ctx, pollID)
	return poll, options, err
}

// All returns every stored poll with options; finalised polls are
// deleted, so this is the startup-rescan set.
func (r *PollRepo) All(ctx context.Context) ([]Poll, map[string][]PollOption, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT poll_id, title, description, anonymous, starts, expires, creator_id, guild_id, channel_id, COALESCE(message_id,''), poll_type
FROM polls ORDER BY expires
`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var polls []Poll
	for rows.Next() {
		var poll Poll
		if err := rows.Scan(&poll.PollID, &poll.Title, &poll.Description, &poll.Anonymous, &poll.Starts,
			&poll.Expires, &poll.CreatorID, &poll.GuildID, &poll.ChannelID, &poll.MessageID, &poll.PollType); err != nil {
			return nil, nil, err
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	options := make(map[string][]PollOption, len(polls))
	for _, poll := range polls {
		opts, err := r.options(ctx, poll.PollID)
		if err != nil {
			return nil, nil, err
		}
		options[poll.PollID] = opts
	}
	return polls, options, nil
}

func (r *PollRepo) options(ctx context.Context, pollID string) ([]PollOption, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT option_id, poll_id, description, reaction
FROM poll_options WHERE poll_id = $1 ORDER BY option_id
`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []PollOption
	for rows.Next() {
		var option PollOption
		if err := rows.Scan(&option.OptionID, &option.PollID, &option.Description, &option.Reaction); err != nil {
			return nil, err
		}
		options = append(options, option)
	}
	return options, rows.Err()
}

// AddVote records a vote; repeating it is a no-op.
func (r *PollRepo) AddVote(ctx context.Context, pollID string, optionID int, userID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO poll_votes (poll_id, option_id, user_id)
VALUES ($1,$2,$3)
ON CONFLICT DO NOTHING
`, pollID, optionID, userID)
	return err
}

// RemoveVote deletes a vote; removing an absent vote is a no-op.
func (r *PollRepo) RemoveVote(ctx context.Context, pollID string, optionID int, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM poll_votes WHERE poll_id = $1 AND option_id = $2 AND user_id = $3`,
		pollID, optionID, userID)
	return err
}

// Votes returns voter ids per option.
func (r *PollRepo) Votes(ctx context.Context, pollID string) (map[int][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT option_id, user_id FROM poll_votes WHERE poll_id = $1 ORDER BY option_id`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := make(map[int][]string)
	for rows.Next() {
		var optionID int
		var userID string
		if err := rows.Scan(&optionID, &userID); err != nil {
			return nil, err
		}
		votes[optionID] = append(votes[optionID], userID)
	}
	return votes, rows.Err()
}

// Delete removes the poll; options and votes cascade.
func (r *PollRepo) Delete(ctx context.Context, pollID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE poll_id = $1`, pollID)
	return err
}
