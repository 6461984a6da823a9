package postgres

import (
	"context"
	"database/sql"
	"time"
)

// Reminder is one scheduled reminder row. The timer surface lives
// outside this module; the rows are kept so it can resume after a
// restart.
type Reminder struct {
	ReminderID int64
	RemindText string
	ChannelID  string
	CreatorID  string
	MessageID  string
	RemindTime time.Time
}

// ReminderRepo persists reminders.
type ReminderRepo struct{ db *sql.DB }

// NewReminderRepo creates a reminder repository.
func NewReminderRepo(db *sql.DB) *ReminderRepo { return &ReminderRepo{db: db} }

// Create inserts a reminder and returns its id.
func (r *ReminderRepo) Create(ctx context.Context, reminder Reminder) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO reminders (remind_text, channel_id, creator_id, message_id, remind_time)
VALUES ($1,$2,$3,NULLIF($4,''),$5)
RETURNING reminder_id
`, reminder.RemindText, reminder.ChannelID, reminder.CreatorID, reminder.MessageID, reminder.RemindTime).Scan(&id)
	return id, err
}

// Due returns reminders whose time has passed.
func (r *ReminderRepo) Due(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT reminder_id, remind_text, channel_id, creator_id, COALESCE(message_id,''), remind_time
FROM reminders
WHERE remind_time <= $1
ORDER BY remind_time
`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var reminder Reminder
		if err := rows.Scan(&reminder.ReminderID, &reminder.RemindText, &reminder.ChannelID,
			&reminder.CreatorID, &reminder.MessageID, &reminder.RemindTime); err != nil {
			return nil, err
		}
		out = append(out, reminder)
	}
	return out, rows.Err()
}

// Delete removes a reminder by id.
func (r *ReminderRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE reminder_id = $1`, id)
	return err
}
