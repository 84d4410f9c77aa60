package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zapcentral/internal/models"
)

const reminderColumns = `
	id, user_id, status, customer_name, customer_phone, customer_address,
	sector, subject, description, scheduled_at, individual_sent_at,
	group_sent_at, session_id, group_target, individual_template, group_template
`

// PendingReminders returns the candidate jobs for one scheduler tick: rows
// scheduled for the current calendar day (in loc), not yet fully notified,
// whose scheduled time falls inside the lead-time window [now, now+lead].
func (c *Conn) PendingReminders(ctx context.Context, now time.Time, lead time.Duration, loc *time.Location) ([]models.ReminderJob, error) {
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := fmt.Sprintf(`
		SELECT %s
		FROM reminders
		WHERE (individual_sent_at IS NULL OR group_sent_at IS NULL)
		  AND scheduled_at >= ? AND scheduled_at < ?
		  AND scheduled_at >= ? AND scheduled_at <= ?
		ORDER BY scheduled_at
	`, reminderColumns)

	rows, err := c.conn.QueryContext(ctx, query,
		dayStart.UTC(), dayEnd.UTC(), now.UTC(), now.Add(lead).UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reminders: %w", err)
	}
	defer rows.Close()

	var jobs []models.ReminderJob
	for rows.Next() {
		job, err := c.scanReminder(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}
	return jobs, nil
}

// GetReminder fetches one row by id.
func (c *Conn) GetReminder(ctx context.Context, id int64) (*models.ReminderJob, error) {
	query := fmt.Sprintf("SELECT %s FROM reminders WHERE id = ?", reminderColumns)

	row := c.conn.QueryRowContext(ctx, query, id)
	job, err := c.scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateReminder inserts a row and returns its id.
func (c *Conn) CreateReminder(ctx context.Context, job *models.ReminderJob) (int64, error) {
	encryptedPhone, err := c.encryptor.Encrypt(job.CustomerPhone)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt customer phone: %w", err)
	}

	query := `
		INSERT INTO reminders (
			user_id, status, customer_name, customer_phone, customer_address,
			sector, subject, description, scheduled_at,
			session_id, group_target, individual_template, group_template
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := c.conn.ExecContext(ctx, query,
		job.UserID, job.Status, job.CustomerName, encryptedPhone, job.CustomerAddress,
		job.Sector, job.Subject, job.Description, job.ScheduledAt.UTC(),
		job.SessionID, job.GroupTarget, job.IndividualTemplate, job.GroupTemplate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create reminder: %w", err)
	}
	return result.LastInsertId()
}

// MarkIndividualSent records the set-once individual sentinel.
func (c *Conn) MarkIndividualSent(ctx context.Context, id int64, at time.Time) error {
	return c.setFlag(ctx, id, "individual_sent_at", &at)
}

// MarkGroupSent records the set-once group sentinel.
func (c *Conn) MarkGroupSent(ctx context.Context, id int64, at time.Time) error {
	return c.setFlag(ctx, id, "group_sent_at", &at)
}

// MarkNotified forces both sentinels, suppressing any future attempt.
func (c *Conn) MarkNotified(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE reminders
		SET individual_sent_at = COALESCE(individual_sent_at, ?),
		    group_sent_at = COALESCE(group_sent_at, ?),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := c.conn.ExecContext(ctx, query, at.UTC(), at.UTC(), id); err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", err)
	}
	return nil
}

// ResetNotificationFlags zeroes both sentinels so the reminder is re-armed.
func (c *Conn) ResetNotificationFlags(ctx context.Context, id int64) error {
	query := `
		UPDATE reminders
		SET individual_sent_at = NULL, group_sent_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := c.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to reset notification flags: %w", err)
	}
	return nil
}

func (c *Conn) setFlag(ctx context.Context, id int64, column string, at *time.Time) error {
	query := fmt.Sprintf(`
		UPDATE reminders
		SET %s = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, column)
	if _, err := c.conn.ExecContext(ctx, query, at.UTC(), id); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (c *Conn) scanReminder(row rowScanner) (*models.ReminderJob, error) {
	job := &models.ReminderJob{}
	var encryptedPhone string
	var individualSentAt, groupSentAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &job.CustomerName, &encryptedPhone,
		&job.CustomerAddress, &job.Sector, &job.Subject, &job.Description,
		&job.ScheduledAt, &individualSentAt, &groupSentAt,
		&job.SessionID, &job.GroupTarget, &job.IndividualTemplate, &job.GroupTemplate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reminder: %w", err)
	}

	phone, err := c.encryptor.Decrypt(encryptedPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt customer phone: %w", err)
	}
	job.CustomerPhone = phone

	if individualSentAt.Valid {
		t := individualSentAt.Time
		job.IndividualSentAt = &t
	}
	if groupSentAt.Valid {
		t := groupSentAt.Time
		job.GroupSentAt = &t
	}
	return job, nil
}
