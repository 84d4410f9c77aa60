package models

import "time"

// Reminder lifecycle statuses as stored in the reminders table.
const (
	ReminderStatusOpen = "aberto"
	ReminderStatusDone = "concluido"
)

// ReminderJob is the scheduler's view of one store row: a pending reminder
// tied to an external ticket, joined with its routing configuration. Rows
// are fetched fresh every tick and written back via field-level updates;
// nothing here is owned in memory.
type ReminderJob struct {
	ID                 int64
	UserID             int64
	Status             string
	CustomerName       string
	CustomerPhone      string
	CustomerAddress    string
	Sector             string
	Subject            string
	Description        string
	ScheduledAt        time.Time
	IndividualSentAt   *time.Time
	GroupSentAt        *time.Time
	SessionID          string
	GroupTarget        string
	IndividualTemplate string
	GroupTemplate      string
}

// IndividualPending reports whether the per-customer notification is still owed.
func (j *ReminderJob) IndividualPending() bool {
	return j.IndividualSentAt == nil
}

// GroupPending reports whether the group notification is still owed.
func (j *ReminderJob) GroupPending() bool {
	return j.GroupSentAt == nil
}
