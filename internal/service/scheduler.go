package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zapcentral/internal/constants"
	"zapcentral/internal/database"
	"zapcentral/internal/errors"
	"zapcentral/internal/metrics"
	"zapcentral/internal/models"
	"zapcentral/internal/phone"
	"zapcentral/internal/privacy"

	"github.com/sirupsen/logrus"
)

// SessionDirectory resolves and drives sessions for scheduled sends. The
// registry implements it.
type SessionDirectory interface {
	ConnectedSession(preferredID string) (string, bool)
	SendMessage(ctx context.Context, sessionID, target, body string) error
}

// SchedulerStatus is the answer to a manual status query.
type SchedulerStatus struct {
	Active  bool   `json:"active"`
	Cadence string `json:"cadence"`
}

// ReminderScheduler periodically queries pending reminder rows, renders
// their templates and dispatches individual and group sends, recording
// outcomes back to the store.
//
// Window policy: one lead-time window (default 60 minutes) gates both the
// individual and the group send.
type ReminderScheduler struct {
	db          *database.Database
	directory   SessionDirectory
	logger      *logrus.Logger
	interval    time.Duration
	leadTime    time.Duration
	sendTimeout time.Duration
	loc         *time.Location
	now         func() time.Time

	mu         sync.Mutex
	running    bool
	ticking    bool
	tickCancel context.CancelFunc
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewReminderScheduler wires a scheduler; zero config values fall back to
// defaults.
func NewReminderScheduler(db *database.Database, directory SessionDirectory, cfg models.SchedulerConfig, loc *time.Location, logger *logrus.Logger) *ReminderScheduler {
	if cfg.IntervalSec <= 0 {
		cfg.IntervalSec = constants.DefaultReminderIntervalSec
	}
	if cfg.LeadTimeMin <= 0 {
		cfg.LeadTimeMin = constants.DefaultReminderLeadTimeMin
	}
	if cfg.SendTimeoutSec <= 0 {
		cfg.SendTimeoutSec = constants.DefaultSendTimeoutSec
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		db:          db,
		directory:   directory,
		logger:      logger,
		interval:    time.Duration(cfg.IntervalSec) * time.Second,
		leadTime:    time.Duration(cfg.LeadTimeMin) * time.Minute,
		sendTimeout: time.Duration(cfg.SendTimeoutSec) * time.Second,
		loc:         loc,
		now:         time.Now,
	}
}

// Start launches the tick loop with an immediate first run. Starting an
// active scheduler is a no-op that returns false.
func (s *ReminderScheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Reminder scheduler already active")
		return false
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, stopCh)

	s.logger.WithField("interval", s.interval).Info("Reminder scheduler started")
	return true
}

// Stop halts the tick loop. An in-flight tick gets its context canceled so
// the call returns promptly instead of waiting out slow sends; the aborted
// work is retried on the next Start since no flags were recorded.
func (s *ReminderScheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	close(s.stopCh)
	s.running = false
	cancel := s.tickCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.wg.Wait()
	s.logger.Info("Reminder scheduler stopped")
	return true
}

// Status reports whether the loop is active and its cadence.
func (s *ReminderScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{Active: s.running}
	if s.running {
		status.Cadence = fmt.Sprintf("every %s, %s lead time", s.interval, s.leadTime)
	} else {
		status.Cadence = "inactive"
	}
	return status
}

func (s *ReminderScheduler) run(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick executes one scheduler pass. A tick that is still running when
// the next timer fires is not overlapped: late fires are skipped.
func (s *ReminderScheduler) RunTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, constants.DefaultSchedulerTickTimeout*time.Second)

	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		cancel()
		s.logger.Warn("Previous scheduler tick still running, skipping")
		return
	}
	s.ticking = true
	s.tickCancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.ticking = false
		s.tickCancel = nil
		s.mu.Unlock()
	}()

	tickStart := time.Now()

	// One connection scope per tick
	conn, err := s.db.Acquire(tickCtx)
	if err != nil {
		s.logger.WithError(errors.NewStoreError("acquire connection", err)).
			Error("Failed to acquire store connection for tick")
		return
	}
	defer func() {
		if err := conn.Release(); err != nil {
			s.logger.WithError(err).Warn("Failed to release store connection")
		}
	}()

	now := s.now()
	jobs, err := conn.PendingReminders(tickCtx, now, s.leadTime, s.loc)
	if err != nil {
		s.logger.WithError(errors.NewStoreError("pending reminders query", err)).WithFields(logrus.Fields{
			"now":       now,
			"lead_time": s.leadTime,
		}).Error("Failed to query pending reminders, aborting tick")
		return
	}

	if len(jobs) > 0 {
		s.logger.WithField("count", len(jobs)).Info("Processing pending reminders")
	}

	for i := range jobs {
		s.processJob(tickCtx, conn, &jobs[i], now)
	}

	metrics.RecordTimer("scheduler_tick_duration", time.Since(tickStart), nil, "Scheduler tick duration")
}

func (s *ReminderScheduler) processJob(ctx context.Context, conn *database.Conn, job *models.ReminderJob, now time.Time) {
	jobLogger := s.logger.WithField("reminder_id", job.ID)

	// Completed tickets suppress all future attempts
	if job.Status == models.ReminderStatusDone {
		if err := conn.MarkNotified(ctx, job.ID, now); err != nil {
			jobLogger.WithError(errors.NewStoreError("mark notified", err)).
				Error("Failed to suppress completed reminder")
		}
		return
	}
	if job.Status != models.ReminderStatusOpen {
		return
	}

	if job.IndividualPending() {
		if s.sendIndividual(ctx, job) {
			if err := conn.MarkIndividualSent(ctx, job.ID, now); err != nil {
				jobLogger.WithError(errors.NewStoreError("mark individual sent", err)).
					Error("Failed to record individual send")
			}
		}
	}

	// The group send is attempted even when the individual send failed;
	// it is the fallback notification path.
	if job.GroupPending() {
		if s.sendGroup(ctx, job) {
			if err := conn.MarkGroupSent(ctx, job.ID, now); err != nil {
				jobLogger.WithError(errors.NewStoreError("mark group sent", err)).
					Error("Failed to record group send")
			}
		}
	}
}

// sendIndividual delivers the per-customer reminder. Returns false with no
// store mutation on any failure so the next tick retries.
func (s *ReminderScheduler) sendIndividual(ctx context.Context, job *models.ReminderJob) bool {
	jobLogger := s.logger.WithField("reminder_id", job.ID)

	if job.IndividualTemplate == "" {
		jobLogger.Debug("No individual template configured, skipping")
		return false
	}

	sessionID, ok := s.directory.ConnectedSession(job.SessionID)
	if !ok {
		jobLogger.WithField("configured_session", privacy.MaskSessionID(job.SessionID)).
			Warn("No connected session available for individual reminder")
		return false
	}

	body := RenderTemplate(job.IndividualTemplate, TemplateValues(job, s.loc))

	digits := phone.SanitizeDigits(job.CustomerPhone)
	if digits == "" {
		// Keep the full rendered content in the log so the reminder can
		// be delivered manually.
		jobLogger.WithField("message", body).Warn("Reminder has no customer phone, message not sent")
		return false
	}
	target := phone.ChatID(phone.EnsureCountryCode(phone.NormalizeLocal(digits)))

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.directory.SendMessage(sendCtx, sessionID, target, body); err != nil {
		jobLogger.WithError(err).WithField("target", privacy.MaskChatID(target)).
			Error("Failed to send individual reminder")
		return false
	}

	jobLogger.WithField("target", privacy.MaskChatID(target)).Info("Individual reminder sent")
	metrics.IncrementCounter("reminders_sent_total", map[string]string{"kind": "individual"}, "Reminders delivered")
	return true
}

// sendGroup delivers the team notification to the configured group.
func (s *ReminderScheduler) sendGroup(ctx context.Context, job *models.ReminderJob) bool {
	jobLogger := s.logger.WithField("reminder_id", job.ID)

	if job.GroupTemplate == "" {
		jobLogger.Debug("No group template configured, skipping")
		return false
	}
	if !phone.IsGroupTarget(job.GroupTarget) {
		jobLogger.WithField("group_target", job.GroupTarget).
			Warn("Group target missing or malformed, skipping group reminder")
		return false
	}

	sessionID, ok := s.directory.ConnectedSession(job.SessionID)
	if !ok {
		jobLogger.Warn("No connected session available for group reminder")
		return false
	}

	body := RenderTemplate(job.GroupTemplate, TemplateValues(job, s.loc))

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.directory.SendMessage(sendCtx, sessionID, job.GroupTarget, body); err != nil {
		jobLogger.WithError(err).Error("Failed to send group reminder")
		return false
	}

	jobLogger.Info("Group reminder sent")
	metrics.IncrementCounter("reminders_sent_total", map[string]string{"kind": "group"}, "Reminders delivered")
	return true
}
