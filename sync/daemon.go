// ABOUTME: Periodic reconcile daemon driven by a cron schedule
// ABOUTME: Runs the bulk reconciler for every connected user, one user at a time
package sync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

// UserSyncResult pairs a user with the summary of their run.
type UserSyncResult struct {
	UserID  string
	Skipped bool
	Summary models.SyncSummary
}

// Daemon schedules SyncAllSubscriptions for all users with stored credentials.
type Daemon struct {
	engine *Engine
	db     *sql.DB
	cron   *cron.Cron
}

// NewDaemon validates spec (standard five-field cron) and prepares the schedule.
// Overlapping ticks are skipped rather than queued.
func NewDaemon(engine *Engine, database *sql.DB, spec string) (*Daemon, error) {
	logger := cronLogger{engine.logger}
	d := &Daemon{
		engine: engine,
		db:     database,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger)),
		),
	}

	if _, err := d.cron.AddFunc(spec, func() { d.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}

	return d, nil
}

// Start begins running scheduled syncs in the background.
func (d *Daemon) Start() {
	d.engine.logger.Info("starting sync daemon", "jobs", len(d.cron.Entries()))
	d.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running tick finishes.
func (d *Daemon) Stop() context.Context {
	d.engine.logger.Info("stopping sync daemon")
	return d.cron.Stop()
}

// RunOnce reconciles every user sequentially. Users whose calendar is not
// connected are skipped.
func (d *Daemon) RunOnce(ctx context.Context) []UserSyncResult {
	userIDs, err := db.ListCredentialUserIDs(d.db)
	if err != nil {
		d.engine.logger.Error("failed to list users for sync", "err", err)
		return nil
	}

	results := make([]UserSyncResult, 0, len(userIDs))
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}

		if !d.engine.IsCalendarConnected(userID) {
			d.engine.logger.Debug("skipping disconnected user", "user", userID)
			results = append(results, UserSyncResult{UserID: userID, Skipped: true})
			continue
		}

		summary := d.engine.SyncAllSubscriptions(ctx, userID)
		results = append(results, UserSyncResult{UserID: userID, Summary: summary})
	}

	return results
}

// cronLogger sends the scheduler's own messages (skipped ticks, recovered
// panics) to the engine logger. cron's Info chatter is demoted to debug.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
