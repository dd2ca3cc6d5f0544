// ABOUTME: Calendar CLI commands
// ABOUTME: Status, ensure, sync, cleanup, and single-event create/delete for a user
package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

var (
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const dateLayout = "2006-01-02"

func requireUser(user string) error {
	if user == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

// CalendarStatusCommand prints connection and last sync state for a user
func CalendarStatusCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	if env.Engine.IsCalendarConnected(*user) {
		_, _ = fmt.Fprintf(env.Out, "Calendar: %s\n", connectedStyle.Render("connected"))
	} else {
		_, _ = fmt.Fprintf(env.Out, "Calendar: %s\n", disconnectedStyle.Render("not connected"))
	}

	mapping, err := db.GetCalendarMapping(env.DB, *user)
	if err != nil {
		return err
	}
	if mapping != nil {
		_, _ = fmt.Fprintf(env.Out, "  → %s %s\n", mapping.CalendarName, dimStyle.Render("("+mapping.ExternalCalendarID+")"))
	} else {
		_, _ = fmt.Fprintln(env.Out, "  → no dedicated calendar yet")
	}

	state, err := db.GetSyncState(env.DB, *user)
	if err != nil {
		return err
	}
	if state == nil {
		_, _ = fmt.Fprintln(env.Out, "Last sync: never")
		return nil
	}

	last := "never"
	if state.LastSyncTime != nil {
		last = state.LastSyncTime.Local().Format(time.RFC1123)
	}
	_, _ = fmt.Fprintf(env.Out, "Last sync: %s (%s)\n", last, state.Status)
	if state.ErrorMessage != nil {
		_, _ = fmt.Fprintf(env.Out, "  ✗ %s\n", *state.ErrorMessage)
	}

	return nil
}

// CalendarEnsureCommand finds or creates the user's dedicated calendar
func CalendarEnsureCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("ensure", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	id, err := env.Engine.GetOrCreateCalendar(context.Background(), *user)
	if err != nil {
		return fmt.Errorf("failed to get calendar: %w", err)
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Calendar ready: %s\n", id)
	return nil
}

// CalendarSyncCommand creates every missing event for a user
func CalendarSyncCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(env.Out, "Syncing subscriptions to calendar...")
	summary := env.Engine.SyncAllSubscriptions(context.Background(), *user)

	_, _ = fmt.Fprintf(env.Out, "  ✓ %d events created\n", summary.Success)
	if summary.Failed > 0 {
		_, _ = fmt.Fprintf(env.Out, "  ✗ %d failed\n", summary.Failed)
	}
	if summary.RunID == "" {
		_, _ = fmt.Fprintln(env.Out, "  → sync did not run; check 'subcal calendar status'")
	}

	return nil
}

// CalendarCleanupCommand removes duplicate dedicated calendars
func CalendarCleanupCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	result, err := env.Engine.CleanupDuplicateCalendars(context.Background(), *user)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if result.KeptCalendar == "" {
		_, _ = fmt.Fprintln(env.Out, "✓ No duplicate calendars")
		return nil
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Kept %s\n", result.KeptCalendar)
	_, _ = fmt.Fprintf(env.Out, "✓ Deleted %d duplicate(s)\n", result.DeletedCount)
	return nil
}

// CalendarEventCommand creates one event for a subscription
func CalendarEventCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("event", flag.ExitOnError)
	subscription := fs.String("subscription", "", "Subscription ID (required)")
	kindFlag := fs.String("kind", string(models.EventRenewal), "Event kind (renewal or trial_end)")
	dateFlag := fs.String("date", "", "Event date YYYY-MM-DD (defaults to the stored date)")
	name := fs.String("name", "", "Name for the event title (defaults to the subscription name)")
	emailSubject := fs.String("email-subject", "", "Subject of the email it was detected from")
	_ = fs.Parse(args)

	subID, err := uuid.Parse(*subscription)
	if err != nil {
		return fmt.Errorf("invalid --subscription: %w", err)
	}

	kind, err := models.ParseEventKind(*kindFlag)
	if err != nil {
		return err
	}

	sub, err := db.GetSubscription(env.DB, subID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("subscription %s not found", subID)
	}

	var date time.Time
	switch {
	case *dateFlag != "":
		date, err = time.Parse(dateLayout, *dateFlag)
		if err != nil {
			return fmt.Errorf("invalid --date (use YYYY-MM-DD): %w", err)
		}
	case sub.DateFor(kind) != nil:
		date = *sub.DateFor(kind)
	default:
		return fmt.Errorf("subscription has no %s date; pass --date", kind)
	}

	meta := sub.MetadataFor()
	meta.EmailSubject = *emailSubject

	eventID, err := env.Engine.CreateSubscriptionEvent(context.Background(), subID, *name, date, kind, meta)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Created %s event %s\n", kind, eventID)
	return nil
}

// CalendarDeleteEventCommand deletes one event from a user's calendar
func CalendarDeleteEventCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("delete-event", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	calendarID := fs.String("calendar", "", "Calendar ID (defaults to the user's dedicated calendar)")
	eventID := fs.String("event", "", "Event ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}
	if *eventID == "" {
		return fmt.Errorf("--event is required")
	}

	if *calendarID == "" {
		mapping, err := db.GetCalendarMapping(env.DB, *user)
		if err != nil {
			return err
		}
		if mapping == nil {
			return fmt.Errorf("user has no dedicated calendar; pass --calendar")
		}
		*calendarID = mapping.ExternalCalendarID
	}

	if err := env.Engine.DeleteSubscriptionEvent(context.Background(), *user, *calendarID, *eventID); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Deleted event %s\n", *eventID)
	return nil
}
