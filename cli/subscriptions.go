// ABOUTME: Subscription CLI commands
// ABOUTME: Add, list, and ingest extractor output for a user
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s (use YYYY-MM-DD): %w", name, err)
	}
	return &t, nil
}

// SubscriptionsAddCommand tracks a new subscription
func SubscriptionsAddCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	name := fs.String("name", "", "Service name (required)")
	renewal := fs.String("renewal", "", "Next renewal date YYYY-MM-DD")
	trialEnd := fs.String("trial-end", "", "Free trial end date YYYY-MM-DD")
	amount := fs.Float64("amount", 0, "Charge amount")
	currency := fs.String("currency", "", "Currency code")
	cancelURL := fs.String("cancel-url", "", "Link to cancel")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	renewalDate, err := parseDateFlag("renewal", *renewal)
	if err != nil {
		return err
	}
	trialEndDate, err := parseDateFlag("trial-end", *trialEnd)
	if err != nil {
		return err
	}

	sub := &models.Subscription{
		UserID:       *user,
		Name:         *name,
		RenewalDate:  renewalDate,
		TrialEndDate: trialEndDate,
		Currency:     *currency,
		CancelURL:    *cancelURL,
	}
	if *amount != 0 {
		sub.Amount = amount
	}

	if err := db.CreateSubscription(env.DB, sub); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Added %s (%s)\n", sub.Name, sub.ID)
	return nil
}

// SubscriptionsListCommand prints a user's subscriptions with their event state
func SubscriptionsListCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	subs, err := db.FindSubscriptions(env.DB, *user)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tRENEWAL\tTRIAL END\tSYNCED\tID")
	_, _ = fmt.Fprintln(w, "----\t-------\t---------\t------\t--")

	for i := range subs {
		sub := &subs[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sub.Name,
			formatDate(sub.RenewalDate),
			formatDate(sub.TrialEndDate),
			syncedMarker(sub),
			sub.ID)
	}

	return w.Flush()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// syncedMarker shows which date kinds already have an event.
func syncedMarker(sub *models.Subscription) string {
	var parts []string
	for _, kind := range models.EventKinds {
		if sub.DateFor(kind) == nil {
			continue
		}
		mark := "✓"
		if sub.NeedsEvent(kind) {
			mark = "✗"
		}
		parts = append(parts, mark+" "+string(kind))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// SubscriptionsIngestCommand reads extractor records (one object or an array) as JSON
func SubscriptionsIngestCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	file := fs.String("file", "-", "JSON file of extracted records, or - for stdin")
	minConfidence := fs.Float64("min-confidence", env.Config.MinConfidence, "Ignore records below this confidence")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", *file, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	records, err := decodeRecords(r)
	if err != nil {
		return err
	}

	stored, skipped := 0, 0
	for _, rec := range records {
		sub, err := env.Engine.IngestExtracted(*user, rec, *minConfidence)
		if err != nil {
			_, _ = fmt.Fprintf(env.Out, "  ✗ %s: %v\n", rec.Name, err)
			continue
		}
		if sub == nil {
			skipped++
			continue
		}
		stored++
		_, _ = fmt.Fprintf(env.Out, "  ✓ %s\n", sub.Name)
	}

	_, _ = fmt.Fprintf(env.Out, "\n✓ %d stored, %d below confidence %.2f\n", stored, skipped, *minConfidence)
	return nil
}

func decodeRecords(r io.Reader) ([]models.ExtractedSubscription, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []models.ExtractedSubscription
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse records: %w", err)
		}
		return records, nil
	}

	var rec models.ExtractedSubscription
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return []models.ExtractedSubscription{rec}, nil
}
