// ABOUTME: Calendar sync engine wiring and shared helpers
// ABOUTME: Holds the store, clock, logger, and provider settings used by every operation
package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"
	"google.golang.org/api/googleapi"
)

var (
	ErrNotConnected         = errors.New("calendar not connected")
	ErrTokenExpired         = errors.New("calendar token expired")
	ErrNoCalendar           = errors.New("provider returned no calendar id")
	ErrNoEventID            = errors.New("provider returned no event id")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrMissingName          = errors.New("extracted subscription has no name")
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	ProductName      string
	Timezone         string
	CalendarEndpoint string
	Now              func() time.Time
	Logger           *log.Logger
}

// Engine keeps a user's dedicated Google calendar in step with their subscriptions.
type Engine struct {
	db        *sql.DB
	product   string
	dedicated *regexp.Regexp
	timezone  string
	endpoint  string
	now       func() time.Time
	logger    *log.Logger
}

func NewEngine(database *sql.DB, opts Options) *Engine {
	e := &Engine{
		db:       database,
		product:  opts.ProductName,
		timezone: hostTimezone(opts.Timezone),
		endpoint: opts.CalendarEndpoint,
		now:      opts.Now,
		logger:   opts.Logger,
	}

	if e.product == "" {
		e.product = "SubTracker"
	}
	e.dedicated = regexp.MustCompile("^" + regexp.QuoteMeta(e.calendarPrefix()) + ` - \d{4}$`)
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = log.Default()
	}

	return e
}

// DB is the store the engine reads and writes.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// calendarPrefix is the naming convention shared by every dedicated calendar.
func (e *Engine) calendarPrefix() string {
	return e.product + " Subscriptions"
}

// isDedicatedCalendar reports whether name is exactly "<product> Subscriptions - <year>".
func (e *Engine) isDedicatedCalendar(name string) bool {
	return e.dedicated.MatchString(name)
}

func (e *Engine) calendarName() string {
	return fmt.Sprintf("%s - %d", e.calendarPrefix(), e.now().Year())
}

func (e *Engine) newRunID() string {
	return ulid.MustNew(ulid.Timestamp(e.now()), ulid.DefaultEntropy()).String()
}

// hostTimezone resolves the zone name sent to the provider, which rejects "Local".
func hostTimezone(configured string) string {
	if configured != "" {
		return configured
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	return "UTC"
}

// isNotFound reports a provider 404/410, meaning the referenced resource is gone.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
