// ABOUTME: Shared command environment and logger setup
// ABOUTME: Bundles the database, engine, config, and output writer passed to every command
package cli

import (
	"database/sql"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/harperreed/subcal/config"
	"github.com/harperreed/subcal/sync"
)

// Env is what every command runs against.
type Env struct {
	DB      *sql.DB
	Engine  *sync.Engine
	Config  *config.Config
	Logger  *log.Logger
	Out     io.Writer
	Version string
}

// NewEnv wires an engine from cfg. Output goes to stdout.
func NewEnv(database *sql.DB, cfg *config.Config, logger *log.Logger, version string) *Env {
	engine := sync.NewEngine(database, sync.Options{
		ProductName:      cfg.ProductName,
		Timezone:         cfg.Timezone,
		CalendarEndpoint: cfg.CalendarEndpoint,
		Logger:           logger,
	})

	return &Env{
		DB:      database,
		Engine:  engine,
		Config:  cfg,
		Logger:  logger,
		Out:     os.Stdout,
		Version: version,
	}
}

// NewLogger builds a stderr logger at the named level; unknown levels mean info.
func NewLogger(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "subcal",
	})

	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = log.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
