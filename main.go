// ABOUTME: Entry point for the subcal calendar sync service and CLI
// ABOUTME: Loads config, opens the database, and routes to server or CLI commands
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/harperreed/subcal/cli"
	"github.com/harperreed/subcal/config"
	"github.com/harperreed/subcal/db"
)

const version = "0.1.0"

type runner func(env *cli.Env, args []string) error

var calendarCommands = map[string]runner{
	"status":       cli.CalendarStatusCommand,
	"ensure":       cli.CalendarEnsureCommand,
	"sync":         cli.CalendarSyncCommand,
	"cleanup":      cli.CalendarCleanupCommand,
	"event":        cli.CalendarEventCommand,
	"delete-event": cli.CalendarDeleteEventCommand,
}

var subscriptionCommands = map[string]runner{
	"add":    cli.SubscriptionsAddCommand,
	"list":   cli.SubscriptionsListCommand,
	"ingest": cli.SubscriptionsIngestCommand,
}

var tokenCommands = map[string]runner{
	"import": cli.TokenImportCommand,
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file (default: ~/.config/subcal/config.yaml)")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/subcal/subcal.db)")
	initOnly := flag.Bool("init", false, "Initialize config and database and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("subcal version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	database, err := db.OpenDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = database.Close() }()

	if *initOnly {
		fmt.Printf("✓ Database initialized at %s\n", cfg.DatabasePath)
		return
	}

	logger := cli.NewLogger(cfg.LogLevel, nil)
	env := cli.NewEnv(database, cfg, logger, version)

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "serve":
		err = cli.ServeCommand(env, commandArgs)
	case "mcp":
		err = cli.MCPCommand(env)
	case "daemon":
		err = cli.DaemonCommand(env, commandArgs)
	case "tui":
		err = cli.TUICommand(env, commandArgs)
	case "calendar":
		err = dispatch(env, command, calendarCommands, commandArgs)
	case "subscriptions":
		err = dispatch(env, command, subscriptionCommands, commandArgs)
	case "token":
		err = dispatch(env, command, tokenCommands, commandArgs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		_ = database.Close()
		log.Fatalf("Error: %v", err)
	}
}

func dispatch(env *cli.Env, group string, commands map[string]runner, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Error: %s requires a subcommand\n\n", group)
		printUsage()
		os.Exit(1)
	}

	run, ok := commands[args[0]]
	if !ok {
		fmt.Printf("Unknown %s command: %s\n\n", group, args[0])
		printUsage()
		os.Exit(1)
	}

	return run(env, args[1:])
}

func printUsage() {
	fmt.Printf(`subcal v%s - Subscription calendar sync

USAGE:
  subcal [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <path>        Config file (default: ~/.config/subcal/config.yaml)
  --db-path <path>       Database path (default: ~/.local/share/subcal/subcal.db)
  --init                 Initialize config and database and exit

COMMANDS:
  serve                  Start the HTTP API
  mcp                    Start MCP server on stdio
  daemon                 Run scheduled syncs for every connected user
  tui                    Interactive dashboard (--user <id>)
  calendar               Calendar sync commands
  subscriptions          Subscription commands
  token                  OAuth credential commands

SERVER:
  subcal serve
    --listen <addr>           Listen address (default from config)
    --daemon                  Also run scheduled syncs

  subcal daemon
    --schedule <cron>         Cron schedule (default from config)
    --once                    Run one pass now and exit

CALENDAR COMMANDS:
  subcal calendar status --user <id>    Show connection and sync state
  subcal calendar ensure --user <id>    Find or create the dedicated calendar
  subcal calendar sync --user <id>      Create events for every unsynced date
  subcal calendar cleanup --user <id>   Delete duplicate dedicated calendars

  subcal calendar event     Create one event for a subscription
    --user <id>               User ID (required)
    --subscription <id>       Subscription ID (required)
    --kind <kind>             renewal or trial_end (default: renewal)
    --date <YYYY-MM-DD>       Event date (default: stored date)
    --name <name>             Override service name in the title
    --email-subject <text>    Source email subject for the description

  subcal calendar delete-event
    --user <id>               User ID (required)
    --calendar <id>           Calendar ID (required)
    --event <id>              Event ID (required)

SUBSCRIPTION COMMANDS:
  subcal subscriptions add
    --user <id>               User ID (required)
    --name <name>             Service name (required)
    --renewal <YYYY-MM-DD>    Next renewal date
    --trial-end <YYYY-MM-DD>  Free trial end date
    --amount <n>              Charge amount
    --currency <code>         Currency code
    --cancel-url <url>        Link to cancel

  subcal subscriptions list --user <id>

  subcal subscriptions ingest
    --user <id>               User ID (required)
    --file <path>             Extractor JSON, one record or an array (default: stdin)
    --min-confidence <n>      Ignore records below this confidence

TOKEN COMMANDS:
  subcal token import
    --user <id>               User ID (required)
    --file <path>             OAuth token JSON (required)
    --scope <scopes>          Space-delimited granted scopes

EXAMPLES:
  # Store a token and create the user's calendar
  subcal token import --user alice --file token.json
  subcal calendar ensure --user alice

  # Track a trial and push it to the calendar
  subcal subscriptions add --user alice --name Netflix --trial-end 2025-06-01
  subcal calendar sync --user alice

  # Browse and sync interactively
  subcal tui --user alice

  # Run the API with scheduled syncs
  subcal serve --daemon

`, version)
}
