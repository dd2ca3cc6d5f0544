// ABOUTME: Long-running server subcommands
// ABOUTME: Starts the HTTP API, the MCP stdio server, or the reconcile daemon
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/subcal/handlers"
	"github.com/harperreed/subcal/sync"
	"github.com/harperreed/subcal/verify"
	"github.com/harperreed/subcal/web"
)

// openCodeStore picks badger when a path is configured, memory otherwise.
func openCodeStore(env *Env) (verify.Store, func(), error) {
	if env.Config.VerifyStorePath == "" {
		return verify.NewMemoryStore(nil), func() {}, nil
	}

	store, err := verify.OpenBadgerStore(env.Config.VerifyStorePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// ServeCommand runs the HTTP API, optionally with the reconcile daemon alongside
func ServeCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", env.Config.Listen, "Listen address")
	withDaemon := fs.Bool("daemon", false, "Also run scheduled syncs")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCodeStore(env)
	if err != nil {
		return err
	}
	defer closeStore()

	if *withDaemon {
		daemon, err := sync.NewDaemon(env.Engine, env.DB, env.Config.SyncCron)
		if err != nil {
			return err
		}
		daemon.Start()
		defer func() { <-daemon.Stop().Done() }()
	}

	server := web.NewServer(env.Engine, web.Options{
		MinConfidence: env.Config.MinConfidence,
		Codes:         verify.NewCodes(store, verify.Options{Logger: env.Logger}),
		Logger:        env.Logger,
	})

	return server.Start(ctx, *listen)
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(env *Env) error {
	env.Logger.Info("starting subcal MCP server")

	server := handlers.NewServer(env.Engine, env.Config.MinConfidence, env.Version)
	return server.Run(context.Background(), &mcp.StdioTransport{})
}

// DaemonCommand runs scheduled syncs for every connected user until interrupted
func DaemonCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	schedule := fs.String("schedule", env.Config.SyncCron, "Cron schedule (5-field or @every/@hourly)")
	once := fs.Bool("once", false, "Run one pass now and exit")
	_ = fs.Parse(args)

	daemon, err := sync.NewDaemon(env.Engine, env.DB, *schedule)
	if err != nil {
		return err
	}

	if *once {
		results := daemon.RunOnce(context.Background())
		for _, r := range results {
			if r.Skipped {
				_, _ = fmt.Fprintf(env.Out, "  → %s: not connected, skipped\n", r.UserID)
				continue
			}
			_, _ = fmt.Fprintf(env.Out, "  ✓ %s: %d created, %d failed\n", r.UserID, r.Summary.Success, r.Summary.Failed)
		}
		_, _ = fmt.Fprintf(env.Out, "\n✓ Synced %d user(s)\n", len(results))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon.Start()
	_, _ = fmt.Fprintf(env.Out, "✓ Daemon running on schedule %q (Ctrl+C to stop)\n", *schedule)

	<-ctx.Done()
	<-daemon.Stop().Done()
	_, _ = fmt.Fprintln(env.Out, "✓ Daemon stopped")
	return nil
}
