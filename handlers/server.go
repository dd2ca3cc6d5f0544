// ABOUTME: MCP server assembly
// ABOUTME: Registers every subscription calendar tool and resource template
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/subcal/sync"
)

// NewServer builds the MCP server; the caller picks the transport.
func NewServer(engine *sync.Engine, minConfidence float64, version string) *mcp.Server {
	calendarHandlers := NewCalendarHandlers(engine)
	subscriptionHandlers := NewSubscriptionHandlers(engine, minConfidence)
	resourceHandlers := NewResourceHandlers(engine.DB())

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "subcal",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "calendar_status",
		Description: "Report whether a user's calendar is connected and how their last sync went",
	}, calendarHandlers.CalendarStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ensure_calendar",
		Description: "Find or create the user's dedicated subscriptions calendar",
	}, calendarHandlers.EnsureCalendar)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_subscription_event",
		Description: "Create an all-day renewal or trial-end event for one subscription",
	}, calendarHandlers.CreateSubscriptionEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_subscription_event",
		Description: "Delete an event from the user's calendar",
	}, calendarHandlers.DeleteSubscriptionEvent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_subscriptions",
		Description: "Create every missing renewal and trial-end event for a user",
	}, calendarHandlers.SyncSubscriptions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cleanup_duplicate_calendars",
		Description: "Keep one dedicated calendar and delete any duplicates",
	}, calendarHandlers.CleanupDuplicateCalendars)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_subscription",
		Description: "Track a new subscription with optional renewal and trial-end dates",
	}, subscriptionHandlers.AddSubscription)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_subscriptions",
		Description: "List a user's tracked subscriptions and their calendar events",
	}, subscriptionHandlers.ListSubscriptions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_extracted",
		Description: "Store a subscription detected in an email when its confidence is high enough",
	}, subscriptionHandlers.IngestExtracted)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "subscriptions",
		URITemplate: "subcal://users/{user}/subscriptions",
		MIMEType:    "application/json",
		Description: "All subscriptions tracked for a user",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "sync_run",
		URITemplate: "subcal://runs/{run}",
		MIMEType:    "application/json",
		Description: "Events created by one sync run",
	}, resourceHandlers.ReadResource)

	return server
}
