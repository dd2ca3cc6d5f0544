// ABOUTME: MCP resource handlers for exposing subscription data
// ABOUTME: Provides read-only access to a user's subscriptions and sync log via URI
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/subcal/db"
)

const resourceScheme = "subcal://"

type ResourceHandlers struct {
	db *sql.DB
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database}
}

// ReadResource serves subcal://users/{user}/subscriptions and subcal://runs/{run}.
func (h *ResourceHandlers) ReadResource(_ context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")

	switch {
	case len(parts) == 3 && parts[0] == "users" && parts[2] == "subscriptions":
		subs, err := db.FindSubscriptions(h.db, parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
		}
		return jsonResource(uri, subs)

	case len(parts) == 2 && parts[0] == "runs":
		entries, err := db.GetSyncLog(h.db, parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch sync log: %w", err)
		}
		return jsonResource(uri, entries)

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
