// ABOUTME: OAuth token CLI commands
// ABOUTME: Imports a token obtained elsewhere into the credential store
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

// TokenImportCommand stores an oauth2 token JSON file as a user's credential.
// Acquiring and refreshing the token is the surrounding app's job.
func TokenImportCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	file := fs.String("file", "", "Token JSON file with access_token and expiry (required)")
	scope := fs.String("scope", sync.ScopeString(sync.DefaultScopes), "Space-delimited scopes granted to the token")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token has no access_token")
	}
	if token.Expiry.IsZero() {
		return fmt.Errorf("token has no expiry")
	}

	cred := &models.OAuthCredential{
		UserID:       *user,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        *scope,
		ExpiresAt:    token.Expiry,
	}
	if err := db.SaveOAuthCredential(env.DB, cred); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Out, "✓ Token saved for %s (expires %s)\n", *user, token.Expiry.Local().Format("2006-01-02 15:04"))
	if !cred.HasScope(sync.CalendarScopeFragment) {
		_, _ = fmt.Fprintln(env.Out, "  → token has no calendar scope; calendar sync will stay disconnected")
	}
	return nil
}
