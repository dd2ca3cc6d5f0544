// ABOUTME: Interactive dashboard command
// ABOUTME: Runs the bubbletea subscription dashboard for one user
package cli

import (
	"flag"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/subcal/tui"
)

// TUICommand opens the full-screen dashboard
func TUICommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	user := fs.String("user", "", "User ID (required)")
	_ = fs.Parse(args)

	if err := requireUser(*user); err != nil {
		return err
	}

	_, err := tea.NewProgram(tui.NewModel(env.Engine, *user), tea.WithAltScreen()).Run()
	return err
}
