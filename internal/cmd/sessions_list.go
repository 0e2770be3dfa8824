package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// SessionsListCmd lists sessions
type SessionsListCmd struct {
	All bool `help:"Include archived sessions" short:"a"`
}

// Run executes the list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	sessions, err := cli.Container.SessionService.List(context.Background(), s.All)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, " \tNAME\tSTATUS\tBRANCH\tID")
	for _, session := range sessions {
		name := session.DisplayName
		if session.IsFavorite {
			name = "★ " + name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			session.Status.Symbol(), name, session.Status, session.BranchName, session.ID)
	}
	return w.Flush()
}
