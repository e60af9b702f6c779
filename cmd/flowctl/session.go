package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newSessionCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and refresh cached session keys",
	}
	cmd.AddCommand(newSessionRefreshCmd(root))
	cmd.AddCommand(newSessionShowCmd(root))
	return cmd
}

func newSessionRefreshCmd(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "refresh APPLICATION...",
		Short: "Regenerate the session key of one or more applications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, application := range args {
				rec, err := a.sessions.Regenerate(cmd.Context(), application, !dryRun)
				if err != nil {
					return fmt.Errorf("refresh %s: %w", application, err)
				}
				fmt.Fprintf(a.out, "%s %s expires %s\n", text.FgGreen.Sprint("refreshed"), application, rec.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "regenerate without writing the session file")
	return cmd
}

func newSessionShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached session keys and whether they are still usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.sessions.Records(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, "no session keys cached in", a.cfg.Paths.SessionKeys)
				return nil
			}

			apps := make([]string, 0, len(records))
			for name := range records {
				apps = append(apps, name)
			}
			sort.Strings(apps)

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Application", "API key", "Expires at", "Status"})
			for _, name := range apps {
				rec := records[name]
				status := text.FgGreen.Sprint("valid")
				valid, err := a.sessions.IsValid(cmd.Context(), name)
				switch {
				case err != nil:
					status = text.FgHiBlack.Sprint("unknown application")
				case !valid:
					status = text.FgYellow.Sprint("stale")
				}
				t.AppendRow(table.Row{name, mask(rec.APIKey), rec.ExpiresAt.Format(time.RFC3339), status})
			}
			t.Render()
			return nil
		},
	}
}

// mask keeps the last four characters of a secret.
func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
