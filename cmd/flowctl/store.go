package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStoreCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect named flows kept for later steps",
	}
	cmd.AddCommand(newStoreShowCmd(root))
	cmd.AddCommand(newStoreGetCmd(root))
	return cmd
}

func newStoreShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List stored flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			names, records, err := a.store.Entries(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(a.out, "no stored flows")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Entry", "Method", "URL", "Scenario", "Stored at"})
			for _, name := range names {
				rec := records[name]
				t.AppendRow(table.Row{name, rec.Request.Method, rec.Request.URL, rec.Scenario, rec.StoredAt.Format(time.RFC3339)})
			}
			t.Render()
			return nil
		},
	}
}

func newStoreGetCmd(root *rootOptions) *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "get NAME FIELD...",
		Short: "Read fields of a stored flow",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			keyMap := make(map[string]string, len(args)-1)
			for _, field := range args[1:] {
				keyMap[field] = field
			}
			values, err := a.store.ReadField(cmd.Context(), section, keyMap, args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.AppendHeader(table.Row{"Field", "Value"})
			for _, field := range args[1:] {
				t.AppendRow(table.Row{field, values[field]})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "sync response", "fixture section to read from")
	return cmd
}
