package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the single-flow cache",
	}
	cmd.AddCommand(newCacheGetCmd(root))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cached flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.Delete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "cache cleared:", a.cfg.Paths.Cache)
			return nil
		},
	})
	return cmd
}

func newCacheGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get SECTION KEY=FIELD...",
		Short: "Read fields of the cached flow",
		Example: `  flowctl cache get request conversation=input_ThirdPartyConversationID
  flowctl cache get "sync response" output_TransactionID`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, keyMap, err := parseKeyMap(args[1:])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			values, err := a.cache.ReadField(cmd.Context(), args[0], keyMap)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.AppendHeader(table.Row{"Key", "Field", "Value"})
			for _, key := range keys {
				t.AppendRow(table.Row{key, keyMap[key], values[key]})
			}
			t.Render()
			return nil
		},
	}
}

// parseKeyMap turns KEY=FIELD arguments into a key map. A bare FIELD is read
// under its own name. keys keeps argument order.
func parseKeyMap(args []string) (keys []string, keyMap map[string]string, err error) {
	keyMap = make(map[string]string, len(args))
	for _, arg := range args {
		key, field, found := strings.Cut(arg, "=")
		if !found {
			field = key
		}
		if key == "" || field == "" {
			return nil, nil, fmt.Errorf("invalid field mapping %q: want KEY=FIELD", arg)
		}
		if _, dup := keyMap[key]; dup {
			return nil, nil, fmt.Errorf("duplicate key %q", key)
		}
		keys = append(keys, key)
		keyMap[key] = field
	}
	return keys, keyMap, nil
}
