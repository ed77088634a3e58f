package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/spacetodo/internal/ui"
	"github.com/amonks/spacetodo/record"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Manage the lists of a space",
}

var listCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a list",
	Args:  cobra.ExactArgs(1),
	RunE:  runListCreate,
}

var listLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Show the lists of a space",
	Args:  cobra.NoArgs,
	RunE:  runListLs,
}

func init() {
	rootCmd.AddCommand(listCmd)
	addSpaceFlag(listCmd)
	listCmd.AddCommand(listCreateCmd, listLsCmd)
}

func runListCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	list, err := a.store.CreateList(cmd.Context(), record.ListFields{SpaceID: space.ID, Title: args[0]})
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), list, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created list %s: %s\n", list.ID, list.Title)
		return err
	})
}

func runListLs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	lists, err := a.store.Lists(cmd.Context(), space.ID)
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), lists, func(w io.Writer) error {
		if len(lists) == 0 {
			_, err := fmt.Fprintln(w, "No lists.")
			return err
		}
		now := time.Now()
		lengths := prefixLengths(lists, func(l record.List) string { return l.ID })
		builder := ui.NewTableBuilder([]string{"ID", "TITLE", "CREATED"}, len(lists))
		for _, l := range lists {
			builder.AddRow([]string{
				ui.HighlightID(l.ID, ui.PrefixLength(lengths, l.ID)),
				ui.TruncateTableCell(l.Title),
				ui.FormatTimeAgo(l.CreatedAt, now),
			})
		}
		_, err := io.WriteString(w, builder.String())
		return err
	})
}
