package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/spacetodo/internal/ui"
	"github.com/amonks/spacetodo/record"
)

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage spaces",
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create <slug> [title]",
	Short: "Create a space",
	Long: `Create a space.

The slug names the space in other commands. The title defaults to the slug.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSpaceCreate,
}

var spaceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List spaces",
	Args:    cobra.NoArgs,
	RunE:    runSpaceList,
}

func init() {
	rootCmd.AddCommand(spaceCmd)
	spaceCmd.AddCommand(spaceCreateCmd, spaceListCmd)
}

func runSpaceCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fields := record.SpaceFields{Slug: args[0], Title: args[0]}
	if len(args) > 1 {
		fields.Title = args[1]
	}
	space, err := a.store.CreateSpace(cmd.Context(), fields)
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), space, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created space %s (%s)\n", space.Slug, space.Title)
		return err
	})
}

func runSpaceList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	spaces, err := a.store.Spaces(cmd.Context())
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), spaces, func(w io.Writer) error {
		if len(spaces) == 0 {
			_, err := fmt.Fprintln(w, "No spaces.")
			return err
		}
		now := time.Now()
		builder := ui.NewTableBuilder([]string{"SLUG", "TITLE", "CREATED"}, len(spaces))
		for _, s := range spaces {
			builder.AddRow([]string{s.Slug, ui.TruncateTableCell(s.Title), ui.FormatTimeAgo(s.CreatedAt, now)})
		}
		_, err := io.WriteString(w, builder.String())
		return err
	})
}

// flagSpace is the --space flag shared by commands that work inside a
// space.
var flagSpace string

func addSpaceFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&flagSpace, "space", "s", "", "slug of the space to work in")
}

func requireSpace(a *app, cmd *cobra.Command) (record.Space, error) {
	slug := strings.TrimSpace(flagSpace)
	if slug == "" {
		return record.Space{}, exitWith(exitUsage, fmt.Errorf("--space is required"))
	}
	space, err := a.store.SpaceBySlug(cmd.Context(), slug)
	if err != nil {
		return record.Space{}, classify(err)
	}
	return space, nil
}
