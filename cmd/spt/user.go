package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amonks/spacetodo/internal/ui"
	"github.com/amonks/spacetodo/record"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userCreateEmail string

var userLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Show users",
	Args:  cobra.NoArgs,
	RunE:  runUserLs,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userLsCmd)
	userCreateCmd.Flags().StringVar(&userCreateEmail, "email", "", "email address")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.store.CreateUser(cmd.Context(), record.UserFields{Name: args[0], Email: userCreateEmail})
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), user, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created user %s: %s\n", user.ID, user.Name)
		return err
	})
}

func runUserLs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.store.Users(cmd.Context())
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), users, func(w io.Writer) error {
		if len(users) == 0 {
			_, err := fmt.Fprintln(w, "No users.")
			return err
		}
		lengths := prefixLengths(users, func(u record.User) string { return u.ID })
		builder := ui.NewTableBuilder([]string{"ID", "NAME", "EMAIL"}, len(users))
		for _, u := range users {
			builder.AddRow([]string{ui.HighlightID(u.ID, ui.PrefixLength(lengths, u.ID)), u.Name, u.Email})
		}
		_, err := io.WriteString(w, builder.String())
		return err
	})
}
