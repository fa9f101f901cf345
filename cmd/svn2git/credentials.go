package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acolita/svn2git/internal/adapters/realterm"
	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/security"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage SVN passwords stored in the OS keyring",
		Long: `Store or remove the SVN password used with --password-method=keyring.
Entries are keyed by repository URL and username.`,
	}
	cmd.AddCommand(newCredentialsSetCmd(), newCredentialsDeleteCmd())
	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set SVN_URL USERNAME",
		Short: "Read a password from the terminal and store it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storePassword(cmd, security.NewKeyringStore(), realterm.New(os.Stdin, os.Stderr), args[0], args[1])
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SVN_URL USERNAME",
		Short: "Remove a stored password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := security.NewKeyringStore().DeleteSVNPassword(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted the password of %s for %s.\n", args[1], args[0])
			return nil
		},
	}
}

func storePassword(cmd *cobra.Command, store ports.SecretStore, term ports.Terminal, repository, user string) error {
	fmt.Fprintf(term, "Password for %s at %s: ", user, repository)
	secret, err := term.ReadSecret(cmd.Context())
	if err != nil {
		return err
	}
	defer security.WipeBytes(secret)

	if len(secret) == 0 {
		return fmt.Errorf("empty password, nothing stored")
	}
	if err := store.StoreSVNPassword(repository, user, secret); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored the password of %s for %s.\n", user, repository)
	return nil
}
