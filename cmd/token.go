package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
)

// tokenCmd groups the access token subcommands.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage access tokens",
	Long: `Manage the access tokens stackctl records for the account API.

Tokens are validated against the account API before they are stored;
a rejected token is never recorded. The stored list keeps one record
per account identity, newest first, and is shared with the --token
flag of 'stackctl start': recording a token through either path never
discards records added through the other.`,
}

// tokenAddCmd validates and records one token.
var tokenAddCmd = &cobra.Command{
	Use:   "add <token>",
	Short: "Validate and record an access token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenAdd,
}

// tokenListCmd prints the recorded tokens.
var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded tokens",
	Args:  cobra.NoArgs,
	RunE:  runTokenList,
}

func runTokenAdd(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	record, err := application.Tokens.Refresh(ctx, args[0], "", nil)
	if err != nil {
		return fmt.Errorf("failed to record token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded token for %s\n", record.Identity)
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := application.Tokens.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tokens recorded.")
		return nil
	}
	for _, record := range records {
		issued := time.Unix(record.IssuedAt, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", record.Identity, issued)
	}
	return nil
}

func newTokenCmd() *cobra.Command {
	tokenCmd.AddCommand(tokenAddCmd)
	tokenCmd.AddCommand(tokenListCmd)
	return tokenCmd
}
