package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
	"stackctl/internal/config"
)

var destroyDir string

// destroyCmd removes the stack's runtime and per-container state.
var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down the stack and clear its cached state",
	Long: `Removes the stack's containers, network, and named volumes from the
engine, then clears the first-start markers and cached open payloads
so the next 'stackctl start' provisions everything anew. Recorded
tokens are kept.`,
	Args: cobra.NoArgs,
	RunE: runDestroy,
}

func runDestroy(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	project, err := config.Discover(destroyDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := application.Stacks.Destroy(ctx, project); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Destroyed stack %s\n", project.Stack.Name)
	return nil
}

func newDestroyCmd() *cobra.Command {
	destroyCmd.Flags().StringVarP(&destroyDir, "dir", "d", "", "Directory to start stack discovery from (default: current directory)")
	return destroyCmd
}
