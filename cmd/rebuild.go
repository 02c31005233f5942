package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
	"stackctl/internal/config"
)

var rebuildDir string

// rebuildCmd tears the stack down and starts it from scratch, so every
// container counts as a first start again.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Destroy the stack and start it from scratch",
	Long: `Destroys the stack's containers, clears the first-start markers and
cached open payloads, then runs a fresh start. Run configs are
regenerated, so definition changes that 'stackctl start' would skip
over (the write-once guard) take effect. Recorded tokens survive a
rebuild.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	project, err := config.Discover(rebuildDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := application.Stacks.Rebuild(ctx, project)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func newRebuildCmd() *cobra.Command {
	rebuildCmd.Flags().StringVarP(&rebuildDir, "dir", "d", "", "Directory to start stack discovery from (default: current directory)")
	return rebuildCmd
}
