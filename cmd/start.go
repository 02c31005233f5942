package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
	"stackctl/internal/config"
)

// startDir is where stack discovery begins. Discovery walks up from
// here until it finds a stack file.
var startDir string

// startToken records a fresh access token before the run, the same
// flow as `stackctl token add`.
var startToken string

// startCmd defines the start command structure.
// This is the main command of stackctl: it provisions the stack's
// containers, writes first-start run configs, and opens the
// applications against their backing services.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Provision the stack and open its applications",
	Long: `Starts the stack whose definition is found at or above the current
directory (or --dir) and runs the full lifecycle:

1. Normalize the stack and application definitions.
2. Resolve each application's relationships against the declared services.
3. Write per-container run configs on each container's first start.
4. Provision the containers on the configured engine.
5. Probe backing services and open every application with the collected
   endpoint data.

Probe failures are isolated per service or application and reported in
the final summary; they do not abort the rest of the run. Subsequent
starts reuse the stack's persisted state, so a container's run config
is written exactly once until 'stackctl rebuild' or 'stackctl destroy'
clears it.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

// runStart is the main entry point for the start command
func runStart(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	project, err := config.Discover(startDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if startToken != "" {
		record, err := application.Tokens.Refresh(ctx, startToken, project.Stack.Name, nil)
		if err != nil {
			return fmt.Errorf("failed to record token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded token for %s\n", record.Identity)
	}

	report, err := application.Stacks.Up(ctx, project)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

// newStartCmd registers the start command and its flags.
func newStartCmd() *cobra.Command {
	startCmd.Flags().StringVarP(&startDir, "dir", "d", "", "Directory to start stack discovery from (default: current directory)")
	startCmd.Flags().StringVar(&startToken, "token", "", "Validate and record this access token before starting")
	return startCmd
}
