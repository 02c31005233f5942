package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
	"stackctl/internal/config"
)

var openDir string

// openCmd re-runs the open protocol against an already provisioned
// stack. Run configs and containers are left untouched.
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Re-run the open protocol on a running stack",
	Long: `Collects live container facts, probes the backing services, and opens
every application again without writing run configs or provisioning
containers. Use this to repair relationship state after a service came
up late or a probe failed during 'stackctl start'.`,
	Args: cobra.NoArgs,
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	project, err := config.Discover(openDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := application.Stacks.Open(ctx, project)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func newOpenCmd() *cobra.Command {
	openCmd.Flags().StringVarP(&openDir, "dir", "d", "", "Directory to start stack discovery from (default: current directory)")
	return openCmd
}
