package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
	"stackctl/internal/config"
)

var configDir string

// configCmd prints the run config documents the containers would
// receive, without writing them or touching the engine.
var configCmd = &cobra.Command{
	Use:   "config [container]",
	Short: "Print rendered run configs",
	Long: `Renders the per-container run config documents from the stack
definition and any cached open payloads, then prints them without
writing anything. With a container name only that document is printed;
otherwise every document is printed as one JSON object keyed by
container name.

The printed documents are exactly what 'stackctl start' would write on
a container's first start: rendering is deterministic, so identical
definitions produce byte-identical output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(appConfig())
	if err != nil {
		return err
	}
	defer application.Close()

	project, err := config.Discover(configDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	docs, err := application.Stacks.Render(ctx, project)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		doc, ok := docs[args[0]]
		if !ok {
			return fmt.Errorf("no container named %q in stack %s", args[0], project.Stack.Name)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(doc))
		return nil
	}

	combined := make(map[string]json.RawMessage, len(docs))
	for name, doc := range docs {
		combined[name] = json.RawMessage(doc)
	}
	out, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to combine run configs: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd.Flags().StringVarP(&configDir, "dir", "d", "", "Directory to start stack discovery from (default: current directory)")
	return configCmd
}
