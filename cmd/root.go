package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
)

// Logging flags apply to every subcommand.
var rootLogLevel string
var rootLogFormat string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Provision and open multi-container development stacks",
	Long: `stackctl provisions the containers declared by a stack definition and
runs the two-phase open bootstrap that hands every application the
endpoints of its backing services as structured relationship data.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed probes)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "stackctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// appConfig translates the root flags into the application configuration.
func appConfig() *app.Config {
	return app.NewConfig(rootLogLevel, rootLogFormat)
}

func init() {
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newOpenCmd())
	rootCmd.AddCommand(newRebuildCmd())
	rootCmd.AddCommand(newDestroyCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "text", "Log output format (text or json)")
}
