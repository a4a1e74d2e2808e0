// Package commands wires the aethersecure CLI.
package commands

import (
	"fmt"
	"os"

	"aethersecure/config"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	dataDir   string
	logLevel  string
	logFormat string
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "aethersecure [flags] command [flags]",
		Short: "Multi-scheme crypto vault",
		Long: `A vault that stores messages sealed with a classical text super-cipher,
LSB steganography or password-based AES-GCM, with bcrypt accounts and optional face match.
The text, file, stego and face commands run locally without a server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.dataDir != "" {
				return os.Setenv(config.DataDirEnv, opts.dataDir)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides "+config.DataDirEnv+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides log_level in config)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format, text or json (overrides log_format in config)")

	root.AddCommand(
		newServeCommand(opts),
		newDiscoverCommand(),
		newTextCommand(),
		newFileCommand(),
		newStegoCommand(),
		newFaceCommand(),
		newEventsCommand(),
	)

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	root := NewRootCommand(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}
