package commands

import (
	"log/slog"

	"github.com/gogpu/bufferqueue"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the bqdemo command tree.
func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "bqdemo",
		Short: "Buffer queue producer demo",
		Long: `bqdemo drives a buffer queue producer through a series of frames
against a selected pool backend and acts as the consumer.

Queue tunables and the frame plan can be given as flags or in a YAML file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				bufferqueue.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log queue and pool activity to stderr")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newBackendsCommand())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
