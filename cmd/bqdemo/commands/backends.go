package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/spf13/cobra"
)

func newBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered pool backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backends := pool.Backends()
			if len(backends) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pool backends registered.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tAVAILABLE")
			for _, b := range backends {
				fmt.Fprintf(w, "%s\t%d\t%t\n", b.Name, b.Priority, b.Available())
			}
			return w.Flush()
		},
	}
}
