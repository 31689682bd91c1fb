// Command tracectl selects coherent test frequencies and inspects vcsv
// exports from the terminal.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "tracectl",
		Short: "Coherent frequency selection and vcsv inspection",
		Long: `tracectl prepares stimulus frequencies and reads simulator exports.

Available commands:
  coherent - snap target frequencies onto coherent bins
  stimulus - render a coherent sine window
  parse    - reshape a vcsv export into its long-form table`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCoherentCmd(), newStimulusCmd(), newParseCmd())
	return root
}
