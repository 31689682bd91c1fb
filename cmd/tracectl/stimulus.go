package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/tracelab/pkg/coherent"
)

type stimulusOutput struct {
	Target    float64   `json:"target"`
	Frequency float64   `json:"frequency"`
	Cycles    int       `json:"cycles"`
	Samples   []float64 `json:"samples"`
}

func newStimulusCmd() *cobra.Command {
	var (
		fs        float64
		n         int
		amplitude float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "stimulus F0",
		Short: "Render a coherent sine window",
		Long: `Print n samples of a sine at the coherent frequency selected for F0.
The window holds a whole number of cycles, so it repeats without a
discontinuity. Output is CSV with index and sample columns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f0, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("target %q is not a number", args[0])
			}

			samples, freq, k, err := coherent.Stimulus(f0, fs, n, amplitude)
			if err != nil {
				return err
			}
			log.Debug().Float64("frequency", freq).Int("cycles", k).Int("n", n).Msg("Rendered stimulus")

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stimulusOutput{Target: f0, Frequency: freq, Cycles: k, Samples: samples})
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"index", "sample"})
			for i, s := range samples {
				t.AppendRow(table.Row{i, strconv.FormatFloat(s, 'g', -1, 64)})
			}
			t.RenderCSV()
			return nil
		},
	}

	cmd.Flags().Float64Var(&fs, "fs", 0, "sample rate in Hz")
	cmd.Flags().IntVarP(&n, "n", "n", 4096, "window length in samples")
	cmd.Flags().Float64Var(&amplitude, "amplitude", 1, "peak amplitude")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of CSV")
	_ = cmd.MarkFlagRequired("fs")

	return cmd
}
