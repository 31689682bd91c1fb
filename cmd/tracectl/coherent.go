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

type coherentRow struct {
	Target    float64 `json:"target"`
	Frequency float64 `json:"frequency"`
	Cycles    int     `json:"cycles"`
}

func newCoherentCmd() *cobra.Command {
	var (
		fs     float64
		n      int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "coherent F0...",
		Short: "Snap target frequencies onto coherent bins",
		Long: `Print the coherent frequency nearest below each target F0 for a sample
rate and window length. The cycle count K is coprime with the window
length unless the single downward step could not reach one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := make([]float64, len(args))
			for i, a := range args {
				f, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("target %q is not a number", a)
				}
				targets[i] = f
			}

			freqs, ks, err := coherent.SelectSlice(targets, fs, n)
			if err != nil {
				return err
			}
			log.Debug().Float64("fs", fs).Int("n", n).Int("targets", len(targets)).Msg("Selected coherent frequencies")

			rows := make([]coherentRow, len(targets))
			for i := range targets {
				rows[i] = coherentRow{Target: targets[i], Frequency: freqs[i], Cycles: ks[i]}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"f0 (Hz)", "coherent (Hz)", "K"})
			for _, r := range rows {
				t.AppendRow(table.Row{
					strconv.FormatFloat(r.Target, 'g', -1, 64),
					strconv.FormatFloat(r.Frequency, 'g', -1, 64),
					r.Cycles,
				})
			}
			t.AppendFooter(table.Row{"fs " + strconv.FormatFloat(fs, 'g', -1, 64), "N " + strconv.Itoa(n), ""})
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}

	cmd.Flags().Float64Var(&fs, "fs", 0, "sample rate in Hz")
	cmd.Flags().IntVarP(&n, "n", "n", 4096, "window length in samples")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	_ = cmd.MarkFlagRequired("fs")

	return cmd
}
