package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

type parseOutput struct {
	Columns  []string              `json:"columns"`
	Channels []models.TraceChannel `json:"channels"`
	Rows     []json.RawMessage     `json:"rows"`
	Total    int                   `json:"total"`
}

func newParseCmd() *cobra.Command {
	var (
		layout  = vcsv.DefaultLayout()
		limit   int
		channel int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Reshape a vcsv export into its long-form table",
		Long: `Read the channel entries from the metadata line of a vcsv export and
print one row per sample: time, value, signal, the union of parameter
names, then channel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tbl, err := vcsv.Load(f, layout)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			log.Debug().
				Str("file", args[0]).
				Int("channels", tbl.NumChannels()).
				Int("samples", tbl.SamplesPerChannel()).
				Msg("Export loaded")

			rows := tbl.Rows
			if channel >= 0 {
				if channel >= tbl.NumChannels() {
					return fmt.Errorf("channel %d out of range, export has %d channels", channel, tbl.NumChannels())
				}
				rows = tbl.Channel(channel)
			}
			total := len(rows)
			if limit > 0 && limit < len(rows) {
				rows = rows[:limit]
			}

			if asJSON {
				encoded, err := models.EncodeRows(rows)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(parseOutput{
					Columns:  tbl.Columns(),
					Channels: models.ChannelsFromRecords(tbl.Records),
					Rows:     encoded,
					Total:    total,
				})
			}

			renderRows(cmd, tbl, rows, total)
			return nil
		},
	}

	cmd.Flags().IntVar(&layout.MetadataRow, "metadata-row", layout.MetadataRow, "1-based line holding the channel entries")
	cmd.Flags().IntVar(&layout.SkipRows, "skip-rows", layout.SkipRows, "lines preceding the numeric block")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows printed, 0 for all")
	cmd.Flags().IntVar(&channel, "channel", -1, "only print this channel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")

	return cmd
}

func renderRows(cmd *cobra.Command, tbl *vcsv.Table, rows []vcsv.Row, total int) {
	columns := tbl.Columns()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, r := range rows {
		line := table.Row{r.Time, r.Value, r.Signal}
		for _, key := range tbl.ParamKeys {
			if v, ok := r.Param(key); ok {
				line = append(line, v.String())
			} else {
				line = append(line, "")
			}
		}
		line = append(line, r.Channel)
		t.AppendRow(line)
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d of %d rows", len(rows), total)})
	t.SetStyle(table.StyleLight)
	t.Render()
}
