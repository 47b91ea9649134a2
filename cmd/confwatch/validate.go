package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/config"
	"github.com/lc/confwatch/internal/watcher"
)

func (a *app) validateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file once",
		Long: `Run the same read, parse and validate pipeline the watcher uses, print a
summary of the result and exit non-zero if the file is not valid.`,
		Example: "confwatch validate -f config.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := watcher.New(file, config.DefaultInterval)
			cfg, digest, err := w.Check(cmd.Context())
			if err != nil {
				color.New(color.FgHiRed, color.Bold).Fprint(a.errOut, "✗ ")
				fmt.Fprintf(a.errOut, "%v (%s)\n", err, watcher.KindOf(err))
				return err
			}

			color.New(color.FgGreen, color.Bold).Fprintf(a.out, "✓ %s is valid\n", file)
			rows := configRows(cfg)
			rows = append(rows, []string{"Digest", strconv.FormatUint(digest, 16)})
			renderTable(a.out, []string{"Field", "Value"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the configuration file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// configRows lays out cfg as Field/Value rows.
func configRows(cfg *appconfig.Config) [][]string {
	sum := cfg.Summarize()
	rows := [][]string{
		{"App", sum.AppName},
		{"Version", sum.Version},
		{"Environment", string(sum.Environment)},
	}
	if sum.HasServer {
		rows = append(rows, []string{"Server", sum.Server})
	}
	if sum.HasDatabase {
		rows = append(rows, []string{"Database", sum.Database})
	}
	if sum.FeatureCount > 0 {
		enabled := cfg.EnabledFeatures()
		value := fmt.Sprintf("%d of %d enabled", len(enabled), sum.FeatureCount)
		if len(enabled) > 0 {
			value += ": " + strings.Join(enabled, ", ")
		}
		rows = append(rows, []string{"Features", value})
	}
	return rows
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	headerColors := make([]tablewriter.Colors, len(header))
	for i := range headerColors {
		headerColors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor}
	}
	table.SetHeaderColor(headerColors...)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
