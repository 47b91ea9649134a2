package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) settingsCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print confwatch's own settings",
		Long: `Print the effective settings read from ~/.confwatch/config.yaml, with defaults
filled in. --save writes them back, creating the file if it does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.settings.Load()
			if err != nil {
				return err
			}
			if save {
				if err := a.settings.Save(cfg); err != nil {
					return err
				}
				color.New(color.FgGreen, color.Bold).Fprintf(a.out, "✓ Saved %s\n", a.settings.Path())
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding settings: %w", err)
			}
			color.New(color.Faint).Fprintf(a.out, "# %s\n", a.settings.Path())
			_, err = a.out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write the effective settings to the settings file")
	return cmd
}
