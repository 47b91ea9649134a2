package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/filesys"
)

// ErrExists is returned by init when the target exists and --force is unset.
var ErrExists = errors.New("file already exists")

func (a *app) initCmd() *cobra.Command {
	var (
		file    string
		appName string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a complete, valid configuration to the given path. The format follows
the file extension (.yaml/.yml or JSON). Existing files are kept unless --force
is given; the file is replaced atomically either way.`,
		Example: "confwatch init -f config.json --app-name billing",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if appName == "" {
				appName = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}
			if err := writeExample(filesys.OS(), file, appName, force); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Fprintf(a.out, "✓ Wrote %s\n", file)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "path of the file to create")
	f.StringVar(&appName, "app-name", "", "app_name to write (default: file name without extension)")
	f.BoolVar(&force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type exampleFS interface {
	filesys.FileOps
	Stat(path string) (os.FileInfo, error)
}

func writeExample(fsys exampleFS, file, appName string, force bool) error {
	if !force {
		_, err := fsys.Stat(file)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, file)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("checking %s: %w", file, err)
		}
	}

	data, err := encodeExample(appconfig.FormatForPath(file), appconfig.Example(appName))
	if err != nil {
		return err
	}
	if err := filesys.AtomicWrite(fsys, file, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}
	return nil
}

func encodeExample(format appconfig.Format, cfg *appconfig.Config) ([]byte, error) {
	switch format {
	case appconfig.FormatYAML:
		return yaml.Marshal(cfg)
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}
