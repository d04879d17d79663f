package main

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"csvload/internal/probe"
)

type probeFlagValues struct {
	backend string
	name    string
	comma   string
	maxRows int
	out     string
	yaml    bool
}

func newProbeCmd() *cobra.Command {
	var flags probeFlagValues
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Infer column types from a file and print a starter pipeline config",
		Long: `Probe reads the file, infers one type per column and prints a pipeline config
that pins those types in storage.db.columns. A column summary goes to stderr.

Examples:
  csvload probe ./data/spotify_artists.csv > configs/pipelines/spotify_artists.json
  csvload probe ./data/albums.csv --backend postgres --yaml -o albums.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comma, size := utf8.DecodeRuneInString(flags.comma)
			switch {
			case flags.comma == `\t`:
				comma = '\t'
			case flags.comma == "" || size != len(flags.comma):
				return fmt.Errorf("--comma must be a single character, got %q", flags.comma)
			}

			res, err := probe.Probe(cmd.Context(), probe.Options{
				Path:    args[0],
				Comma:   comma,
				Name:    flags.name,
				Backend: flags.backend,
				MaxRows: flags.maxRows,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.ErrOrStderr(), res.Report())

			var data []byte
			if flags.yaml {
				data, err = yaml.Marshal(res.Pipeline)
			} else {
				data, err = json.MarshalIndent(res.Pipeline, "", "  ")
				data = append(data, '\n')
			}
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			if flags.out == "" || flags.out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(flags.out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&flags.backend, "backend", "mysql", "storage backend: mysql|postgres|mssql|sqlite")
	cmd.Flags().StringVar(&flags.name, "name", "", "job and table name (default: file name)")
	cmd.Flags().StringVar(&flags.comma, "comma", ",", `CSV delimiter (use \t for tab)`)
	cmd.Flags().IntVar(&flags.maxRows, "max-rows", probe.DefaultMaxRows, "rows used for type inference")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "write the config here instead of stdout")
	cmd.Flags().BoolVar(&flags.yaml, "yaml", false, "emit YAML instead of JSON")
	return cmd
}
