package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"csvload/internal/config"
)

const defaultConfigPath = "configs/pipelines/spotify_artists.json"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "csvload",
		Short: "Load a CSV file into a relational database table",
		Long: `csvload reads one delimited file (or XLSX sheet), infers a column type for
every header, and writes all rows into a single table in one transaction.

Backends: mysql, postgres, mssql, sqlite.

Exit Codes:
  0  - Success
  1  - Any error (config, parse, coercion, or database)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Printf("env: load .env: %v", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "pipeline config path (.json, .yaml or .yml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logs")

	root.AddCommand(
		newLoadCmd(),
		newValidateCmd(),
		newHeadCmd(),
		newBootstrapCmd(),
		newProbeCmd(),
	)
	return root
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func verboseFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}

// loadPipeline reads the --config file.
func loadPipeline(cmd *cobra.Command) (config.Pipeline, error) {
	return config.Load(configPath(cmd))
}
