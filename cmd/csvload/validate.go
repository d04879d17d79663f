package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"csvload/internal/config"
	"csvload/internal/storage"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(cmd)
			p, err := config.Load(path)
			if err != nil {
				return err
			}

			issues := config.ValidatePipeline(p)
			issues = append(issues, config.ValidateBackend(p.Storage.Kind, storage.Kinds())...)
			for _, iss := range issues {
				fmt.Fprintln(cmd.ErrOrStderr(), iss.String())
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("configuration is invalid: %s", path)
			}
			if verboseFlag(cmd) {
				log.Printf("Configuration is valid: %v", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", path)
			return nil
		},
	}
}
