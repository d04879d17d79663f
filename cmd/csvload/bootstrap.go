package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"csvload/internal/config"
	"csvload/internal/dbcontainer"
)

type bootstrapFlagValues struct {
	keep           bool
	load           bool
	port           int
	image          string
	metricsBackend string
}

func newBootstrapCmd() *cobra.Command {
	var flags bootstrapFlagValues
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Start a local MySQL container and optionally load into it",
		Long: `Bootstrap starts a MySQL server in Docker with root password $MYSQL_ROOT_PASSWORD
(default "mysql") and database "spotify", waits until it accepts connections and
prints its DSN.

With --load the configured pipeline is run against it, with the storage section
replaced by the container's connection. With --keep the container stays up until
interrupted; otherwise it is removed before exit.

Examples:
  csvload bootstrap --keep
  csvload bootstrap --load -c configs/pipelines/spotify_artists.json --port 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := containerOptions(flags, os.Getenv("MYSQL_ROOT_PASSWORD"))
			log.Printf("bootstrap: starting %s", opts.Image)
			m, err := dbcontainer.StartMySQL(ctx, opts)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			defer func() {
				// ctx may already be cancelled by the interrupt.
				tctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := m.Terminate(tctx); err != nil {
					log.Printf("bootstrap: terminate: %v", err)
				}
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "mysql ready: %s\n", m.DSN())

			if flags.load {
				p, err := loadPipeline(cmd)
				if err != nil {
					return err
				}
				pointAtContainer(&p, m)
				if err := runLoad(ctx, cmd, p, flags.metricsBackend); err != nil {
					return err
				}
			}

			if flags.keep {
				log.Printf("bootstrap: container running, press Ctrl+C to stop")
				<-ctx.Done()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.keep, "keep", false, "keep the container running until interrupted")
	cmd.Flags().BoolVar(&flags.load, "load", false, "run the configured pipeline against the container")
	cmd.Flags().IntVar(&flags.port, "port", dbcontainer.DefaultHostPort, "host port to publish on 127.0.0.1 (0 = random)")
	cmd.Flags().StringVar(&flags.image, "image", dbcontainer.DefaultImage, "MySQL image")
	cmd.Flags().StringVar(&flags.metricsBackend, "metrics-backend", "", "metrics backend for --load: none|datadog")
	return cmd
}

func containerOptions(flags bootstrapFlagValues, rootPassword string) dbcontainer.Options {
	return dbcontainer.Options{
		Image:        flags.image,
		RootPassword: rootPassword,
		Database:     config.DefaultDatabase,
		HostPort:     flags.port,
		RandomPort:   flags.port == 0,
	}
}

// pointAtContainer replaces the pipeline's storage connection with m.
func pointAtContainer(p *config.Pipeline, m *dbcontainer.MySQL) {
	p.Storage.Kind = "mysql"
	db := &p.Storage.DB
	conn := m.ConnParams()
	db.DSN = ""
	db.Host = conn.Host
	db.Port = conn.Port
	db.User = conn.User
	db.Password = conn.Password
	db.Database = conn.Database
}
