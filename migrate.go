package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"ms-events/internal/database"
	"ms-events/internal/database/migrations"
	"ms-events/internal/kafka"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	run := func(fn func(r *migrations.Runner) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Database.Driver != "postgres" {
				return errors.New("migrations apply to DB_DRIVER=postgres only")
			}

			runner := migrations.NewRunner(a.db, a.log)
			defer runner.Close()
			return fn(runner)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  run(func(r *migrations.Runner) error { return r.MigrateUp() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE:  run(func(r *migrations.Runner) error { return r.MigrateDown() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return run(func(r *migrations.Runner) error { return r.MigrateTo(uint(version)) })(cmd, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: run(func(r *migrations.Runner) error {
			version, dirty, ok, err := r.Version()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no migrations applied")
				return nil
			}
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
			return nil
		}),
	})
	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample events into an empty store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.prepareSchema(ctx); err != nil {
				return fmt.Errorf("failed to prepare schema: %w", err)
			}
			created, err := database.Seed(ctx, a.db, a.sports, a.repo, a.log)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d events\n", created)
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print lifecycle notifications from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.TopicPrefix, a.cfg.Kafka.GroupID, a.log)
			defer consumer.Close()

			return consumer.Run(ctx, func(n kafka.Notification) {
				if n.Event != nil {
					fmt.Printf("%s\t%d\t%s\t%v\n", n.Action, n.EventID, n.Event.ShortName, n.Event.Venues)
					return
				}
				fmt.Printf("%s\t%d\n", n.Action, n.EventID)
			})
		},
	}
}
