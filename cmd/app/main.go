package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/config"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/logging"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/proto"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/service"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/transport"
)

var base = fx.Options(
	fx.Provide(
		config.NewConfig,
		logging.NewLogger,
		db.NewGormClient,
	),
	fx.NopLogger,
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linker",
		Short: "User-owned links service",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				base,
				fx.Provide(
					service.NewGeneral,
					service.NewIssues,
					service.NewLinks,
				),
				transport.Module,
				proto.Module,
				fx.Invoke(func(conn *gorm.DB, logger *zap.SugaredLogger) error {
					if !migrate {
						return nil
					}
					logger.Info("Running migrations.")
					return db.Migrate(conn)
				}),
				fx.Invoke(func(*transport.HTTPServer, *proto.LinksServerImpl) {}),
			).Run()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run migrations before starting")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			app := fx.New(base, fx.Populate(&conn))
			if err := app.Err(); err != nil {
				return errors.Wrap(err, "init")
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return errors.Wrap(err, "start")
			}
			defer app.Stop(ctx)

			return db.Migrate(conn)
		},
	}
}
