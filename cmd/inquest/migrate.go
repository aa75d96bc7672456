package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/inquestlab/inquest/config"
	srv "github.com/inquestlab/inquest/internal/server"
	"github.com/inquestlab/inquest/internal/store"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var migDirDefault = "file://migrations"
	var direction string
	var steps int
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn := store.DSN(
				cfg.Storage.Postgres.URL,
				cfg.Storage.Postgres.Host,
				strconv.Itoa(cfg.Storage.Postgres.Port),
				cfg.Storage.Postgres.User,
				cfg.Storage.Postgres.Password,
				cfg.Storage.Postgres.DBName,
				cfg.Storage.Postgres.SSLMode,
			)
			if migDir == "" {
				migDir = migDirDefault
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", migDirDefault, "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrate
}
