package cmd

import (
	"context"

	"github.com/vibast-solutions/ms-go-skywatch/config"
	"github.com/vibast-solutions/ms-go-skywatch/migrations"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long:  `Apply the SkyWatch MySQL schema. Existing tables are left untouched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadForCLI()
		if err != nil {
			return err
		}
		if err = configureLogging(cfg); err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := openDB(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer db.Close()

		if err = migrations.Apply(ctx, db); err != nil {
			return err
		}
		logrus.WithField("tables", len(migrations.Steps)).Info("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
