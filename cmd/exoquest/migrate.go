package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/exoquest/internal/db"
)

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <" + strings.Join(db.MigrateActions, "|") + "> [version]",
		Short: "Manage the run history database schema",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DB.Path == "" {
				return fmt.Errorf("run history is disabled: set db.path or --db")
			}
			database, err := db.OpenDB(a.cfg.DB.Path)
			if err != nil {
				return err
			}
			defer database.Close()
			return db.RunMigrate(database, db.Migrations(), args[0], args[1:], cmd.OutOrStdout())
		},
	}
}
