package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hydro360/internal/config"
	"hydro360/internal/db"
	"hydro360/internal/storage"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations (SQLite) or ensure indexes (MongoDB)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Database.Driver == config.DriverMongo {
				store, err := storage.Open(cmd.Context(), c.cfg.Database)
				if err != nil {
					return err
				}
				defer store.Close()
				fmt.Fprintln(c.out, "indexes are up to date")
				return nil
			}

			d, err := db.OpenRaw(c.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer d.Close()
			applied, err := db.Migrate(d)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(c.out, "no pending migrations")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(c.out, "applied %04d\n", v)
			}
			return nil
		},
	}
}

func (c *cli) rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last applied SQLite migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Database.Driver == config.DriverMongo {
				return fmt.Errorf("rollback is only supported for %s", config.DriverSQLite)
			}
			d, err := db.OpenRaw(c.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer d.Close()
			v, err := db.RollbackLast(d)
			if err != nil {
				return err
			}
			if v == 0 {
				fmt.Fprintln(c.out, "nothing to roll back")
				return nil
			}
			fmt.Fprintf(c.out, "rolled back %04d\n", v)
			return nil
		},
	}
}
