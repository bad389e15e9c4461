// Command hydroctl administers a Hydro360 deployment: schema migrations and
// staff accounts.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hydro360/internal/config"
	"hydro360/internal/logging"
)

type cli struct {
	out      io.Writer
	cfg      *config.Config
	driver   string
	dbPath   string
	mongoURI string
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "hydroctl",
		Short:         "Hydro360 administration CLI",
		Long:          `Applies database migrations and manages staff accounts of a Hydro360 deployment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.driver, "driver", "", "store driver (sqlite or mongo); overrides DB_DRIVER")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path; overrides DB_PATH")
	root.PersistentFlags().StringVar(&c.mongoURI, "mongo-uri", "", "MongoDB connection string; overrides MONGODB_URI")

	root.AddCommand(c.migrateCmd(), c.rollbackCmd(), c.userCmd())
	return root
}

func (c *cli) loadConfig() error {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.driver != "" {
		cfg.Database.Driver = c.driver
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}
	if c.mongoURI != "" {
		cfg.Database.MongoURI = c.mongoURI
	}
	logging.Init(logging.Config{Level: "warn", Format: "console", Output: os.Stderr})
	c.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
