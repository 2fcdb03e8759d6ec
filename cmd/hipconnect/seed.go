package main

import (
	"github.com/spf13/cobra"

	"github.com/pysugar/hipchat-connect/internal/db"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or update addons, scopes and glances from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path := seedFile
		if path == "" {
			path = a.cfg.Seed.Path
		}
		if path == "" {
			return cmd.Usage()
		}
		res, err := db.SeedFromPath(a.db, path, a.log)
		if err != nil {
			return err
		}
		a.log.Info("seed complete", "path", path, "scopes", res.Scopes, "addons", res.Addons, "glances", res.Glances)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed file (defaults to seed.path)")
}
