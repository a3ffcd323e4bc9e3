package main

import (
	"fmt"

	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty library",
	Long: `Create a new library at the configured directory.

Both store files (m.db and p.db) are written with matching schemas and a
shared library identifier. The directory must not already contain a
library.`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("schema", enginelib.VersionLatest.String(),
		"schema version to create (e.g. 1.6.0, 1.7.1)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	schema, _ := cmd.Flags().GetString("schema")
	version, err := enginelib.ParseVersion(schema)
	if err != nil {
		return fmt.Errorf("invalid --schema value: %w", err)
	}

	path := libraryPath()
	db, err := enginelib.Create(path, version)
	if err != nil {
		return fmt.Errorf("failed to create library: %w", err)
	}
	defer db.Close()

	util.SuccessLog("Created %s library at %s", db.Version(), path)
	util.InfoLog("Library UUID: %s", db.UUID())
	return nil
}
