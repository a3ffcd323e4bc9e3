package main

import (
	"fmt"

	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Migrate the library schema to a newer version",
	Long: `Migrate both stores forward through every intermediate schema version
up to the target. Downgrades are refused; upgrading to the current
version is a no-op.`,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().String("to", enginelib.VersionLatest.String(), "target schema version")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	targetStr, _ := cmd.Flags().GetString("to")
	target, err := enginelib.ParseVersion(targetStr)
	if err != nil {
		return fmt.Errorf("invalid --to value: %w", err)
	}

	from := db.Version()
	if from == target {
		util.InfoLog("Library is already at schema %s", target)
		return nil
	}

	util.InfoLog("Upgrading library at %s: %s -> %s", db.Directory(), from, target)
	if err := db.UpgradeTo(target); err != nil {
		return fmt.Errorf("upgrade failed: %w", err)
	}

	util.SuccessLog("Library upgraded to schema %s", db.Version())
	return nil
}
