package main

import (
	"fmt"

	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check both store schemas against their declared version",
	Long: `Verify that every expected table and column exists in both stores
with the declared column types, and that the two stores agree on the
library's version and identity.

The exit status is non-zero when any check fails; the first mismatch is
named in the error.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Verify(); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	util.SuccessLog("Library at %s verifies clean as schema %s", db.Directory(), db.Version())
	return nil
}
