package main

import (
	"fmt"

	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/cobra"
)

var cratesCmd = &cobra.Command{
	Use:   "crates",
	Short: "Show the crate hierarchy as a tree",
	RunE:  runCrates,
}

func init() {
	rootCmd.AddCommand(cratesCmd)
}

func runCrates(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	roots, err := db.RootCrates()
	if err != nil {
		return fmt.Errorf("failed to list root crates: %w", err)
	}
	if len(roots) == 0 {
		util.InfoLog("Library has no crates")
		return nil
	}

	fmt.Println(".")
	for i, root := range roots {
		if err := printCrateTree(root, "", i == len(roots)-1); err != nil {
			return err
		}
	}
	return nil
}

func printCrateTree(crate *enginelib.Crate, prefix string, isLast bool) error {
	connector, extension := "├── ", "│   "
	if isLast {
		connector, extension = "└── ", "    "
	}

	ids, err := crate.TrackIDs()
	if err != nil {
		return fmt.Errorf("failed to list members of crate %d: %w", crate.ID(), err)
	}

	label := fmt.Sprintf("%s [%d]", crate.Name(), crate.ID())
	if len(ids) > 0 {
		label += fmt.Sprintf(" (%d tracks)", len(ids))
	}
	fmt.Println(prefix + connector + label)

	children, err := crate.Children()
	if err != nil {
		return fmt.Errorf("failed to list children of crate %d: %w", crate.ID(), err)
	}
	for i, child := range children {
		if err := printCrateTree(child, prefix+extension, i == len(children)-1); err != nil {
			return err
		}
	}
	return nil
}
