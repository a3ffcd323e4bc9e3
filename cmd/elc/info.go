package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show library identity, schema version and content counts",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	supported := "yes"
	if !db.IsSupported() {
		supported = "no"
	}

	fmt.Printf("Library:   %s\n", db.Directory())
	fmt.Printf("UUID:      %s\n", db.UUID())
	fmt.Printf("Schema:    %s (supported: %s)\n", db.Version(), supported)

	fmt.Printf("Music DB:  %s (%s)\n", db.MusicDBPath(), fileSize(db.MusicDBPath()))
	fmt.Printf("Perf DB:   %s (%s)\n", db.PerformanceDBPath(), fileSize(db.PerformanceDBPath()))

	if !db.IsSupported() {
		return nil
	}

	tracks, err := db.TrackCount()
	if err != nil {
		return fmt.Errorf("failed to count tracks: %w", err)
	}
	crates, err := db.CrateCount()
	if err != nil {
		return fmt.Errorf("failed to count crates: %w", err)
	}
	fmt.Printf("Tracks:    %d\n", tracks)
	fmt.Printf("Crates:    %d\n", crates)
	return nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return humanize.IBytes(uint64(info.Size()))
}
