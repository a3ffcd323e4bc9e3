package main

import (
	"fmt"
	"time"

	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/cobra"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the tracks in the library",
	Long: `List tracks with their metadata.

By default all tracks are listed; --crate restricts the listing to the
members of one crate.`,
	RunE: runTracks,
}

func init() {
	rootCmd.AddCommand(tracksCmd)

	tracksCmd.Flags().Int64("crate", 0, "list only the members of this crate id")
}

func runTracks(cmd *cobra.Command, args []string) error {
	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	crateID, _ := cmd.Flags().GetInt64("crate")

	var tracks []*enginelib.Track
	if crateID != 0 {
		crate, err := db.CrateByID(crateID)
		if err != nil {
			return fmt.Errorf("failed to look up crate %d: %w", crateID, err)
		}
		if crate == nil {
			return fmt.Errorf("no crate with id %d", crateID)
		}
		ids, err := crate.TrackIDs()
		if err != nil {
			return fmt.Errorf("failed to list crate members: %w", err)
		}
		for _, id := range ids {
			track, err := db.TrackByID(id)
			if err != nil {
				return fmt.Errorf("failed to look up track %d: %w", id, err)
			}
			if track != nil {
				tracks = append(tracks, track)
			}
		}
		util.InfoLog("Crate %q: %d tracks", crate.Name(), len(tracks))
	} else {
		tracks, err = db.Tracks()
		if err != nil {
			return fmt.Errorf("failed to list tracks: %w", err)
		}
		util.InfoLog("Library: %d tracks", len(tracks))
	}

	for _, track := range tracks {
		name := track.Title()
		if name == "" {
			name = track.Filename()
		}
		if artist := track.Artist(); artist != "" {
			name = artist + " - " + name
		}

		fmt.Printf("[%d] %s\n", track.ID(), name)
		fmt.Printf("    Path:     %s\n", track.Path())
		fmt.Printf("    Length:   %s", formatTrackLength(track.Duration()))
		if track.Bitrate() > 0 {
			fmt.Printf(" @ %dkbps", track.Bitrate())
		}
		fmt.Println()
		if track.BPM() > 0 || track.Key() != enginelib.KeyUnset {
			fmt.Printf("    Tempo:    %.1f BPM, key %s\n", track.BPM(), track.Key())
		}
		if track.Year() > 0 {
			fmt.Printf("    Year:     %d\n", track.Year())
		}
	}
	return nil
}

func formatTrackLength(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
