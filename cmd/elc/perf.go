package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/franz/enginelib"
	"github.com/spf13/cobra"
)

var perfCmd = &cobra.Command{
	Use:   "perf <track-id>",
	Short: "Show the analysis results stored for a track",
	Long: `Decode and display the performance data of one track: sample
geometry, tempo derived from the beat grid, detected key, loudness,
main cue, and the hot cue and loop pads.`,
	Args: cobra.ExactArgs(1),
	RunE: runPerf,
}

func init() {
	rootCmd.AddCommand(perfCmd)
}

func runPerf(cmd *cobra.Command, args []string) error {
	trackID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid track id %q", args[0])
	}

	db, err := openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := enginelib.LoadPerformanceData(db, trackID)
	if errors.Is(err, enginelib.ErrNonexistentPerformanceData) {
		return fmt.Errorf("track %d has not been analyzed", trackID)
	}
	if err != nil {
		return fmt.Errorf("failed to load performance data: %w", err)
	}

	fmt.Printf("Track:      %d\n", p.TrackID())
	fmt.Printf("Samples:    %d @ %gHz\n", p.TotalSamples, p.SampleRate)
	fmt.Printf("Duration:   %s\n", p.Duration().Round(time.Millisecond))
	fmt.Printf("Tempo:      %.1f BPM\n", p.BPM())
	fmt.Printf("Key:        %s\n", p.Key)
	fmt.Printf("Loudness:   %.2f\n", p.AverageLoudness)
	fmt.Printf("Main cue:   %.0f (analyzed %.0f)\n",
		p.AdjustedMainCueSampleOffset, p.DefaultMainCueSampleOffset)

	grid := p.AdjustedBeatGrid
	fmt.Printf("Beat grid:  beat %d @ %.2f .. beat %d @ %.2f\n",
		grid.FirstBeatIndex, grid.FirstBeatSampleOffset,
		grid.LastBeatIndex, grid.LastBeatSampleOffset)

	for i, cue := range p.HotCues() {
		if !cue.Set {
			continue
		}
		label := cue.Label
		if label == "" {
			label = "(unlabeled)"
		}
		fmt.Printf("Hot cue %d:  %s @ %.0f\n", i+1, label, cue.SampleOffset)
	}
	for i, loop := range p.Loops() {
		if !loop.StartSet && !loop.EndSet {
			continue
		}
		label := loop.Label
		if label == "" {
			label = "(unlabeled)"
		}
		fmt.Printf("Loop %d:     %s @ %.0f .. %.0f\n",
			i+1, label, loop.StartSampleOffset, loop.EndSampleOffset)
	}
	return nil
}
