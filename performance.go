package enginelib

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PerformanceData holds the analysis results for one track: sample
// geometry, detected key, loudness, the default and user-adjusted beat
// grids, main cue offsets, and the fixed 8 hot cue and 8 loop slots. It
// is stored in the performance store as compressed blobs keyed by track
// id, and does not exist there until Save is called.
type PerformanceData struct {
	trackID int64

	SampleRate      float64
	TotalSamples    int64
	Key             MusicalKey
	AverageLoudness float64

	// DefaultBeatGrid is the grid produced by automated analysis;
	// AdjustedBeatGrid is the user-correctable copy. If the user has not
	// adjusted the grid the two are equal.
	DefaultBeatGrid  BeatGrid
	AdjustedBeatGrid BeatGrid

	DefaultMainCueSampleOffset  float64
	AdjustedMainCueSampleOffset float64

	hotCues [slotCount]HotCue
	loops   [slotCount]Loop
}

// NewPerformanceData returns an empty record for the given track, not yet
// saved in any store.
func NewPerformanceData(trackID int64) *PerformanceData {
	return &PerformanceData{trackID: trackID}
}

// TrackID returns the id of the track this record belongs to.
func (p *PerformanceData) TrackID() int64 { return p.trackID }

// HotCues returns a copy of the 8 hot cue slots.
func (p *PerformanceData) HotCues() []HotCue {
	cues := make([]HotCue, slotCount)
	copy(cues, p.hotCues[:])
	return cues
}

// SetHotCues fills the 8 hot cue slots from the given list. Entries past
// the 8th are discarded; slots with no corresponding entry are left
// unset.
func (p *PerformanceData) SetHotCues(cues []HotCue) {
	p.hotCues = [slotCount]HotCue{}
	copy(p.hotCues[:], cues)
}

// Loops returns a copy of the 8 loop slots.
func (p *PerformanceData) Loops() []Loop {
	loops := make([]Loop, slotCount)
	copy(loops, p.loops[:])
	return loops
}

// SetLoops fills the 8 loop slots from the given list. Entries past the
// 8th are discarded; slots with no corresponding entry are left unset.
func (p *PerformanceData) SetLoops(loops []Loop) {
	p.loops = [slotCount]Loop{}
	copy(p.loops[:], loops)
}

// BPM returns the tempo implied by the adjusted beat grid, or 0 when the
// grid has no index span.
func (p *PerformanceData) BPM() float64 {
	return p.AdjustedBeatGrid.BPM(p.SampleRate)
}

// Duration returns the track length derived from the sample count, at
// millisecond resolution. Zero when the sample rate is unknown or below
// one sample per second.
func (p *PerformanceData) Duration() time.Duration {
	rate := int64(p.SampleRate)
	if rate <= 0 {
		return 0
	}
	ms := 1000 * p.TotalSamples / rate
	return time.Duration(ms) * time.Millisecond
}

// LoadPerformanceData reads and decodes the stored analysis results for a
// track. A track that has never been analyzed yields
// ErrNonexistentPerformanceData; blobs that fail to decode yield
// ErrCorruptPerformanceData.
func LoadPerformanceData(d *Database, trackID int64) (*PerformanceData, error) {
	var trackData, beatData, quickCues, loops []byte
	err := d.perfExec().QueryRow(`
		SELECT trackData, beatData, quickCues, loops FROM PerformanceData WHERE id = ?
	`, trackID).Scan(&trackData, &beatData, &quickCues, &loops)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %d", ErrNonexistentPerformanceData, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query performance data for track %d: %w", trackID, err)
	}

	p := NewPerformanceData(trackID)
	if err := decodeTrackData(p, trackData); err != nil {
		return nil, fmt.Errorf("track %d trackData: %w", trackID, err)
	}
	if err := decodeBeatData(d.version, p, beatData); err != nil {
		return nil, fmt.Errorf("track %d beatData: %w", trackID, err)
	}
	if err := decodeQuickCues(p, quickCues); err != nil {
		return nil, fmt.Errorf("track %d quickCues: %w", trackID, err)
	}
	if err := decodeLoops(p, loops); err != nil {
		return nil, fmt.Errorf("track %d loops: %w", trackID, err)
	}
	return p, nil
}

// Save encodes the record and upserts it into the performance store,
// keyed by track id: the first save creates the row, later saves
// overwrite it. An all-zero adjusted beat grid is persisted as a copy of
// the default grid, preserving the convention that an unadjusted grid
// equals the analyzed one.
func (p *PerformanceData) Save(d *Database) error {
	if p.AdjustedBeatGrid == (BeatGrid{}) {
		p.AdjustedBeatGrid = p.DefaultBeatGrid
	}

	trackData, err := encodeTrackData(p)
	if err != nil {
		return err
	}
	beatData, err := encodeBeatData(d.version, p)
	if err != nil {
		return err
	}
	quickCues, err := encodeQuickCues(p)
	if err != nil {
		return err
	}
	loops, err := encodeLoops(p)
	if err != nil {
		return err
	}

	// Waveform columns are populated by the hardware's renderer; until
	// then they hold a valid empty payload.
	emptyWave, err := compressBlob(nil)
	if err != nil {
		return err
	}

	return d.withGuard(func(_, perf execer) error {
		_, err := perf.Exec(`
			INSERT INTO PerformanceData
				(id, isAnalyzed, isRendered, trackData,
				 highResolutionWaveFormData, overviewWaveFormData,
				 beatData, quickCues, loops)
			VALUES (?, 1, 0, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				isAnalyzed = 1,
				trackData = excluded.trackData,
				beatData = excluded.beatData,
				quickCues = excluded.quickCues,
				loops = excluded.loops
		`, p.trackID, trackData, emptyWave, emptyWave, beatData, quickCues, loops)
		if err != nil {
			return fmt.Errorf("failed to save performance data for track %d: %w", p.trackID, err)
		}
		return nil
	})
}
