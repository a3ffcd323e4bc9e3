package enginelib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// The performance store holds analysis results as opaque compressed blobs.
// Each blob is framed as a big-endian uint32 giving the uncompressed
// length, followed by a zlib stream. All multi-byte fields inside the
// blobs are big-endian in every schema version.

// slotCount is the fixed number of hot cue and loop slots per track.
// The hardware exposes exactly 8 pads; the stored blobs always carry 8
// entries regardless of how many are actually set.
const slotCount = 8

// PadColor is the RGBA color assigned to a performance pad.
type PadColor struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// MusicalKey identifies the detected key of a track. Zero means no key
// has been detected. Values 1-12 are the major keys from C upward in
// semitone steps, 13-24 the minor keys likewise.
type MusicalKey int

const (
	KeyUnset MusicalKey = iota
	KeyCMajor
	KeyDFlatMajor
	KeyDMajor
	KeyEFlatMajor
	KeyEMajor
	KeyFMajor
	KeyFSharpMajor
	KeyGMajor
	KeyAFlatMajor
	KeyAMajor
	KeyBFlatMajor
	KeyBMajor
	KeyCMinor
	KeyCSharpMinor
	KeyDMinor
	KeyEFlatMinor
	KeyEMinor
	KeyFMinor
	KeyFSharpMinor
	KeyGMinor
	KeyAFlatMinor
	KeyAMinor
	KeyBFlatMinor
	KeyBMinor
)

// maxMusicalKey bounds the legal key domain for decoding.
const maxMusicalKey = int(KeyBMinor)

var keyNames = [...]string{
	"-",
	"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B",
	"Cm", "C#m", "Dm", "Ebm", "Em", "Fm", "F#m", "Gm", "Abm", "Am", "Bbm", "Bm",
}

// String renders the key in short notation, "-" for an undetected key.
func (k MusicalKey) String() string {
	if k < 0 || int(k) > maxMusicalKey {
		return fmt.Sprintf("MusicalKey(%d)", int(k))
	}
	return keyNames[k]
}

// BeatGrid is a two-anchor linear model mapping beat index to sample
// offset. By convention analysis places the first anchor at beat index -4
// (before the audible start) and the last anchor at the first beat past
// the usable end of the track, so anchor offsets usually lie outside the
// track itself. NormalizeBeatGrid converts any grid to that convention.
type BeatGrid struct {
	FirstBeatIndex        int64
	FirstBeatSampleOffset float64
	LastBeatIndex         int64
	LastBeatSampleOffset  float64
}

// BPM derives the tempo implied by the grid at the given sample rate.
// A grid with zero index span has no defined tempo and yields 0.
func (g BeatGrid) BPM(sampleRate float64) float64 {
	span := g.LastBeatIndex - g.FirstBeatIndex
	if span == 0 {
		return 0
	}
	return sampleRate * 60 * float64(span) /
		(g.LastBeatSampleOffset - g.FirstBeatSampleOffset)
}

// NormalizeBeatGrid adjusts a grid's anchors to the canonical convention:
// first anchor at beat index -4, last anchor at the first beat past
// lastSample. Offsets are recomputed by linear interpolation along the
// existing beat spacing, so the implied BPM is unchanged. Normalizing an
// already-normalized grid returns it unchanged.
func NormalizeBeatGrid(grid BeatGrid, lastSample float64) BeatGrid {
	span := grid.LastBeatIndex - grid.FirstBeatIndex
	if span == 0 {
		return grid
	}
	samplesPerBeat := (grid.LastBeatSampleOffset - grid.FirstBeatSampleOffset) / float64(span)

	firstOffset := grid.FirstBeatSampleOffset +
		samplesPerBeat*float64(-4-grid.FirstBeatIndex)
	beatsUntilEnd := int64(math.Ceil((lastSample - firstOffset) / samplesPerBeat))

	return BeatGrid{
		FirstBeatIndex:        -4,
		FirstBeatSampleOffset: firstOffset,
		LastBeatIndex:         -4 + beatsUntilEnd,
		LastBeatSampleOffset:  firstOffset + float64(beatsUntilEnd)*samplesPerBeat,
	}
}

// HotCue is one of the 8 cue point slots of a track.
type HotCue struct {
	Set          bool
	Label        string
	SampleOffset float64
	Color        PadColor
}

// Loop is one of the 8 loop slots of a track. Start and end are set
// independently; the loop is usable only when both are set.
type Loop struct {
	StartSet          bool
	EndSet            bool
	Label             string
	StartSampleOffset float64
	EndSampleOffset   float64
	Color             PadColor
}

// Blob framing

func compressBlob(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(raw)))
	buf.Write(header)

	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress blob: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressBlob(blob []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("%w: blob shorter than its length prefix", ErrCorruptPerformanceData)
	}
	want := binary.BigEndian.Uint32(blob[:4])

	zr, err := zlib.NewReader(bytes.NewReader(blob[4:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPerformanceData, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPerformanceData, err)
	}
	if uint32(len(raw)) != want {
		return nil, fmt.Errorf("%w: length prefix %d does not match %d decompressed bytes",
			ErrCorruptPerformanceData, want, len(raw))
	}
	return raw, nil
}

// blobWriter accumulates big-endian fields for one blob.
type blobWriter struct {
	buf []byte
}

func (w *blobWriter) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *blobWriter) i32(v int32)   { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }
func (w *blobWriter) i64(v int64)   { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }
func (w *blobWriter) f64(v float64) { w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v)) }

// label writes a length-prefixed string. Labels are capped at 255 bytes,
// matching the single-byte length prefix.
func (w *blobWriter) label(s string) {
	if len(s) > 255 {
		s = s[:255]
	}
	w.u8(uint8(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *blobWriter) color(c PadColor) {
	w.buf = append(w.buf, c.R, c.G, c.B, c.A)
}

// blobReader consumes big-endian fields from a decompressed blob. The
// first short read latches an error; callers check err (and that the blob
// was fully consumed) once at the end.
type blobReader struct {
	data []byte
	off  int
	err  error
}

func (r *blobReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: blob truncated at byte %d", ErrCorruptPerformanceData, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *blobReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *blobReader) i32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *blobReader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *blobReader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *blobReader) label() string {
	n := int(r.u8())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *blobReader) color() PadColor {
	b := r.take(4)
	if b == nil {
		return PadColor{}
	}
	return PadColor{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// finish reports the latched error, or a corruption error if trailing
// bytes remain after a complete parse.
func (r *blobReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes after blob payload",
			ErrCorruptPerformanceData, len(r.data)-r.off)
	}
	return nil
}

// trackData blob: sample rate, total samples, key, average loudness.
// Identical layout in every known version.

func encodeTrackData(p *PerformanceData) ([]byte, error) {
	var w blobWriter
	w.f64(p.SampleRate)
	w.i64(p.TotalSamples)
	w.i32(int32(p.Key))
	w.f64(p.AverageLoudness)
	return compressBlob(w.buf)
}

func decodeTrackData(p *PerformanceData, blob []byte) error {
	raw, err := decompressBlob(blob)
	if err != nil {
		return err
	}
	r := blobReader{data: raw}
	p.SampleRate = r.f64()
	p.TotalSamples = r.i64()
	key := int(r.i32())
	p.AverageLoudness = r.f64()
	if err := r.finish(); err != nil {
		return err
	}
	if p.TotalSamples < 0 {
		return fmt.Errorf("%w: negative total sample count %d",
			ErrCorruptPerformanceData, p.TotalSamples)
	}
	if err := checkSampleRate(p.SampleRate); err != nil {
		return err
	}
	if key < 0 || key > maxMusicalKey {
		return fmt.Errorf("%w: musical key %d out of range", ErrCorruptPerformanceData, key)
	}
	p.Key = MusicalKey(key)
	return nil
}

// checkSampleRate bounds the legal sample rate domain for decoding.
// Audio sample rates are whole positive frequencies; anything negative,
// fractional below 1 or non-finite would poison the duration and tempo
// derivations downstream.
func checkSampleRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 1 {
		return fmt.Errorf("%w: sample rate %g out of range", ErrCorruptPerformanceData, rate)
	}
	return nil
}

// beatData blob: sample rate and total samples again, then the default
// and adjusted grids. From 1.7.1 each grid is prefixed with a set flag;
// the 1.6.0 layout has the grids back to back with no flags. Decoding
// dispatches on the store's schema version so older blobs stay readable.

func encodeBeatData(v SemanticVersion, p *PerformanceData) ([]byte, error) {
	var w blobWriter
	w.f64(p.SampleRate)
	w.i64(p.TotalSamples)
	for _, grid := range []BeatGrid{p.DefaultBeatGrid, p.AdjustedBeatGrid} {
		if !v.Less(Version1_7_1) {
			w.u8(1)
		}
		w.i64(grid.FirstBeatIndex)
		w.f64(grid.FirstBeatSampleOffset)
		w.i64(grid.LastBeatIndex)
		w.f64(grid.LastBeatSampleOffset)
	}
	return compressBlob(w.buf)
}

func decodeBeatData(v SemanticVersion, p *PerformanceData, blob []byte) error {
	raw, err := decompressBlob(blob)
	if err != nil {
		return err
	}
	r := blobReader{data: raw}
	sampleRate := r.f64()
	totalSamples := r.i64()
	grids := make([]BeatGrid, 2)
	for i := range grids {
		if !v.Less(Version1_7_1) {
			r.u8()
		}
		grids[i] = BeatGrid{
			FirstBeatIndex:        r.i64(),
			FirstBeatSampleOffset: r.f64(),
			LastBeatIndex:         r.i64(),
			LastBeatSampleOffset:  r.f64(),
		}
	}
	if err := r.finish(); err != nil {
		return err
	}
	if totalSamples < 0 {
		return fmt.Errorf("%w: negative total sample count %d",
			ErrCorruptPerformanceData, totalSamples)
	}
	if err := checkSampleRate(sampleRate); err != nil {
		return err
	}
	if p.SampleRate != 0 && sampleRate != p.SampleRate {
		return fmt.Errorf("%w: beat data sample rate %g disagrees with track data %g",
			ErrCorruptPerformanceData, sampleRate, p.SampleRate)
	}
	p.DefaultBeatGrid = grids[0]
	p.AdjustedBeatGrid = grids[1]
	return nil
}

// quickCues blob: the 8 hot cue slots followed by the default and
// adjusted main cue offsets. Identical layout in every known version.

func encodeQuickCues(p *PerformanceData) ([]byte, error) {
	var w blobWriter
	w.u8(slotCount)
	for _, cue := range p.hotCues {
		if cue.Set {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.label(cue.Label)
		w.f64(cue.SampleOffset)
		w.color(cue.Color)
	}
	w.f64(p.DefaultMainCueSampleOffset)
	w.f64(p.AdjustedMainCueSampleOffset)
	return compressBlob(w.buf)
}

func decodeQuickCues(p *PerformanceData, blob []byte) error {
	raw, err := decompressBlob(blob)
	if err != nil {
		return err
	}
	r := blobReader{data: raw}
	count := int(r.u8())
	if r.err == nil && count > slotCount {
		return fmt.Errorf("%w: %d hot cue slots, at most %d are legal",
			ErrCorruptPerformanceData, count, slotCount)
	}
	var cues [slotCount]HotCue
	for i := 0; i < count; i++ {
		cues[i] = HotCue{
			Set:          r.u8() != 0,
			Label:        r.label(),
			SampleOffset: r.f64(),
			Color:        r.color(),
		}
	}
	p.DefaultMainCueSampleOffset = r.f64()
	p.AdjustedMainCueSampleOffset = r.f64()
	if err := r.finish(); err != nil {
		return err
	}
	p.hotCues = cues
	return nil
}

// loops blob: the 8 loop slots. Identical layout in every known version.

func encodeLoops(p *PerformanceData) ([]byte, error) {
	var w blobWriter
	w.u8(slotCount)
	for _, loop := range p.loops {
		if loop.StartSet {
			w.u8(1)
		} else {
			w.u8(0)
		}
		if loop.EndSet {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.label(loop.Label)
		w.f64(loop.StartSampleOffset)
		w.f64(loop.EndSampleOffset)
		w.color(loop.Color)
	}
	return compressBlob(w.buf)
}

func decodeLoops(p *PerformanceData, blob []byte) error {
	raw, err := decompressBlob(blob)
	if err != nil {
		return err
	}
	r := blobReader{data: raw}
	count := int(r.u8())
	if r.err == nil && count > slotCount {
		return fmt.Errorf("%w: %d loop slots, at most %d are legal",
			ErrCorruptPerformanceData, count, slotCount)
	}
	var loops [slotCount]Loop
	for i := 0; i < count; i++ {
		loops[i] = Loop{
			StartSet:          r.u8() != 0,
			EndSet:            r.u8() != 0,
			Label:             r.label(),
			StartSampleOffset: r.f64(),
			EndSampleOffset:   r.f64(),
			Color:             r.color(),
		}
	}
	if err := r.finish(); err != nil {
		return err
	}
	p.loops = loops
	return nil
}
