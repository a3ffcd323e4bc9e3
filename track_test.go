package enginelib

import (
	"errors"
	"testing"
	"time"
)

func TestCreateTrackAndSave(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tr, err := db.CreateTrack("Artist/Album/01 Song.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	if tr.ID() == 0 {
		t.Fatal("expected a non-zero track id")
	}
	if tr.Filename() != "01 Song.mp3" {
		t.Errorf("filename = %q, want \"01 Song.mp3\"", tr.Filename())
	}
	if tr.Extension() != "mp3" {
		t.Errorf("extension = %q, want \"mp3\"", tr.Extension())
	}

	tr.SetTitle("Song")
	tr.SetArtist("Artist")
	tr.SetAlbum("Album")
	tr.SetGenre("House")
	tr.SetComment("test rip")
	tr.SetPublisher("Label")
	tr.SetComposer("Composer")
	tr.SetBitrate(320)
	tr.SetDuration(366 * time.Second)
	tr.SetBPM(123.5)
	tr.SetKey(KeyAMinor)
	tr.SetYear(2017)

	if err := tr.Save(); err != nil {
		t.Fatalf("failed to save track: %v", err)
	}

	got, err := db.TrackByID(tr.ID())
	if err != nil {
		t.Fatalf("failed to look up track: %v", err)
	}
	if got == nil {
		t.Fatal("expected to find saved track")
	}

	if got.Title() != "Song" || got.Artist() != "Artist" || got.Album() != "Album" {
		t.Errorf("text metadata did not persist: %q / %q / %q",
			got.Title(), got.Artist(), got.Album())
	}
	if got.Genre() != "House" || got.Comment() != "test rip" ||
		got.Publisher() != "Label" || got.Composer() != "Composer" {
		t.Errorf("extended metadata did not persist")
	}
	if got.Bitrate() != 320 {
		t.Errorf("bitrate = %d, want 320", got.Bitrate())
	}
	if got.Duration() != 366*time.Second {
		t.Errorf("duration = %s, want 366s", got.Duration())
	}
	if got.BPM() != 123.5 {
		t.Errorf("bpm = %g, want 123.5", got.BPM())
	}
	if got.Key() != KeyAMinor {
		t.Errorf("key = %d, want KeyAMinor", got.Key())
	}
	if got.Year() != 2017 {
		t.Errorf("year = %d, want 2017", got.Year())
	}
}

func TestCreateTrackDuplicatePath(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	if _, err := db.CreateTrack("dup.mp3"); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	if _, err := db.CreateTrack("dup.mp3"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate path, got %v", err)
	}

	tracks, err := db.Tracks()
	if err != nil {
		t.Fatalf("failed to list tracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Errorf("expected 1 track after rejected duplicate, got %d", len(tracks))
	}
}

func TestCreateTrackEmptyPath(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	if _, err := db.CreateTrack(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty path, got %v", err)
	}
}

func TestTracksByRelativePath(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	if _, err := db.CreateTrack("a.mp3"); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	if _, err := db.CreateTrack("b.mp3"); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}

	matches, err := db.TracksByRelativePath("a.mp3")
	if err != nil {
		t.Fatalf("failed to query by path: %v", err)
	}
	if len(matches) != 1 || matches[0].Path() != "a.mp3" {
		t.Errorf("expected exactly the a.mp3 track, got %d matches", len(matches))
	}

	none, err := db.TracksByRelativePath("missing.mp3")
	if err != nil {
		t.Fatalf("failed to query by path: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestSaveShapeIndependentOfSetterCount(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	one, err := db.CreateTrack("one.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	one.SetTitle("Only Title")
	if err := one.Save(); err != nil {
		t.Fatalf("failed to save track: %v", err)
	}

	many, err := db.CreateTrack("many.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	many.SetTitle("T")
	many.SetArtist("A")
	many.SetAlbum("B")
	many.SetGenre("G")
	many.SetYear(2001)
	if err := many.Save(); err != nil {
		t.Fatalf("failed to save track: %v", err)
	}

	// Both saves must produce the same metadata row shape.
	for _, id := range []int64{one.ID(), many.ID()} {
		var count int
		err := db.music.QueryRow(`SELECT COUNT(*) FROM MetaData WHERE id = ?`, id).Scan(&count)
		if err != nil {
			t.Fatalf("failed to count metadata rows: %v", err)
		}
		if count != 9 {
			t.Errorf("track %d has %d metadata rows, want 9", id, count)
		}
	}
}

func TestRemoveTrackInvalidatesOtherHandles(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tr, err := db.CreateTrack("doomed.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	other, err := db.TrackByID(tr.ID())
	if err != nil || other == nil {
		t.Fatalf("failed to get second handle: %v", err)
	}

	if err := db.RemoveTrack(tr); err != nil {
		t.Fatalf("failed to remove track: %v", err)
	}

	if err := other.Save(); !errors.Is(err, ErrInvalidatedObject) {
		t.Errorf("expected ErrInvalidatedObject through stale handle, got %v", err)
	}
	if err := db.RemoveTrack(other); !errors.Is(err, ErrInvalidatedObject) {
		t.Errorf("expected ErrInvalidatedObject on double remove, got %v", err)
	}

	gone, err := db.TrackByID(tr.ID())
	if err != nil {
		t.Fatalf("failed to look up removed track: %v", err)
	}
	if gone != nil {
		t.Error("expected removed track lookup to return nil")
	}
}

func TestRemoveTrackCascades(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tr, err := db.CreateTrack("cascade.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}

	cr, err := db.CreateCrate("Favorites")
	if err != nil {
		t.Fatalf("failed to create crate: %v", err)
	}
	if err := cr.AddTrack(tr.ID()); err != nil {
		t.Fatalf("failed to add track to crate: %v", err)
	}

	p := NewPerformanceData(tr.ID())
	p.SampleRate = 44100
	p.TotalSamples = 44100
	if err := p.Save(db); err != nil {
		t.Fatalf("failed to save performance data: %v", err)
	}

	if err := db.RemoveTrack(tr); err != nil {
		t.Fatalf("failed to remove track: %v", err)
	}

	ids, err := cr.TrackIDs()
	if err != nil {
		t.Fatalf("failed to list crate tracks: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected crate membership to be removed, got %d entries", len(ids))
	}

	if _, err := LoadPerformanceData(db, tr.ID()); !errors.Is(err, ErrNonexistentPerformanceData) {
		t.Errorf("expected performance data to be removed, got %v", err)
	}
}
