package enginelib

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// Free-text metadata row types in the MetaData table.
const (
	metaTitle         = 1
	metaArtist        = 2
	metaAlbum         = 3
	metaGenre         = 4
	metaComment       = 5
	metaPublisher     = 6
	metaComposer      = 7
	metaDurationText  = 10
	metaFileExtension = 13
)

// Integer metadata row types in the MetaDataInteger table.
const (
	metaIntMusicalKey = 4
)

// Track is a handle to one track row in the music store. Setters mutate
// only the handle's cached fields; Save flushes the complete field set in
// a single write. A handle whose row has been removed (through any other
// handle) fails subsequent mutating operations with ErrInvalidatedObject.
type Track struct {
	db *Database
	id int64

	path     string
	filename string
	bitrate  int
	duration time.Duration
	bpm      float64
	key      MusicalKey
	year     int

	title     string
	artist    string
	album     string
	genre     string
	comment   string
	publisher string
	composer  string
}

// CreateTrack allocates a new track for the music file at the given
// relative path, with default metadata. It fails with ErrInvalidArgument
// if the path is empty or another track already references it.
func (d *Database) CreateTrack(relativePath string) (*Track, error) {
	if relativePath == "" {
		return nil, fmt.Errorf("%w: track path must not be empty", ErrInvalidArgument)
	}

	tr := &Track{db: d, path: relativePath, filename: path.Base(relativePath)}

	err := d.withGuard(func(music, _ execer) error {
		var count int
		err := music.QueryRow(`SELECT COUNT(*) FROM Track WHERE path = ?`, relativePath).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check track path uniqueness: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: a track already references path %q", ErrInvalidArgument, relativePath)
		}

		result, err := music.Exec(`
			INSERT INTO Track (playOrder, length, lengthCalculated, bpm, year, path, filename,
			                   bitrate, bpmAnalyzed, trackType, isExternalTrack)
			VALUES (0, 0, 0, 0, 0, ?, ?, 0, 0, 1, 0)
		`, tr.path, tr.filename)
		if err != nil {
			return fmt.Errorf("failed to insert track: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get track id: %w", err)
		}
		tr.id = id

		return tr.writeMetadata(music)
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// TrackByID returns a handle to the track with the given id, or nil if no
// such track exists.
func (d *Database) TrackByID(id int64) (*Track, error) {
	tracks, err := d.queryTracks(`WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return tracks[0], nil
}

// TracksByRelativePath returns all tracks whose path attribute matches
// the given string.
func (d *Database) TracksByRelativePath(relativePath string) ([]*Track, error) {
	return d.queryTracks(`WHERE path = ?`, relativePath)
}

// Tracks returns all tracks in the library.
func (d *Database) Tracks() ([]*Track, error) {
	return d.queryTracks(``)
}

// TrackCount returns the number of tracks in the library.
func (d *Database) TrackCount() (int, error) {
	var count int
	if err := d.musicExec().QueryRow(`SELECT COUNT(*) FROM Track`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

func (d *Database) queryTracks(where string, args ...any) ([]*Track, error) {
	music := d.musicExec()
	rows, err := music.Query(`
		SELECT id, path, filename, bitrate, length, bpmAnalyzed, year FROM Track `+where+` ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	var tracks []*Track
	for rows.Next() {
		tr := &Track{db: d}
		var lengthSecs int64
		if err := rows.Scan(&tr.id, &tr.path, &tr.filename, &tr.bitrate,
			&lengthSecs, &tr.bpm, &tr.year); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tr.duration = time.Duration(lengthSecs) * time.Second
		tracks = append(tracks, tr)
	}
	// The single-connection pool requires the cursor to be drained and
	// closed before the metadata queries below may run.
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, tr := range tracks {
		if err := tr.loadMetadata(music); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

func (tr *Track) loadMetadata(music execer) error {
	rows, err := music.Query(`SELECT type, text FROM MetaData WHERE id = ?`, tr.id)
	if err != nil {
		return fmt.Errorf("failed to query track metadata: %w", err)
	}

	for rows.Next() {
		var metaType int
		var text sql.NullString
		if err := rows.Scan(&metaType, &text); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan track metadata: %w", err)
		}
		switch metaType {
		case metaTitle:
			tr.title = text.String
		case metaArtist:
			tr.artist = text.String
		case metaAlbum:
			tr.album = text.String
		case metaGenre:
			tr.genre = text.String
		case metaComment:
			tr.comment = text.String
		case metaPublisher:
			tr.publisher = text.String
		case metaComposer:
			tr.composer = text.String
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	var key int64
	err = music.QueryRow(`
		SELECT value FROM MetaDataInteger WHERE id = ? AND type = ?
	`, tr.id, metaIntMusicalKey).Scan(&key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to query track key: %w", err)
	}
	if key >= 0 && int(key) <= maxMusicalKey {
		tr.key = MusicalKey(key)
	}
	return nil
}

// ID returns the track's id, stable for its lifetime.
func (tr *Track) ID() int64 { return tr.id }

// Path returns the track's file path relative to the library directory.
func (tr *Track) Path() string { return tr.path }

// SetPath updates the cached relative path and re-derives the filename.
func (tr *Track) SetPath(relativePath string) {
	tr.path = relativePath
	tr.filename = path.Base(relativePath)
}

// Filename returns the track's filename.
func (tr *Track) Filename() string { return tr.filename }

// Extension returns the filename extension without the leading dot.
func (tr *Track) Extension() string {
	return strings.TrimPrefix(path.Ext(tr.filename), ".")
}

// Bitrate returns the track's bitrate in kbit/s.
func (tr *Track) Bitrate() int { return tr.bitrate }

// SetBitrate updates the cached bitrate.
func (tr *Track) SetBitrate(kbps int) { tr.bitrate = kbps }

// Duration returns the track's duration.
func (tr *Track) Duration() time.Duration { return tr.duration }

// SetDuration updates the cached duration. Storage granularity is whole
// seconds.
func (tr *Track) SetDuration(duration time.Duration) { tr.duration = duration }

// BPM returns the track's tempo in beats per minute.
func (tr *Track) BPM() float64 { return tr.bpm }

// SetBPM updates the cached tempo.
func (tr *Track) SetBPM(bpm float64) { tr.bpm = bpm }

// Key returns the track's musical key.
func (tr *Track) Key() MusicalKey { return tr.key }

// SetKey updates the cached musical key.
func (tr *Track) SetKey(key MusicalKey) { tr.key = key }

// Year returns the track's release year, 0 when unknown.
func (tr *Track) Year() int { return tr.year }

// SetYear updates the cached release year.
func (tr *Track) SetYear(year int) { tr.year = year }

// Title returns the track title.
func (tr *Track) Title() string { return tr.title }

// SetTitle updates the cached title.
func (tr *Track) SetTitle(title string) { tr.title = title }

// Artist returns the track artist.
func (tr *Track) Artist() string { return tr.artist }

// SetArtist updates the cached artist.
func (tr *Track) SetArtist(artist string) { tr.artist = artist }

// Album returns the track album.
func (tr *Track) Album() string { return tr.album }

// SetAlbum updates the cached album.
func (tr *Track) SetAlbum(album string) { tr.album = album }

// Genre returns the track genre.
func (tr *Track) Genre() string { return tr.genre }

// SetGenre updates the cached genre.
func (tr *Track) SetGenre(genre string) { tr.genre = genre }

// Comment returns the free-text comment.
func (tr *Track) Comment() string { return tr.comment }

// SetComment updates the cached comment.
func (tr *Track) SetComment(comment string) { tr.comment = comment }

// Publisher returns the track publisher.
func (tr *Track) Publisher() string { return tr.publisher }

// SetPublisher updates the cached publisher.
func (tr *Track) SetPublisher(publisher string) { tr.publisher = publisher }

// Composer returns the track composer.
func (tr *Track) Composer() string { return tr.composer }

// SetComposer updates the cached composer.
func (tr *Track) SetComposer(composer string) { tr.composer = composer }

// Save flushes the complete current field set to the music store in one
// write. The resulting row shape is the same no matter which setters ran
// since the last save.
func (tr *Track) Save() error {
	return tr.db.withGuard(func(music, _ execer) error {
		if err := tr.ensureLive(music); err != nil {
			return err
		}

		lengthSecs := int64(tr.duration / time.Second)
		_, err := music.Exec(`
			UPDATE Track
			SET path = ?, filename = ?, bitrate = ?, length = ?, lengthCalculated = ?,
			    bpm = ?, bpmAnalyzed = ?, year = ?
			WHERE id = ?
		`, tr.path, tr.filename, tr.bitrate, lengthSecs, lengthSecs,
			int64(math.Round(tr.bpm)), tr.bpm, tr.year, tr.id)
		if err != nil {
			return fmt.Errorf("failed to update track %d: %w", tr.id, err)
		}

		return tr.writeMetadata(music)
	})
}

// writeMetadata writes the full metadata row set for the track. Every
// field type gets a row, set or not, so saves always produce the same
// shape.
func (tr *Track) writeMetadata(music execer) error {
	fields := []struct {
		metaType int
		text     string
	}{
		{metaTitle, tr.title},
		{metaArtist, tr.artist},
		{metaAlbum, tr.album},
		{metaGenre, tr.genre},
		{metaComment, tr.comment},
		{metaPublisher, tr.publisher},
		{metaComposer, tr.composer},
		{metaDurationText, formatDuration(tr.duration)},
		{metaFileExtension, tr.Extension()},
	}
	for _, field := range fields {
		_, err := music.Exec(`
			INSERT OR REPLACE INTO MetaData (id, type, text) VALUES (?, ?, ?)
		`, tr.id, field.metaType, field.text)
		if err != nil {
			return fmt.Errorf("failed to write track metadata: %w", err)
		}
	}

	_, err := music.Exec(`
		INSERT OR REPLACE INTO MetaDataInteger (id, type, value) VALUES (?, ?, ?)
	`, tr.id, metaIntMusicalKey, int64(tr.key))
	if err != nil {
		return fmt.Errorf("failed to write track key: %w", err)
	}
	return nil
}

// ensureLive fails with ErrInvalidatedObject when the handle's row no
// longer exists, i.e. the track was removed through another handle.
func (tr *Track) ensureLive(music execer) error {
	var count int
	if err := music.QueryRow(`SELECT COUNT(*) FROM Track WHERE id = ?`, tr.id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check track liveness: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: track %d has been removed", ErrInvalidatedObject, tr.id)
	}
	return nil
}

// RemoveTrack deletes a track, its metadata, its crate memberships and
// its performance data. Every other handle to the same id becomes
// invalid.
func (d *Database) RemoveTrack(tr *Track) error {
	return d.withGuard(func(music, perf execer) error {
		if err := tr.ensureLive(music); err != nil {
			return err
		}

		deletes := []string{
			`DELETE FROM CrateTrackList WHERE trackId = ?`,
			`DELETE FROM MetaData WHERE id = ?`,
			`DELETE FROM MetaDataInteger WHERE id = ?`,
			`DELETE FROM Track WHERE id = ?`,
		}
		for _, stmt := range deletes {
			if _, err := music.Exec(stmt, tr.id); err != nil {
				return fmt.Errorf("failed to remove track %d: %w", tr.id, err)
			}
		}
		if _, err := perf.Exec(`DELETE FROM PerformanceData WHERE id = ?`, tr.id); err != nil {
			return fmt.Errorf("failed to remove performance data for track %d: %w", tr.id, err)
		}
		return nil
	})
}

// formatDuration renders a duration as "m:ss" for the display metadata
// row.
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
