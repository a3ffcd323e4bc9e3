// Package enginelib provides read/write access to the dual-file SQLite
// database format used by Engine Prime hardware and software to store
// track libraries, analysis results and crate organization.
//
// A library lives in a directory holding a music store (m.db) and a
// performance store (p.db). Open or Create returns a Database handle;
// tracks, crates and performance data are read and written through it.
// A handle and everything bound to it belong to one goroutine at a time;
// the package does no internal locking.
package enginelib

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	musicDBName = "m.db"
	perfDBName  = "p.db"
)

// Database owns the connections to one library's music and performance
// stores. At most one Transaction may be live on a handle at a time.
type Database struct {
	dir       string
	musicPath string
	perfPath  string

	music *sql.DB
	perf  *sql.DB

	uuid      string
	version   SemanticVersion
	supported bool

	tx *Transaction
}

// Open opens an existing library directory. Both store files must exist,
// otherwise ErrDatabaseNotFound is returned. The schema version is
// detected from the music store's information row; a library written by
// an unknown newer firmware still opens for identity inspection, with
// IsSupported reporting false.
func Open(dir string) (*Database, error) {
	d := &Database{
		dir:       dir,
		musicPath: filepath.Join(dir, musicDBName),
		perfPath:  filepath.Join(dir, perfDBName),
	}

	for _, path := range []string{d.musicPath, d.perfPath} {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s is missing", ErrDatabaseNotFound, path)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := d.connect(); err != nil {
		return nil, err
	}

	libUUID, version, err := readInformation(d.music)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.uuid = libUUID
	d.version = version
	d.supported = IsVersionSupported(version)

	return d, nil
}

// Create creates a new library directory with both stores laid out at the
// requested schema version, then verifies the result before returning the
// handle. On any failure the partially created store files are removed,
// so a failed Create never leaves an openable library behind.
func Create(dir string, version SemanticVersion) (*Database, error) {
	def, err := schemaFor(version)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	d := &Database{
		dir:       dir,
		musicPath: filepath.Join(dir, musicDBName),
		perfPath:  filepath.Join(dir, perfDBName),
	}

	for _, path := range []string{d.musicPath, d.perfPath} {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s already exists", ErrInvalidArgument, path)
		}
	}

	if err := d.connect(); err != nil {
		return nil, err
	}

	fail := func(err error) (*Database, error) {
		d.Close()
		os.Remove(d.musicPath)
		os.Remove(d.perfPath)
		return nil, err
	}

	libUUID := uuid.New().String()
	if err := createSchema(d.music, def.musicDDL, libUUID, version); err != nil {
		return fail(err)
	}
	if err := createSchema(d.perf, def.perfDDL, libUUID, version); err != nil {
		return fail(err)
	}

	d.uuid = libUUID
	d.version = version
	d.supported = true

	if err := d.Verify(); err != nil {
		return fail(err)
	}

	return d, nil
}

func (d *Database) connect() error {
	music, err := openStore(d.musicPath)
	if err != nil {
		return err
	}
	perf, err := openStore(d.perfPath)
	if err != nil {
		music.Close()
		return err
	}
	d.music = music
	d.perf = perf
	return nil
}

// openStore opens one SQLite file with the pragmas and pool settings the
// library relies on.
func openStore(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	// SQLite works best with a single writer; a single connection also
	// guarantees reads observe writes buffered in a live transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close releases both connections. A live transaction is rolled back
// first, discarding its buffered effects.
func (d *Database) Close() error {
	if d.tx != nil {
		d.tx.Rollback()
	}
	var firstErr error
	for _, db := range []*sql.DB{d.music, d.perf} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.music = nil
	d.perf = nil
	return firstErr
}

// Directory returns the library directory path.
func (d *Database) Directory() string { return d.dir }

// MusicDBPath returns the path to the music store, i.e. m.db.
func (d *Database) MusicDBPath() string { return d.musicPath }

// PerformanceDBPath returns the path to the performance store, i.e. p.db.
func (d *Database) PerformanceDBPath() string { return d.perfPath }

// UUID returns the library's instance identity, generated once at
// creation.
func (d *Database) UUID() string { return d.uuid }

// Version returns the schema version recorded in the library.
func (d *Database) Version() SemanticVersion { return d.version }

// IsSupported reports whether the library's schema version is one this
// build knows how to read and write.
func (d *Database) IsSupported() bool { return d.supported }

// Verify re-derives the expected schema for the recorded version and
// checks both stores against it, structure first, then the agreement of
// the two information rows. Any mismatch is an ErrDatabaseInconsistency
// naming the first offender found.
func (d *Database) Verify() error {
	def, err := detectSchema(d.music)
	if err != nil {
		return err
	}
	if err := verifySchema(d.music, def.musicTables); err != nil {
		return fmt.Errorf("music store: %w", err)
	}
	if err := verifySchema(d.perf, def.perfTables); err != nil {
		return fmt.Errorf("performance store: %w", err)
	}

	perfUUID, perfVersion, err := readInformation(d.perf)
	if err != nil {
		return fmt.Errorf("performance store: %w", err)
	}
	if perfVersion != def.version {
		return fmt.Errorf("%w: performance store records version %s, music store %s",
			ErrDatabaseInconsistency, perfVersion, def.version)
	}
	if perfUUID != d.uuid {
		return fmt.Errorf("%w: performance store uuid %s does not match music store uuid %s",
			ErrDatabaseInconsistency, perfUUID, d.uuid)
	}
	return nil
}

// UpgradeTo migrates the library forward to the target version, applying
// each intermediate version's structural delta as its own atomic step.
// Downgrades are rejected. An upgrade cannot run while a transaction is
// in progress.
func (d *Database) UpgradeTo(target SemanticVersion) error {
	if d.tx != nil {
		return fmt.Errorf("%w: cannot upgrade while a transaction is in progress", ErrInvalidArgument)
	}
	if err := upgradeSchema(d.music, d.perf, d.version, target); err != nil {
		return err
	}

	_, version, err := readInformation(d.music)
	if err != nil {
		return err
	}
	d.version = version
	d.supported = IsVersionSupported(version)
	return d.Verify()
}

// execer is satisfied by both *sql.DB and *sql.Tx, so domain operations
// run against the live transaction when one exists and in autocommit mode
// otherwise.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *Database) musicExec() execer {
	if d.tx != nil {
		return d.tx.music
	}
	return d.music
}

func (d *Database) perfExec() execer {
	if d.tx != nil {
		return d.tx.perf
	}
	return d.perf
}

// withGuard runs fn inside the live transaction if one exists, otherwise
// inside a short-lived guard committed on success. Multi-statement domain
// mutations go through here so they are atomic either way.
func (d *Database) withGuard(fn func(music, perf execer) error) error {
	if d.tx != nil {
		return fn(d.tx.music, d.tx.perf)
	}

	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx.music, tx.perf); err != nil {
		return err
	}
	return tx.Commit()
}
