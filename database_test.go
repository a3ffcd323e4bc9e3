package enginelib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestLibrary creates a fresh library under a temp directory and
// returns an open handle to it.
func newTestLibrary(t *testing.T, version SemanticVersion) *Database {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "Engine Library")
	db, err := Create(dir, version)
	if err != nil {
		t.Fatalf("failed to create library at %s: %v", version, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-library"))
	if !errors.Is(err, ErrDatabaseNotFound) {
		t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
	}
}

func TestOpenStatFailureIsNotMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "occupied")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	// The store path runs through a regular file, so stat fails with
	// something other than "does not exist".
	_, err := Open(filepath.Join(blocker, "Engine Library"))
	if err == nil {
		t.Fatal("expected open through a regular file to fail")
	}
	if errors.Is(err, ErrDatabaseNotFound) {
		t.Errorf("expected the underlying stat failure to surface, got %v", err)
	}
}

func TestOpenMissingPerformanceStore(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)
	dir := db.Directory()
	perfPath := db.PerformanceDBPath()
	db.Close()

	if err := os.Remove(perfPath); err != nil {
		t.Fatalf("failed to remove performance store: %v", err)
	}

	_, err := Open(dir)
	if !errors.Is(err, ErrDatabaseNotFound) {
		t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
	}
}

func TestCreateRefusesExistingStores(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)
	dir := db.Directory()
	db.Close()

	_, err := Create(dir, VersionLatest)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for existing stores, got %v", err)
	}
}

func TestUUIDStableAcrossOpens(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)
	id := db.UUID()
	if id == "" {
		t.Fatal("expected a non-empty library uuid")
	}
	dir := db.Directory()
	db.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen library: %v", err)
	}
	defer reopened.Close()

	if reopened.UUID() != id {
		t.Errorf("uuid changed across opens: %s != %s", reopened.UUID(), id)
	}
	if !reopened.IsSupported() {
		t.Error("expected reopened library to be supported")
	}
}

func TestNestedTransactionsDisallowed(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := db.Begin(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nested Begin, got %v", err)
	}

	// After the first guard completes a new one may begin.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin after rollback: %v", err)
	}
	tx2.Rollback()
}

func TestTransactionRollbackDiscards(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	tr, err := db.CreateTrack("rolled-back.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	p := NewPerformanceData(tr.ID())
	p.SampleRate = 44100
	p.TotalSamples = 1000
	if err := p.Save(db); err != nil {
		t.Fatalf("failed to save performance data: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	tracks, err := db.Tracks()
	if err != nil {
		t.Fatalf("failed to list tracks: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("expected no tracks after rollback, got %d", len(tracks))
	}
	if _, err := LoadPerformanceData(db, tr.ID()); !errors.Is(err, ErrNonexistentPerformanceData) {
		t.Errorf("expected performance data to be discarded, got %v", err)
	}
}

func TestTransactionCommitPersists(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	tr, err := db.CreateTrack("committed.mp3")
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	p := NewPerformanceData(tr.ID())
	p.SampleRate = 44100
	p.TotalSamples = 44100 * 60
	if err := p.Save(db); err != nil {
		t.Fatalf("failed to save performance data: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Both stores must have finalized: reopen and check.
	dir := db.Directory()
	db.Close()
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen library: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.TrackByID(tr.ID())
	if err != nil {
		t.Fatalf("failed to look up track: %v", err)
	}
	if got == nil {
		t.Fatal("expected committed track to persist")
	}
	if _, err := LoadPerformanceData(reopened, tr.ID()); err != nil {
		t.Fatalf("expected committed performance data to persist, got %v", err)
	}
}

func TestTransactionCompletionIsFinal(t *testing.T) {
	db := newTestLibrary(t, VersionLatest)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Errorf("rollback after commit should be a no-op, got %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for double commit, got %v", err)
	}
}
