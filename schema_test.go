package enginelib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateAndDetectAllKnownVersions(t *testing.T) {
	for _, version := range KnownVersions() {
		dir := filepath.Join(t.TempDir(), "lib-"+version.String())

		db, err := Create(dir, version)
		if err != nil {
			t.Fatalf("failed to create library at %s: %v", version, err)
		}
		if err := db.Verify(); err != nil {
			t.Errorf("verify failed for fresh %s library: %v", version, err)
		}
		db.Close()

		reopened, err := Open(dir)
		if err != nil {
			t.Fatalf("failed to reopen %s library: %v", version, err)
		}
		if reopened.Version() != version {
			t.Errorf("detected version %s, want %s", reopened.Version(), version)
		}
		if !reopened.IsSupported() {
			t.Errorf("expected %s library to be supported", version)
		}
		reopened.Close()
	}
}

func TestCreateUnsupportedVersionLeavesNoFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib-bad")

	_, err := Create(dir, SemanticVersion{0, 9, 0})
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}

	for _, name := range []string{musicDBName, perfDBName} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s not to exist after failed create", name)
		}
	}
}

func TestUpgradeForward(t *testing.T) {
	db := newTestLibrary(t, Version1_6_0)

	if err := db.UpgradeTo(Version1_7_1); err != nil {
		t.Fatalf("upgrade to 1.7.1 failed: %v", err)
	}
	if db.Version() != Version1_7_1 {
		t.Errorf("version after upgrade = %s, want 1.7.1", db.Version())
	}
	if err := db.Verify(); err != nil {
		t.Errorf("verify after upgrade failed: %v", err)
	}

	// The 1.7.1 columns must be queryable after the upgrade.
	var count int
	if err := db.music.QueryRow(`SELECT COUNT(pdbImportKey) FROM Track`).Scan(&count); err != nil {
		t.Errorf("pdbImportKey column missing after upgrade: %v", err)
	}
	if err := db.perf.QueryRow(`SELECT COUNT(hasSeratoValues) FROM PerformanceData`).Scan(&count); err != nil {
		t.Errorf("hasSeratoValues column missing after upgrade: %v", err)
	}

	// Detection after reopen sees the upgraded version.
	dir := db.Directory()
	db.Close()
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen upgraded library: %v", err)
	}
	defer reopened.Close()
	if reopened.Version() != Version1_7_1 {
		t.Errorf("detected version %s after upgrade, want 1.7.1", reopened.Version())
	}
}

func TestVerifyDetectsHalfUpgradedStores(t *testing.T) {
	db := newTestLibrary(t, Version1_6_0)

	// An upgrade interrupted between the music and performance steps
	// leaves the stores recording different versions.
	if err := applyDelta(db.music, schema1_7_1.musicDelta, Version1_7_1); err != nil {
		t.Fatalf("failed to apply music store delta: %v", err)
	}

	if err := db.Verify(); !errors.Is(err, ErrDatabaseInconsistency) {
		t.Fatalf("expected ErrDatabaseInconsistency for half-upgraded stores, got %v", err)
	}

	// Completing the interrupted step restores consistency.
	if err := applyDelta(db.perf, schema1_7_1.perfDelta, Version1_7_1); err != nil {
		t.Fatalf("failed to apply performance store delta: %v", err)
	}
	if err := db.Verify(); err != nil {
		t.Errorf("verify after completing the upgrade failed: %v", err)
	}
}

func TestUpgradeRejectsDowngrade(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)

	if err := db.UpgradeTo(Version1_6_0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for downgrade, got %v", err)
	}
	if db.Version() != Version1_7_1 {
		t.Errorf("version changed by rejected downgrade: %s", db.Version())
	}
}

func TestUpgradeRejectsUnknownTarget(t *testing.T) {
	db := newTestLibrary(t, Version1_6_0)

	if err := db.UpgradeTo(SemanticVersion{9, 0, 0}); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestUpgradeToSameVersionIsNoop(t *testing.T) {
	db := newTestLibrary(t, Version1_6_0)

	if err := db.UpgradeTo(Version1_6_0); err != nil {
		t.Fatalf("upgrade to current version should succeed, got %v", err)
	}
	if db.Version() != Version1_6_0 {
		t.Errorf("version = %s, want 1.6.0", db.Version())
	}
}

func TestVerifyDetectsMissingTable(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)

	if _, err := db.music.Exec(`DROP TABLE AlbumArt`); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	err := db.Verify()
	if !errors.Is(err, ErrDatabaseInconsistency) {
		t.Fatalf("expected ErrDatabaseInconsistency, got %v", err)
	}
	if !strings.Contains(err.Error(), "AlbumArt") {
		t.Errorf("expected error to name the missing table, got %q", err)
	}
}

func TestVerifyDetectsMissingColumn(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)

	if _, err := db.music.Exec(`ALTER TABLE Track DROP COLUMN pdbImportKey`); err != nil {
		t.Fatalf("failed to drop column: %v", err)
	}

	err := db.Verify()
	if !errors.Is(err, ErrDatabaseInconsistency) {
		t.Fatalf("expected ErrDatabaseInconsistency, got %v", err)
	}
	if !strings.Contains(err.Error(), "pdbImportKey") {
		t.Errorf("expected error to name the missing column, got %q", err)
	}
}

func TestVerifyDetectsStoreVersionDisagreement(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)

	_, err := db.perf.Exec(`UPDATE Information SET schemaVersionMinor = 6, schemaVersionPatch = 0`)
	if err != nil {
		t.Fatalf("failed to rewrite performance information row: %v", err)
	}

	if err := db.Verify(); !errors.Is(err, ErrDatabaseInconsistency) {
		t.Fatalf("expected ErrDatabaseInconsistency, got %v", err)
	}
}

func TestOpenMissingInformationRow(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)
	dir := db.Directory()
	if _, err := db.music.Exec(`DELETE FROM Information`); err != nil {
		t.Fatalf("failed to delete information row: %v", err)
	}
	db.Close()

	_, err := Open(dir)
	if !errors.Is(err, ErrDatabaseInconsistency) {
		t.Fatalf("expected ErrDatabaseInconsistency, got %v", err)
	}
}

func TestOpenUnknownNewerVersion(t *testing.T) {
	db := newTestLibrary(t, Version1_7_1)
	dir := db.Directory()
	_, err := db.music.Exec(`UPDATE Information SET schemaVersionMajor = 9`)
	if err != nil {
		t.Fatalf("failed to rewrite information row: %v", err)
	}
	db.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("open of a well-formed unknown version should succeed, got %v", err)
	}
	defer reopened.Close()

	if reopened.IsSupported() {
		t.Error("expected unknown version to be unsupported")
	}
	if reopened.Version() != (SemanticVersion{9, 7, 1}) {
		t.Errorf("detected version = %s, want 9.7.1", reopened.Version())
	}
	if err := reopened.Verify(); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected verify of unknown version to fail with ErrUnsupportedVersion, got %v", err)
	}
}
