package enginelib

import (
	"database/sql"
	"errors"
	"fmt"
)

// columnSpec describes one expected column of a table: its name and the
// declared type SQLite reports through PRAGMA table_info.
type columnSpec struct {
	name     string
	declType string
}

func col(name, declType string) columnSpec {
	return columnSpec{name: name, declType: declType}
}

// tableSpec describes the expected layout of one table.
type tableSpec struct {
	name    string
	columns []columnSpec
}

// schemaDef declares the complete layout of both stores at one schema
// version, plus the structural delta from the previous known version.
// Definitions are immutable; new versions are appended to schemaDefs,
// never edited, so that historical layouts stay verifiable.
type schemaDef struct {
	version SemanticVersion

	musicDDL string
	perfDDL  string

	// ALTER statements bridging from the previous entry in schemaDefs.
	// Empty for the first known version.
	musicDelta []string
	perfDelta  []string

	musicTables []tableSpec
	perfTables  []tableSpec
}

// schemaDefs is the closed, ascending set of known schema versions.
// Every dispatch on version goes through schemaFor, so an unknown version
// can never reach DDL or codec code.
var schemaDefs = []*schemaDef{
	&schema1_6_0,
	&schema1_7_1,
}

// schemaFor returns the definition for an exact version match.
func schemaFor(v SemanticVersion) (*schemaDef, error) {
	for _, def := range schemaDefs {
		if def.version == v {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
}

// createSchema applies the full DDL for one store and writes its
// Information row, all inside a single transaction.
func createSchema(db *sql.DB, ddl string, uuid string, v SemanticVersion) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("failed to apply schema %s: %w", v, err)
	}

	_, err = tx.Exec(`
		INSERT INTO Information (uuid, schemaVersionMajor, schemaVersionMinor, schemaVersionPatch)
		VALUES (?, ?, ?, ?)
	`, uuid, v.Major, v.Minor, v.Patch)
	if err != nil {
		return fmt.Errorf("failed to write information row: %w", err)
	}

	return tx.Commit()
}

// readInformation reads the library UUID and recorded schema version from
// a store's Information row.
func readInformation(db *sql.DB) (string, SemanticVersion, error) {
	var uuid string
	var v SemanticVersion
	err := db.QueryRow(`
		SELECT uuid, schemaVersionMajor, schemaVersionMinor, schemaVersionPatch
		FROM Information
	`).Scan(&uuid, &v.Major, &v.Minor, &v.Patch)
	if errors.Is(err, sql.ErrNoRows) {
		return "", SemanticVersion{}, fmt.Errorf("%w: information row is missing", ErrDatabaseInconsistency)
	}
	if err != nil {
		return "", SemanticVersion{}, fmt.Errorf("%w: information row is malformed: %v", ErrDatabaseInconsistency, err)
	}
	return uuid, v, nil
}

// detectSchema reads a store's recorded version and resolves it against the
// known set.
func detectSchema(db *sql.DB) (*schemaDef, error) {
	_, v, err := readInformation(db)
	if err != nil {
		return nil, err
	}
	return schemaFor(v)
}

// verifySchema checks a store's actual layout against the expected tables
// for its version. The first structural mismatch found (missing table,
// missing column, wrong declared type) is reported as a database
// inconsistency naming the offender.
func verifySchema(db *sql.DB, tables []tableSpec) error {
	for _, table := range tables {
		var count int
		err := db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table.name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to query sqlite_master for %s: %w", table.name, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: table %s is missing", ErrDatabaseInconsistency, table.name)
		}

		actual, err := tableColumns(db, table.name)
		if err != nil {
			return err
		}
		for _, column := range table.columns {
			declType, ok := actual[column.name]
			if !ok {
				return fmt.Errorf("%w: table %s is missing column %s",
					ErrDatabaseInconsistency, table.name, column.name)
			}
			if declType != column.declType {
				return fmt.Errorf("%w: column %s.%s has type %s, expected %s",
					ErrDatabaseInconsistency, table.name, column.name, declType, column.declType)
			}
		}
	}
	return nil
}

// tableColumns returns the declared type of each column of a table.
func tableColumns(db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table_info for %s: %w", table, err)
		}
		columns[name] = declType
	}
	return columns, rows.Err()
}

// upgradeSchema moves both stores forward from the current version to the
// target. Each intermediate version's delta is applied as its own atomic
// step (DDL plus Information version bump, per store), so a failure part
// way through leaves the stores at a well-defined intermediate version
// rather than between versions. Within one step the music store is
// upgraded before the performance store; a failure between the two leaves
// the stores recording different versions, a state Verify reports as an
// inconsistency until the interrupted step is completed.
func upgradeSchema(music, perf *sql.DB, current, target SemanticVersion) error {
	if _, err := schemaFor(target); err != nil {
		return err
	}
	if _, err := schemaFor(current); err != nil {
		return err
	}
	if target.Less(current) {
		return fmt.Errorf("%w: cannot downgrade from %s to %s", ErrInvalidArgument, current, target)
	}

	for _, def := range schemaDefs {
		if !current.Less(def.version) || target.Less(def.version) {
			continue
		}
		if err := applyDelta(music, def.musicDelta, def.version); err != nil {
			return err
		}
		if err := applyDelta(perf, def.perfDelta, def.version); err != nil {
			return err
		}
	}
	return nil
}

// applyDelta runs one version step's ALTER statements and records the new
// version, inside a single transaction.
func applyDelta(db *sql.DB, delta []string, v SemanticVersion) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upgrade transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range delta {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply upgrade step for %s: %w", v, err)
		}
	}

	_, err = tx.Exec(`
		UPDATE Information
		SET schemaVersionMajor = ?, schemaVersionMinor = ?, schemaVersionPatch = ?
	`, v.Major, v.Minor, v.Patch)
	if err != nil {
		return fmt.Errorf("failed to record upgraded version %s: %w", v, err)
	}

	return tx.Commit()
}
