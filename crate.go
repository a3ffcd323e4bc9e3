package enginelib

import (
	"database/sql"
	"errors"
	"fmt"
)

// Crate is a handle to one crate in the music store. Crate hierarchy is
// stored in CrateParentList with exactly one parent row per crate; root
// crates reference themselves. The parent relation always forms a forest:
// mutations that would make a crate its own ancestor are rejected with
// ErrCycleDetected before anything is written.
type Crate struct {
	db   *Database
	id   int64
	name string
}

// CreateCrate creates a new parentless crate with the given name.
func (d *Database) CreateCrate(name string) (*Crate, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: crate name must not be empty", ErrInvalidArgument)
	}

	cr := &Crate{db: d, name: name}
	err := d.withGuard(func(music, _ execer) error {
		result, err := music.Exec(`INSERT INTO Crate (title, path) VALUES (?, ?)`, name, name+";")
		if err != nil {
			return fmt.Errorf("failed to insert crate: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get crate id: %w", err)
		}
		cr.id = id

		_, err = music.Exec(`
			INSERT INTO CrateParentList (crateOriginId, crateParentId) VALUES (?, ?)
		`, id, id)
		if err != nil {
			return fmt.Errorf("failed to insert crate parent row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cr, nil
}

// CrateByID returns a handle to the crate with the given id, or nil if no
// such crate exists.
func (d *Database) CrateByID(id int64) (*Crate, error) {
	var name string
	err := d.musicExec().QueryRow(`SELECT title FROM Crate WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crate %d: %w", id, err)
	}
	return &Crate{db: d, id: id, name: name}, nil
}

// Crates returns all crates in the library.
func (d *Database) Crates() ([]*Crate, error) {
	return d.queryCrates(`SELECT id, title FROM Crate ORDER BY id`)
}

// CrateCount returns the number of crates in the library.
func (d *Database) CrateCount() (int, error) {
	var count int
	if err := d.musicExec().QueryRow(`SELECT COUNT(*) FROM Crate`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count crates: %w", err)
	}
	return count, nil
}

// CratesByName returns all crates with the given name.
func (d *Database) CratesByName(name string) ([]*Crate, error) {
	return d.queryCrates(`SELECT id, title FROM Crate WHERE title = ? ORDER BY id`, name)
}

// RootCrates returns all crates that have no parent.
func (d *Database) RootCrates() ([]*Crate, error) {
	return d.queryCrates(`
		SELECT c.id, c.title
		FROM Crate c
		JOIN CrateParentList p ON p.crateOriginId = c.id
		WHERE p.crateParentId = c.id
		ORDER BY c.id
	`)
}

func (d *Database) queryCrates(query string, args ...any) ([]*Crate, error) {
	rows, err := d.musicExec().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crates: %w", err)
	}
	defer rows.Close()

	var crates []*Crate
	for rows.Next() {
		cr := &Crate{db: d}
		if err := rows.Scan(&cr.id, &cr.name); err != nil {
			return nil, fmt.Errorf("failed to scan crate: %w", err)
		}
		crates = append(crates, cr)
	}
	return crates, rows.Err()
}

// ID returns the crate's id.
func (cr *Crate) ID() int64 { return cr.id }

// Name returns the crate's name.
func (cr *Crate) Name() string { return cr.name }

// SetName renames the crate immediately.
func (cr *Crate) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: crate name must not be empty", ErrInvalidArgument)
	}
	return cr.db.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}
		_, err := music.Exec(`UPDATE Crate SET title = ?, path = ? WHERE id = ?`,
			name, name+";", cr.id)
		if err != nil {
			return fmt.Errorf("failed to rename crate %d: %w", cr.id, err)
		}
		cr.name = name
		return nil
	})
}

// AddTrack adds a track to the crate's membership. Adding a track that is
// already a member is a no-op.
func (cr *Crate) AddTrack(trackID int64) error {
	return cr.db.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}
		var count int
		if err := music.QueryRow(`SELECT COUNT(*) FROM Track WHERE id = ?`, trackID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check track %d: %w", trackID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: no track with id %d", ErrInvalidArgument, trackID)
		}
		_, err := music.Exec(`
			INSERT OR IGNORE INTO CrateTrackList (crateId, trackId) VALUES (?, ?)
		`, cr.id, trackID)
		if err != nil {
			return fmt.Errorf("failed to add track %d to crate %d: %w", trackID, cr.id, err)
		}
		return nil
	})
}

// RemoveTrack removes a track from the crate's membership. The track
// itself is untouched.
func (cr *Crate) RemoveTrack(trackID int64) error {
	return cr.db.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}
		_, err := music.Exec(`
			DELETE FROM CrateTrackList WHERE crateId = ? AND trackId = ?
		`, cr.id, trackID)
		if err != nil {
			return fmt.Errorf("failed to remove track %d from crate %d: %w", trackID, cr.id, err)
		}
		return nil
	})
}

// TrackIDs returns the ids of the crate's member tracks in insertion
// order.
func (cr *Crate) TrackIDs() ([]int64, error) {
	rows, err := cr.db.musicExec().Query(`
		SELECT trackId FROM CrateTrackList WHERE crateId = ? ORDER BY rowid
	`, cr.id)
	if err != nil {
		return nil, fmt.Errorf("failed to query crate tracks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan crate track: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Parent returns the crate's parent, or nil for a root crate.
func (cr *Crate) Parent() (*Crate, error) {
	parentID, err := cr.parentID(cr.db.musicExec(), cr.id)
	if err != nil {
		return nil, err
	}
	if parentID == cr.id {
		return nil, nil
	}
	return cr.db.CrateByID(parentID)
}

// Children returns the crates whose parent is this crate. The result is
// derived from the store on every call, never cached.
func (cr *Crate) Children() ([]*Crate, error) {
	return cr.db.queryCrates(`
		SELECT c.id, c.title
		FROM Crate c
		JOIN CrateParentList p ON p.crateOriginId = c.id
		WHERE p.crateParentId = ? AND p.crateOriginId <> ?
		ORDER BY c.id
	`, cr.id, cr.id)
}

// SetParent makes the crate a child of parent. It fails with
// ErrCycleDetected, before any write, when parent is the crate itself or
// one of its descendants.
func (cr *Crate) SetParent(parent *Crate) error {
	return cr.db.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}
		if err := parent.ensureLive(music); err != nil {
			return err
		}
		if err := cr.checkNoCycle(music, parent.id); err != nil {
			return err
		}
		return cr.writeParent(music, parent.id)
	})
}

// ClearParent makes the crate a root crate.
func (cr *Crate) ClearParent() error {
	return cr.db.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}
		return cr.writeParent(music, cr.id)
	})
}

func (cr *Crate) writeParent(music execer, parentID int64) error {
	_, err := music.Exec(`
		UPDATE CrateParentList SET crateParentId = ? WHERE crateOriginId = ?
	`, parentID, cr.id)
	if err != nil {
		return fmt.Errorf("failed to set parent of crate %d: %w", cr.id, err)
	}
	return nil
}

// checkNoCycle walks the ancestor chain of the proposed parent and
// rejects the mutation if this crate's id appears in it. The visited set
// stops the walk if the stored hierarchy is already cyclic.
func (cr *Crate) checkNoCycle(music execer, parentID int64) error {
	visited := map[int64]bool{}
	for id := parentID; ; {
		if id == cr.id {
			return fmt.Errorf("%w: crate %d is an ancestor of crate %d", ErrCycleDetected, cr.id, parentID)
		}
		if visited[id] {
			return fmt.Errorf("%w: existing hierarchy above crate %d is cyclic", ErrDatabaseInconsistency, parentID)
		}
		visited[id] = true

		next, err := cr.parentID(music, id)
		if err != nil {
			return err
		}
		if next == id {
			return nil // reached a root
		}
		id = next
	}
}

func (cr *Crate) parentID(music execer, id int64) (int64, error) {
	var parentID int64
	err := music.QueryRow(`
		SELECT crateParentId FROM CrateParentList WHERE crateOriginId = ?
	`, id).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: crate %d has no parent row", ErrDatabaseInconsistency, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query parent of crate %d: %w", id, err)
	}
	return parentID, nil
}

// ensureLive fails with ErrInvalidatedObject when the crate row no longer
// exists.
func (cr *Crate) ensureLive(music execer) error {
	var count int
	if err := music.QueryRow(`SELECT COUNT(*) FROM Crate WHERE id = ?`, cr.id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check crate liveness: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: crate %d has been removed", ErrInvalidatedObject, cr.id)
	}
	return nil
}

// RemoveCrate deletes a crate and its membership rows. Child crates are
// promoted to the removed crate's parent (or become roots if the removed
// crate was a root); they are never deleted and never left dangling.
func (d *Database) RemoveCrate(cr *Crate) error {
	return d.withGuard(func(music, _ execer) error {
		if err := cr.ensureLive(music); err != nil {
			return err
		}

		parentID, err := cr.parentID(music, cr.id)
		if err != nil {
			return err
		}

		if parentID == cr.id {
			// Removed crate was a root: its children become roots.
			_, err = music.Exec(`
				UPDATE CrateParentList SET crateParentId = crateOriginId
				WHERE crateParentId = ? AND crateOriginId <> ?
			`, cr.id, cr.id)
		} else {
			_, err = music.Exec(`
				UPDATE CrateParentList SET crateParentId = ?
				WHERE crateParentId = ? AND crateOriginId <> ?
			`, parentID, cr.id, cr.id)
		}
		if err != nil {
			return fmt.Errorf("failed to promote children of crate %d: %w", cr.id, err)
		}

		deletes := []string{
			`DELETE FROM CrateTrackList WHERE crateId = ?`,
			`DELETE FROM CrateParentList WHERE crateOriginId = ?`,
			`DELETE FROM Crate WHERE id = ?`,
		}
		for _, stmt := range deletes {
			if _, err := music.Exec(stmt, cr.id); err != nil {
				return fmt.Errorf("failed to remove crate %d: %w", cr.id, err)
			}
		}
		return nil
	})
}
