package enginelib

import (
	"database/sql"
	"fmt"
)

// Transaction is a scoped unit of work spanning both stores. While it is
// live, every mutation issued through its Database buffers inside it;
// Commit is the only path to durability, and a guard abandoned without
// commit discards everything on Rollback (or when the handle closes).
//
// At most one Transaction may be live per Database. Nested guards are
// rejected rather than silently flattened.
type Transaction struct {
	db    *Database
	music *sql.Tx
	perf  *sql.Tx
	done  bool
}

// Begin starts a transaction covering the music and performance stores.
// It fails with ErrInvalidArgument if another transaction is live on this
// handle.
func (d *Database) Begin() (*Transaction, error) {
	if d.tx != nil {
		return nil, fmt.Errorf("%w: a transaction is already in progress on this handle", ErrInvalidArgument)
	}

	music, err := d.music.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin music store transaction: %w", err)
	}
	perf, err := d.perf.Begin()
	if err != nil {
		music.Rollback()
		return nil, fmt.Errorf("failed to begin performance store transaction: %w", err)
	}

	tx := &Transaction{db: d, music: music, perf: perf}
	d.tx = tx
	return tx, nil
}

// Commit finalizes the buffered effects on both stores, music store
// first. If the music store fails to commit, the performance store is
// rolled back and the library is left in its pre-transaction state.
func (t *Transaction) Commit() error {
	if t.done {
		return fmt.Errorf("%w: transaction already completed", ErrInvalidArgument)
	}
	t.finish()

	if err := t.music.Commit(); err != nil {
		t.perf.Rollback()
		return fmt.Errorf("failed to commit music store: %w", err)
	}
	if err := t.perf.Commit(); err != nil {
		return fmt.Errorf("failed to commit performance store: %w", err)
	}
	return nil
}

// Rollback discards the buffered effects on both stores. It is a no-op
// on a completed transaction, so it is safe to defer unconditionally.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()

	merr := t.music.Rollback()
	perr := t.perf.Rollback()
	if merr != nil {
		return fmt.Errorf("failed to roll back music store: %w", merr)
	}
	if perr != nil {
		return fmt.Errorf("failed to roll back performance store: %w", perr)
	}
	return nil
}

// finish detaches the guard from its handle so a new one may begin.
func (t *Transaction) finish() {
	t.done = true
	if t.db.tx == t {
		t.db.tx = nil
	}
}
