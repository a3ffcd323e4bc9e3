package enginelib

import "errors"

// Sentinel errors for the public failure modes. Fallible operations wrap
// these with context, so callers branch with errors.Is.
var (
	// ErrUnsupportedVersion indicates a schema version outside the known set
	ErrUnsupportedVersion = errors.New("unsupported database version")

	// ErrDatabaseInconsistency indicates a structural mismatch between the
	// recorded schema version and the actual layout of a store
	ErrDatabaseInconsistency = errors.New("database inconsistency")

	// ErrDatabaseNotFound indicates the database files are missing
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrCorruptPerformanceData indicates a performance blob failed to decode
	ErrCorruptPerformanceData = errors.New("corrupt performance data")

	// ErrNonexistentPerformanceData indicates no performance data has been
	// saved for the track; expected when analysis has not yet run
	ErrNonexistentPerformanceData = errors.New("performance data does not exist")

	// ErrCycleDetected indicates a crate hierarchy mutation that would make
	// a crate its own ancestor
	ErrCycleDetected = errors.New("crate hierarchy cycle detected")

	// ErrInvalidArgument indicates a uniqueness or domain-range violation
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidatedObject indicates an operation through a handle whose
	// underlying row has been removed
	ErrInvalidatedObject = errors.New("object handle invalidated")
)
