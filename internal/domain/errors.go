package domain

import "errors"

// Domain errors - these are returned by Store implementations
// and checked by the engine layer via errors.Is.
var (
	// ErrJobKeyConflict indicates a submission reused a job_key that already exists.
	// Service layer should map this to HTTP 409.
	ErrJobKeyConflict = errors.New("job key already exists")

	// ErrTooManyUnits indicates a submission exceeded submission.maxUnitsPerJob.
	// Service layer should map this to HTTP 413.
	ErrTooManyUnits = errors.New("unit count exceeds configured cap")

	// ErrJobNotFound indicates the requested job_id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnitOwnershipLost indicates a guarded mutation affected zero rows because
	// the unit's lease_owner no longer matches the caller: the lease expired and
	// another worker claimed the unit, or the unit already reached a terminal state.
	// Callers must treat this as "work was taken over", not as an error to retry.
	ErrUnitOwnershipLost = errors.New("unit ownership lost or already finalized")

	// ErrJobNotCancellable indicates CancelJob was called on a job that is
	// already terminal; the caller should treat this as a no-op, not a failure.
	ErrJobNotCancellable = errors.New("job is already terminal")

	// ErrDeadLetterNotFound indicates the requested dead-letter record does not exist
	// or was already resolved.
	ErrDeadLetterNotFound = errors.New("dead letter record not found")

	// ErrFieldRequired indicates a required submission field was empty or whitespace-only.
	ErrFieldRequired = errors.New("field is required")

	// ErrInvalidEffectiveDate indicates a submitted effectiveDate was not a valid calendar date.
	ErrInvalidEffectiveDate = errors.New("invalid effective date")
)
