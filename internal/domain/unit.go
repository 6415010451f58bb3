package domain

import "time"

// UnitStatus is the lifecycle state of a Unit. Terminal statuses are
// Succeeded and DLQ; every other status can still transition.
type UnitStatus string

const (
	UnitPending   UnitStatus = "PENDING"
	UnitRunning   UnitStatus = "RUNNING"
	UnitSucceeded UnitStatus = "SUCCEEDED"
	UnitRetryWait UnitStatus = "RETRY_WAIT"
	UnitDLQ       UnitStatus = "DLQ"
)

// IsTerminal reports whether status is Succeeded or DLQ.
func (s UnitStatus) IsTerminal() bool {
	return s == UnitSucceeded || s == UnitDLQ
}

// Unit is one (job, indexKey, effectiveDate, asofIndicator) work item. It
// produces exactly one CSV artifact, either freshly generated or reused from
// a prior job's artifact.
type Unit struct {
	ID            string
	JobID         string
	IndexKey      string
	EffectiveDate int // yyyymmdd
	AsofIndicator string

	Status       UnitStatus
	AttemptCount int
	NextRetryAt  *time.Time
	LeaseOwner   *string
	LeaseUntil   *time.Time
	S3Path       *string
	IsReused     bool
	ErrorMessage *string
}

// NaturalKey is the (indexKey, effectiveDate, asofIndicator) triple used both
// for the unit's own uniqueness within a job and for artifact reuse lookups.
type NaturalKey struct {
	IndexKey      string
	EffectiveDate int
	AsofIndicator string
}

func (u Unit) NaturalKey() NaturalKey {
	return NaturalKey{
		IndexKey:      u.IndexKey,
		EffectiveDate: u.EffectiveDate,
		AsofIndicator: u.AsofIndicator,
	}
}

// DeadLetterRecord is the read-only history of a unit that reached DLQ,
// independent of the live Unit row, so the Admin surface can triage DLQ
// causes without scanning every unit of every job.
type DeadLetterRecord struct {
	InputID       string
	JobID         string
	IndexKey      string
	EffectiveDate int
	AsofIndicator string
	ErrorMessage  string
	AttemptCount  int
	FailedAt      time.Time
	ResolvedAt    *time.Time
	Resolution    *string // "redriven" | "discarded"
}
