package domain

import (
	"fmt"
	"time"
)

// Artifact is the reuse registry row for a natural key: it points at the
// deterministic object-storage path produced by whichever job most recently
// generated (rather than reused) that key's CSV.
type Artifact struct {
	IndexKey      string
	EffectiveDate int
	AsofIndicator string
	S3Path        string
	SourceJobID   string
	GeneratedAt   time.Time
}

// ObjectPath computes the deterministic object-storage path for a unit's
// natural key and the job that generates it:
//
//	<basePath>/YYYY/MM/DD/<jobID>/<indexKey>_<YYYYMMDD>_<asof>.csv
//
// The date segments come from effectiveDate, never from the current date, and
// the jobID segment scopes freshly generated artifacts to the job that wrote
// them; the Artifact row is what keeps a stable pointer to that path once the
// job's own Run finishes.
func ObjectPath(basePath string, effectiveDate EffectiveDate, indexKey, asofIndicator, jobID string) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s_%08d_%s.csv",
		basePath,
		effectiveDate.Year(), effectiveDate.Month(), effectiveDate.Day(),
		jobID,
		indexKey, effectiveDate.Int(), asofIndicator,
	)
}
