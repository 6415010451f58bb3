package engine

import (
	"context"
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// ReuseConfig is the configuration governing the reuse decision
// (file.reuse.enabled, file.reuse.days) plus the time zone "today" is
// evaluated in (timezone).
type ReuseConfig struct {
	Enabled  bool
	Days     int
	Location *time.Location
}

// ReuseDecision is the outcome of ArtifactIndex.Decide: either GENERATE, or
// REUSE with the prior artifact's path.
type ReuseDecision struct {
	Reuse  bool
	S3Path string
}

// ArtifactIndex is a thin layer over Store for the reuse registry and the
// reuse decision. The decision is evaluated before any object-storage or
// export-procedure work is attempted.
type ArtifactIndex struct {
	store Store
	clock Clock
	cfg   ReuseConfig
}

func NewArtifactIndex(store Store, clock Clock, cfg ReuseConfig) *ArtifactIndex {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ArtifactIndex{store: store, clock: clock, cfg: cfg}
}

// Decide implements:
//  1. reuse.enabled = false -> GENERATE.
//  2. no artifact for the natural key -> GENERATE.
//  3. effectiveDate >= today - reuse.days -> GENERATE (strict inequality: a
//     date exactly reuse.days old still regenerates).
//  4. otherwise -> REUSE(artifact.s3_path).
func (a *ArtifactIndex) Decide(ctx context.Context, key domain.NaturalKey, effectiveDate domain.EffectiveDate) (ReuseDecision, error) {
	if !a.cfg.Enabled {
		return ReuseDecision{}, nil
	}

	artifact, err := a.store.LookupArtifact(ctx, key)
	if err != nil {
		return ReuseDecision{}, err
	}
	if artifact == nil {
		return ReuseDecision{}, nil
	}

	now := a.clock.Now().In(a.cfg.Location)
	// Today's calendar date in the configured zone, expressed as UTC midnight
	// so it compares directly with effectiveDate.Time().
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, -a.cfg.Days)
	if !effectiveDate.Time().Before(cutoff) {
		// effectiveDate >= cutoff: still inside the regeneration window.
		return ReuseDecision{}, nil
	}

	return ReuseDecision{Reuse: true, S3Path: artifact.S3Path}, nil
}
