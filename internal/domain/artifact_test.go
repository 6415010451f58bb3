package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath_IsDeterministicFromEffectiveDate(t *testing.T) {
	date, err := NewEffectiveDate(20260701)
	require.NoError(t, err)

	path := ObjectPath("gs://bucket/exports", date, "ACC1", "EOD", "job-123")

	assert.Equal(t, "gs://bucket/exports/2026/07/01/job-123/ACC1_20260701_EOD.csv", path)
}

func TestObjectPath_UsesEffectiveDateNotCurrentDate(t *testing.T) {
	// Regression guard: the path must be built from the unit's effectiveDate,
	// not from whenever the job happens to run.
	date, err := NewEffectiveDate(20200101)
	require.NoError(t, err)

	path := ObjectPath("base", date, "KEY", "ASOF", "job-1")

	assert.Contains(t, path, "/2020/01/01/")
}
