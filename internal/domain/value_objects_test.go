package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "trims whitespace", input: "  ACC1  ", want: "ACC1"},
		{name: "rejects empty", input: "", wantErr: true},
		{name: "rejects whitespace only", input: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewIndexKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFieldRequired)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key.String())
		})
	}
}

func TestNewAsofIndicator_RejectsBlank(t *testing.T) {
	_, err := NewAsofIndicator("  ")
	assert.ErrorIs(t, err, ErrFieldRequired)
}

func TestNewEffectiveDate(t *testing.T) {
	tests := []struct {
		name    string
		input   int
		wantErr bool
	}{
		{name: "valid date", input: 20260701},
		{name: "leap day valid", input: 20240229},
		{name: "non-leap-year Feb 29 rejected", input: 20260229, wantErr: true},
		{name: "month 13 rejected", input: 20261301, wantErr: true},
		{name: "day 32 rejected", input: 20260132, wantErr: true},
		{name: "out of range low", input: 99, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, err := NewEffectiveDate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidEffectiveDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, date.Int())
		})
	}
}

func TestEffectiveDate_YearMonthDay(t *testing.T) {
	date, err := NewEffectiveDate(20260701)
	require.NoError(t, err)

	assert.Equal(t, 2026, date.Year())
	assert.Equal(t, 7, date.Month())
	assert.Equal(t, 1, date.Day())
}

func TestNewJobKey_RejectsBlank(t *testing.T) {
	_, err := NewJobKey("")
	assert.ErrorIs(t, err, ErrFieldRequired)
}
