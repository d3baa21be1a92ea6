package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits_RoundHalfEven(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"10.005", 1000},
		{"10.015", 1002},
		{"10.025", 1002},
		{"19.999", 2000},
		{"0.004", 0},
		{"150", 15000},
		{"99.99", 9999},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("12.34").Equal(FromMinorUnits(1234)))
}

func TestImportStatus_NeverDowngrades(t *testing.T) {
	assert.Equal(t, StatusPaid, ImportStatus(StatusPaid))
	assert.Equal(t, StatusPending, ImportStatus(StatusPending))
	assert.Equal(t, StatusPending, ImportStatus(""))
}

func TestCanSettle(t *testing.T) {
	assert.True(t, CanSettle(StatusPending))
	assert.False(t, CanSettle(StatusPaid))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
	assert.True(t, ValidEmail("jane.doe+x@example.co"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("a@b"))
}

func TestDebt_Ref(t *testing.T) {
	d := &Debt{Status: StatusPending}
	assert.Equal(t, "", d.Ref())
	assert.False(t, d.IsPaid())

	ref := "pi_123"
	d.ExternalRef, d.Status = &ref, StatusPaid
	assert.Equal(t, "pi_123", d.Ref())
	assert.True(t, d.IsPaid())
}
