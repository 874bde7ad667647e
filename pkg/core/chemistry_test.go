package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeutralMass(t *testing.T) {
	tests := []struct {
		name   string
		mz     float64
		charge int
		want   float64
	}{
		{"singly charged", 501.00727646688, 1, 500.0},
		{"doubly charged", 251.00727646688, 2, 500.0},
		{"unknown charge as 1", 501.00727646688, 0, 500.0},
		{"negative mode", 498.99272353312, -1, 500.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeutralMass(tt.mz, tt.charge)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, tt.mz, MZFromMass(got, tt.charge), 1e-9)
		})
	}
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 500.11, RoundFloat(500.1149, 2))
	assert.Equal(t, 3.0, RoundFloat(2.6, 0))
}
