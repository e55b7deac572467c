package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterStateClone(t *testing.T) {
	original := ParameterState{"w": {1.0, 2.0}}
	clone := original.Clone()

	clone["w"][0] = 99.0
	assert.InDelta(t, 1.0, original["w"][0], 1e-9)
}

func TestParameterStateScanRoundTrip(t *testing.T) {
	original := ParameterState{"w": {1.5, -2.5}}

	value, err := original.Value()
	require.NoError(t, err)

	var scanned ParameterState
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestNextVersionLeavesReceiverUntouched(t *testing.T) {
	model := NewGlobalModel("battery_health", ParameterState{"w": {1.0}}, "uniform_average")

	next := model.NextVersion(ParameterState{"w": {2.0}}, "uniform_average", 5, 3)

	assert.Equal(t, 1, model.Version)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, 5, next.ParticipantCount)
	assert.Equal(t, 3, next.RoundAtCreation)
	assert.InDelta(t, 1.0, model.Parameters["w"][0], 1e-9)
}

func TestStringListContains(t *testing.T) {
	list := StringList{"site-a", "site-b"}
	assert.True(t, list.Contains("site-a"))
	assert.False(t, list.Contains("site-c"))
}
