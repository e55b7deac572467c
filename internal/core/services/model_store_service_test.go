package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
)

func TestInitializeModel(t *testing.T) {
	svc := NewModelStoreService(newMemModelRepo())

	model, err := svc.Initialize(context.Background(), "battery_health", models.ParameterState{"w": {1.0}}, StrategyUniformAverage)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Version)

	_, err = svc.Initialize(context.Background(), "battery_health", models.ParameterState{"w": {2.0}}, StrategyUniformAverage)
	assert.ErrorIs(t, err, ErrModelAlreadyInitialized)
}

func TestGetLatestMissingModel(t *testing.T) {
	svc := NewModelStoreService(newMemModelRepo())

	_, err := svc.GetLatest(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, repositories.ErrModelNotFound)
}

func TestCommitAdvancesVersionsGapless(t *testing.T) {
	svc := NewModelStoreService(newMemModelRepo())

	_, err := svc.Initialize(context.Background(), "battery_health", models.ParameterState{"w": {1.0}}, StrategyUniformAverage)
	require.NoError(t, err)

	v2, err := svc.CommitNewVersion(context.Background(), "battery_health", models.ParameterState{"w": {1.1}}, StrategyUniformAverage, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 3, v2.ParticipantCount)
	assert.Equal(t, 1, v2.RoundAtCreation)

	v3, err := svc.CommitNewVersion(context.Background(), "battery_health", models.ParameterState{"w": {1.2}}, StrategyUniformAverage, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)

	versions, err := svc.ListVersions(context.Background(), "battery_health")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, version := range versions {
		assert.Equal(t, i+1, version.Version)
	}
}

func TestCommittedVersionsAreImmutable(t *testing.T) {
	svc := NewModelStoreService(newMemModelRepo())

	state := models.ParameterState{"w": {1.0}}
	_, err := svc.Initialize(context.Background(), "battery_health", state, StrategyUniformAverage)
	require.NoError(t, err)

	// Mutating the caller's state after initialization must not leak into
	// the stored version.
	state["w"][0] = 99.0

	latest, err := svc.GetLatest(context.Background(), "battery_health")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, latest.Parameters["w"][0], 1e-9)

	latest.Parameters["w"][0] = 42.0
	again, err := svc.GetLatest(context.Background(), "battery_health")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, again.Parameters["w"][0], 1e-9)
}

func TestCommitMissingModel(t *testing.T) {
	svc := NewModelStoreService(newMemModelRepo())

	_, err := svc.CommitNewVersion(context.Background(), "nonexistent", models.ParameterState{"w": {1.0}}, StrategyUniformAverage, 1, 1)
	assert.ErrorIs(t, err, repositories.ErrModelNotFound)
}
