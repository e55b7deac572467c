package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltfed/voltfed-server/internal/core/models"
)

func TestRegisterComputesCapabilityWeight(t *testing.T) {
	svc := NewRegistryService(newMemClientRepo(), testFederationConfig())

	client, err := svc.Register(context.Background(), "site-a", "Site A", []string{models.ModalityImage, models.ModalityTimeSeries})
	require.NoError(t, err)

	assert.InDelta(t, 0.7, client.AggregationWeight, 1e-9)
	assert.Equal(t, models.ClientStatusRegistered, client.Status)
	assert.InDelta(t, 1.0, client.PrivacyBudgetRemaining, 1e-9)
}

func TestRegisterUnknownCapabilitiesDefaultWeight(t *testing.T) {
	svc := NewRegistryService(newMemClientRepo(), testFederationConfig())

	client, err := svc.Register(context.Background(), "site-a", "Site A", []string{"genomics"})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, client.AggregationWeight, 1e-9)
}

func TestReRegisterPreservesBudgetAndHistory(t *testing.T) {
	repo := newMemClientRepo()
	svc := NewRegistryService(repo, testFederationConfig())

	first, err := svc.Register(context.Background(), "site-a", "Site A", []string{models.ModalityImage})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, first.AggregationWeight, 1e-9)

	first.PrivacyBudgetRemaining = 0.4
	first.ParticipationCount = 3
	require.NoError(t, repo.Update(context.Background(), first))

	second, err := svc.Register(context.Background(), "site-a", "Site A v2", []string{models.ModalityTimeSeries})
	require.NoError(t, err)

	assert.Equal(t, "Site A v2", second.DisplayName)
	assert.InDelta(t, 0.4, second.AggregationWeight, 1e-9)
	assert.InDelta(t, 0.4, second.PrivacyBudgetRemaining, 1e-9)
	assert.Equal(t, 3, second.ParticipationCount)
}

func TestRecordParticipation(t *testing.T) {
	svc := NewRegistryService(newMemClientRepo(), testFederationConfig())

	_, err := svc.Register(context.Background(), "site-a", "Site A", nil)
	require.NoError(t, err)

	require.NoError(t, svc.RecordParticipation(context.Background(), "site-a"))
	require.NoError(t, svc.RecordParticipation(context.Background(), "site-a"))

	client, err := svc.Get(context.Background(), "site-a")
	require.NoError(t, err)
	assert.Equal(t, 2, client.ParticipationCount)
}

func TestMarkTrainingAndIdle(t *testing.T) {
	svc := NewRegistryService(newMemClientRepo(), testFederationConfig())

	_, err := svc.Register(context.Background(), "site-a", "Site A", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "site-b", "Site B", nil)
	require.NoError(t, err)

	require.NoError(t, svc.MarkTraining(context.Background(), []string{"site-a", "site-b"}))

	training, err := svc.List(context.Background(), models.ClientStatusTraining)
	require.NoError(t, err)
	assert.Len(t, training, 2)

	require.NoError(t, svc.MarkIdle(context.Background(), []string{"site-a"}))

	registered, err := svc.List(context.Background(), models.ClientStatusRegistered)
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, "site-a", registered[0].ClientID)
}
