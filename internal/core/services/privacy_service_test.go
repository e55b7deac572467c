package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
)

func testPrivacyConfig(noiseMultiplier, maxGradNorm, budgetCost float64) *config.PrivacyConfig {
	pc := &config.PrivacyConfig{
		NoiseMultiplier:    noiseMultiplier,
		MaxGradNorm:        maxGradNorm,
		BudgetCostPerRound: budgetCost,
	}
	pc.SetModalityNoiseMultipliers(map[string]float64{})
	return pc
}

func seedClient(t *testing.T, repo *memClientRepo, clientID string, budget float64) {
	t.Helper()
	client := models.NewClient(clientID, clientID, nil, 1.0)
	client.PrivacyBudgetRemaining = budget
	require.NoError(t, repo.Create(context.Background(), client))
}

func l2Norm(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func TestSanitizeClipsToMaxNorm(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 1.0)

	svc := NewPrivacyService(testPrivacyConfig(0, 1.0, 0.05), NewLinearAccountant(clientRepo))

	update := testUpdate("site-a", models.ParameterState{"w": {3.0, 4.0}})
	sanitized, err := svc.Sanitize(context.Background(), update)
	require.NoError(t, err)

	clipped := sanitized.Payload["w"]
	assert.InDelta(t, 1.0, l2Norm(clipped), 1e-9)
	// Direction is preserved, only the magnitude shrinks.
	assert.InDelta(t, 3.0/4.0, clipped[0]/clipped[1], 1e-9)
}

func TestSanitizePassesArraysInsideBound(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 1.0)

	svc := NewPrivacyService(testPrivacyConfig(0, 1.0, 0.05), NewLinearAccountant(clientRepo))

	update := testUpdate("site-a", models.ParameterState{"w": {0.3, 0.4}})
	sanitized, err := svc.Sanitize(context.Background(), update)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.3, 0.4}, sanitized.Payload["w"])
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 1.0)

	svc := NewPrivacyService(testPrivacyConfig(0.5, 1.0, 0.05), NewLinearAccountant(clientRepo))

	update := testUpdate("site-a", models.ParameterState{"w": {3.0, 4.0}})
	_, err := svc.Sanitize(context.Background(), update)
	require.NoError(t, err)

	assert.Equal(t, []float64{3.0, 4.0}, update.Payload["w"])
}

func TestSanitizeChargesBudget(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 1.0)

	svc := NewPrivacyService(testPrivacyConfig(0.1, 1.0, 0.05), NewLinearAccountant(clientRepo))

	update := testUpdate("site-a", models.ParameterState{"w": {0.1}, "bias": {0.1}})
	_, err := svc.Sanitize(context.Background(), update)
	require.NoError(t, err)

	client, err := clientRepo.GetByClientID(context.Background(), "site-a")
	require.NoError(t, err)
	assert.InDelta(t, 1.0-0.05*0.1, client.PrivacyBudgetRemaining, 1e-9)
}

func TestSanitizeModalityOverrideScalesCharge(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 1.0)

	pc := testPrivacyConfig(0.5, 1.0, 0.05)
	pc.SetModalityNoiseMultipliers(map[string]float64{models.ModalityImage: 0})
	svc := NewPrivacyService(pc, NewLinearAccountant(clientRepo))

	update := testUpdate("site-a", models.ParameterState{
		models.ModalityImage:  {0.1},
		models.ModalitySensor: {0.1},
	})
	sanitized, err := svc.Sanitize(context.Background(), update)
	require.NoError(t, err)

	// The zero override disables noise for the image array entirely.
	assert.Equal(t, []float64{0.1}, sanitized.Payload[models.ModalityImage])

	// Charge follows the mean of the multipliers actually applied.
	client, err := clientRepo.GetByClientID(context.Background(), "site-a")
	require.NoError(t, err)
	assert.InDelta(t, 1.0-0.05*0.25, client.PrivacyBudgetRemaining, 1e-9)
}

func TestLinearAccountantClampsAtZero(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 0.01)

	accountant := NewLinearAccountant(clientRepo)

	remaining, err := accountant.Charge(context.Background(), "site-a", 0.5)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	remaining, err = accountant.Charge(context.Background(), "site-a", 0.5)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestLinearAccountantNeverIncreasesBudget(t *testing.T) {
	clientRepo := newMemClientRepo()
	seedClient(t, clientRepo, "site-a", 0.4)

	accountant := NewLinearAccountant(clientRepo)

	remaining, err := accountant.Charge(context.Background(), "site-a", -0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, remaining, 1e-9)

	client, err := clientRepo.GetByClientID(context.Background(), "site-a")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, client.PrivacyBudgetRemaining, 1e-9)
}

func TestLinearAccountantUnknownClient(t *testing.T) {
	accountant := NewLinearAccountant(newMemClientRepo())

	_, err := accountant.Charge(context.Background(), "ghost", 0.1)
	assert.Error(t, err)
}
