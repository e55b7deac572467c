package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// PrivacyService applies the differential-privacy transform to client
// updates before they become visible to aggregation: per-array L2 clipping
// followed by calibrated gaussian noise, plus a privacy budget charge against
// the originating client.
type PrivacyService struct {
	privacy    *config.PrivacyConfig
	accountant ports.BudgetAccountant
}

func NewPrivacyService(privacy *config.PrivacyConfig, accountant ports.BudgetAccountant) *PrivacyService {
	return &PrivacyService{
		privacy:    privacy,
		accountant: accountant,
	}
}

// Sanitize returns a transformed copy of the update. The input payload is
// not mutated. The budget decrement is proportional to the mean noise
// multiplier actually applied across the modalities used.
func (s *PrivacyService) Sanitize(ctx context.Context, update *models.ClientUpdate) (*models.ClientUpdate, error) {
	log := logger.WithComponent("privacy")

	sanitized := *update
	sanitized.Payload = make(models.ParameterState, len(update.Payload))

	var multiplierSum float64
	var arrays int

	for name, values := range update.Payload {
		multiplier := s.multiplierFor(name)
		multiplierSum += multiplier
		arrays++

		clipped := clipL2(values, s.privacy.MaxGradNorm)
		if multiplier > 0 {
			sigma := multiplier * s.privacy.MaxGradNorm
			for i := range clipped {
				clipped[i] += rand.NormFloat64() * sigma
			}
		}
		sanitized.Payload[name] = clipped
	}

	if arrays == 0 {
		return &sanitized, nil
	}

	charge := s.privacy.BudgetCostPerRound * (multiplierSum / float64(arrays))
	remaining, err := s.accountant.Charge(ctx, update.ClientID, charge)
	if err != nil {
		return nil, fmt.Errorf("failed to charge privacy budget: %w", err)
	}

	log.Debug().
		Str("client_id", update.ClientID).
		Float64("charge", charge).
		Float64("budget_remaining", remaining).
		Msg("Sanitized client update")

	return &sanitized, nil
}

// multiplierFor resolves the noise multiplier for a payload array, honoring
// per-modality overrides keyed by the array name.
func (s *PrivacyService) multiplierFor(name string) float64 {
	if override, ok := s.privacy.ModalityNoiseMultipliers()[name]; ok {
		return override
	}
	return s.privacy.NoiseMultiplier
}

// clipL2 rescales so the L2 norm does not exceed maxNorm. Arrays already
// inside the bound pass through unscaled; nothing is ever scaled up.
func clipL2(values []float64, maxNorm float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	var sumSquares float64
	for _, v := range out {
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm <= maxNorm || norm == 0 {
		return out
	}

	scale := maxNorm / norm
	for i := range out {
		out[i] *= scale
	}
	return out
}
