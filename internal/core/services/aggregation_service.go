package services

import (
	"context"
	"fmt"

	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// Recognized aggregation strategy names. Only uniform averaging has a real
// implementation; the other arms fail loudly instead of silently aliasing so
// callers selecting them deliberately are not misled.
const (
	StrategyUniformAverage   = "uniform_average"
	StrategyFedProx          = "fedprox"
	StrategyCoordinateMedian = "coordinate_median"
)

// AggregationService fuses a batch of privacy-transformed client updates
// into a new parameter state. Updates are deltas against the base state.
type AggregationService struct {
	federation *config.FederationConfig
}

func NewAggregationService(federation *config.FederationConfig) *AggregationService {
	return &AggregationService{federation: federation}
}

// Aggregate returns base + weighted-average(delta) per parameter array.
// Clients enter with weight 1 unless their update carries modality tags, in
// which case the weight for an array is client.AggregationWeight scaled by
// the configured modality weight for that array's name.
func (s *AggregationService) Aggregate(ctx context.Context, base models.ParameterState, updates []*models.ClientUpdate, clients map[string]*models.Client, strategy string) (models.ParameterState, error) {
	switch strategy {
	case StrategyUniformAverage, "":
	case StrategyFedProx, StrategyCoordinateMedian:
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotImplemented, strategy)
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", strategy)
	}

	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no updates buffered", ErrInsufficientParticipants)
	}

	distinct := distinctClients(updates)
	if distinct < s.federation.SecureAggregationThreshold {
		return nil, fmt.Errorf("%w: need %d distinct clients, have %d",
			ErrInsufficientParticipants, s.federation.SecureAggregationThreshold, distinct)
	}

	log := logger.WithComponent("aggregation")

	deltas := make(models.ParameterState)
	weightTotals := make(map[string]float64)

	for _, update := range updates {
		for name, values := range update.Payload {
			weight := s.effectiveWeight(update, clients[update.ClientID], name)
			if weight <= 0 {
				continue
			}

			if _, ok := deltas[name]; !ok {
				deltas[name] = make([]float64, len(values))
			}
			sums := deltas[name]
			for i, v := range values {
				if i < len(sums) {
					sums[i] += v * weight
				}
			}
			weightTotals[name] += weight
		}
	}

	result := base.Clone()
	for name, sums := range deltas {
		total := weightTotals[name]
		if total == 0 {
			continue
		}
		baseValues, ok := result[name]
		if !ok {
			baseValues = make([]float64, len(sums))
			result[name] = baseValues
		}
		for i := range baseValues {
			if i < len(sums) {
				baseValues[i] += sums[i] / total
			}
		}
	}

	log.Info().
		Int("updates", len(updates)).
		Int("distinct_clients", distinct).
		Int("parameter_groups", len(deltas)).
		Msg("Aggregated client updates")

	return result, nil
}

// effectiveWeight resolves a client's contribution weight for one parameter
// array. Untagged updates keep the uniform weight of 1; tagged updates use
// the client's capability-derived weight, fused with the per-modality table
// when the array is named after a modality.
func (s *AggregationService) effectiveWeight(update *models.ClientUpdate, client *models.Client, parameterName string) float64 {
	if len(update.ModalitiesUsed) == 0 {
		return 1.0
	}

	clientWeight := 1.0
	if client != nil {
		clientWeight = client.AggregationWeight
	}

	if modalityWeight, ok := s.federation.ModalityWeights()[parameterName]; ok {
		return clientWeight * modalityWeight
	}
	return clientWeight
}

func distinctClients(updates []*models.ClientUpdate) int {
	seen := make(map[string]struct{}, len(updates))
	for _, update := range updates {
		seen[update.ClientID] = struct{}{}
	}
	return len(seen)
}
