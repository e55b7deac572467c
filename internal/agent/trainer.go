package agent

import (
	"context"
	"math/rand"

	"github.com/voltfed/voltfed-server/internal/core/models"
)

// SimulatedTrainer stands in for a real training backend. It produces a
// small random perturbation of each parameter array plus plausible loss
// and accuracy figures.
type SimulatedTrainer struct {
	Scale float64
}

func NewSimulatedTrainer() *SimulatedTrainer {
	return &SimulatedTrainer{
		Scale: 0.1,
	}
}

func (t *SimulatedTrainer) ComputeUpdate(ctx context.Context, global models.ParameterState) (models.ParameterState, map[string]float64, error) {
	scale := t.Scale
	if scale <= 0 {
		scale = 0.1
	}

	delta := make(models.ParameterState, len(global))
	for name, values := range global {
		perturbed := make([]float64, len(values))
		for i := range values {
			perturbed[i] = (rand.Float64()*2 - 1) * scale
		}
		delta[name] = perturbed
	}

	metrics := map[string]float64{
		"loss":     0.5 + rand.Float64()*0.5,
		"accuracy": 0.6 + rand.Float64()*0.3,
		"samples":  float64(100 + rand.Intn(900)),
	}

	return delta, metrics, nil
}
