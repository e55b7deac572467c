package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"github.com/voltfed/voltfed-server/internal/metrics"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// ModelStoreService keeps the append-only version history of every global
// model. Committing is reserved for the aggregation path; versions are never
// mutated in place.
type ModelStoreService struct {
	modelRepo ports.ModelRepository
	archiver  ports.ModelArchiver
}

func NewModelStoreService(modelRepo ports.ModelRepository) *ModelStoreService {
	return &ModelStoreService{modelRepo: modelRepo}
}

// SetArchiver wires an optional long-term storage backend. Archival failures
// are logged, never surfaced to the commit path.
func (s *ModelStoreService) SetArchiver(archiver ports.ModelArchiver) {
	s.archiver = archiver
}

func (s *ModelStoreService) Initialize(ctx context.Context, name string, initial models.ParameterState, aggregationMethod string) (*models.GlobalModel, error) {
	log := logger.WithComponent("model_store")

	_, err := s.modelRepo.GetLatest(ctx, name)
	if err == nil {
		return nil, ErrModelAlreadyInitialized
	}
	if !errors.Is(err, repositories.ErrModelNotFound) {
		return nil, fmt.Errorf("failed to check for existing model: %w", err)
	}

	model := models.NewGlobalModel(name, initial, aggregationMethod)
	if err := s.modelRepo.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	metrics.ModelVersion.WithLabelValues(name).Set(float64(model.Version))

	log.Info().
		Str("model", name).
		Int("parameter_groups", len(initial)).
		Msg("Initialized global model at version 1")

	return model, nil
}

func (s *ModelStoreService) GetLatest(ctx context.Context, name string) (*models.GlobalModel, error) {
	return s.modelRepo.GetLatest(ctx, name)
}

func (s *ModelStoreService) ListVersions(ctx context.Context, name string) ([]*models.GlobalModel, error) {
	return s.modelRepo.GetVersions(ctx, name)
}

func (s *ModelStoreService) CommitNewVersion(ctx context.Context, name string, state models.ParameterState, aggregationMethod string, participantCount, roundNumber int) (*models.GlobalModel, error) {
	log := logger.WithComponent("model_store")

	latest, err := s.modelRepo.GetLatest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	next := latest.NextVersion(state, aggregationMethod, participantCount, roundNumber)
	if err := s.modelRepo.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to commit version %d: %w", next.Version, err)
	}

	metrics.ModelVersion.WithLabelValues(name).Set(float64(next.Version))

	log.Info().
		Str("model", name).
		Int("version", next.Version).
		Int("participants", participantCount).
		Str("aggregation_method", aggregationMethod).
		Msg("Committed new global model version")

	if s.archiver != nil {
		archived := next
		go func() {
			if err := s.archiver.ArchiveVersion(context.Background(), archived); err != nil {
				log.Error().Err(err).
					Str("model", archived.Name).
					Int("version", archived.Version).
					Msg("Failed to archive model version")
			}
		}()
	}

	return next, nil
}
