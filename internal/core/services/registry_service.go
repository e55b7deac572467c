package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// RegistryService owns site registration and status transitions. Clients are
// upserted on every registration call and never deleted.
type RegistryService struct {
	clientRepo ports.ClientRepository
	federation *config.FederationConfig
}

func NewRegistryService(clientRepo ports.ClientRepository, federation *config.FederationConfig) *RegistryService {
	return &RegistryService{
		clientRepo: clientRepo,
		federation: federation,
	}
}

func (s *RegistryService) Register(ctx context.Context, clientID, displayName string, capabilities []string) (*models.Client, error) {
	log := logger.WithComponent("registry")

	weight := s.aggregationWeight(capabilities)

	existing, err := s.clientRepo.GetByClientID(ctx, clientID)
	if errors.Is(err, repositories.ErrClientNotFound) {
		client := models.NewClient(clientID, displayName, capabilities, weight)
		if err := s.clientRepo.Create(ctx, client); err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}

		log.Info().
			Str("client_id", clientID).
			Strs("capabilities", capabilities).
			Float64("aggregation_weight", weight).
			Msg("Registered new client")

		return client, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	// Re-registration refreshes identity and capabilities but preserves the
	// privacy budget and participation history.
	existing.DisplayName = displayName
	existing.Capabilities = capabilities
	existing.AggregationWeight = weight
	existing.LastActive = time.Now()

	if err := s.clientRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	log.Debug().
		Str("client_id", clientID).
		Strs("capabilities", capabilities).
		Msg("Refreshed client registration")

	return existing, nil
}

func (s *RegistryService) List(ctx context.Context, status models.ClientStatus) ([]*models.Client, error) {
	return s.clientRepo.List(ctx, status)
}

func (s *RegistryService) Get(ctx context.Context, clientID string) (*models.Client, error) {
	return s.clientRepo.GetByClientID(ctx, clientID)
}

func (s *RegistryService) MarkTraining(ctx context.Context, clientIDs []string) error {
	return s.clientRepo.UpdateStatus(ctx, clientIDs, models.ClientStatusTraining)
}

func (s *RegistryService) MarkIdle(ctx context.Context, clientIDs []string) error {
	return s.clientRepo.UpdateStatus(ctx, clientIDs, models.ClientStatusRegistered)
}

func (s *RegistryService) RecordParticipation(ctx context.Context, clientID string) error {
	client, err := s.clientRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}

	client.ParticipationCount++
	client.LastActive = time.Now()

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return fmt.Errorf("failed to record participation: %w", err)
	}
	return nil
}

// aggregationWeight sums the configured per-modality weights over the
// declared capabilities. Clients with no recognized capabilities keep the
// uniform default weight of 1.
func (s *RegistryService) aggregationWeight(capabilities []string) float64 {
	weights := s.federation.ModalityWeights()
	total := 0.0
	for _, capability := range capabilities {
		total += weights[capability]
	}
	if total == 0 {
		return 1.0
	}
	return total
}
