package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/voltfed/voltfed-server/internal/core/models"
)

type ModelRepository interface {
	Create(ctx context.Context, model *models.GlobalModel) error
	GetLatest(ctx context.Context, name string) (*models.GlobalModel, error)
	GetVersions(ctx context.Context, name string) ([]*models.GlobalModel, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByClientID(ctx context.Context, clientID string) (*models.Client, error)
	List(ctx context.Context, status models.ClientStatus) ([]*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	UpdateStatus(ctx context.Context, clientIDs []string, status models.ClientStatus) error
}

type RoundRepository interface {
	Create(ctx context.Context, round *models.TrainingRound) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingRound, error)
	GetActiveByModel(ctx context.Context, modelName string) (*models.TrainingRound, error)
	GetByModel(ctx context.Context, modelName string) ([]*models.TrainingRound, error)
	LatestRoundNumber(ctx context.Context, modelName string) (int, error)
	Update(ctx context.Context, round *models.TrainingRound) error
}
