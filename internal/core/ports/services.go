package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/voltfed/voltfed-server/internal/core/models"
)

// RegistryService tracks registered sites, their declared modalities and
// their participation state.
type RegistryService interface {
	Register(ctx context.Context, clientID, displayName string, capabilities []string) (*models.Client, error)
	List(ctx context.Context, status models.ClientStatus) ([]*models.Client, error)
	Get(ctx context.Context, clientID string) (*models.Client, error)
	MarkTraining(ctx context.Context, clientIDs []string) error
	MarkIdle(ctx context.Context, clientIDs []string) error
	RecordParticipation(ctx context.Context, clientID string) error
}

// ModelStoreService owns the append-only version history of each model.
type ModelStoreService interface {
	Initialize(ctx context.Context, name string, initial models.ParameterState, aggregationMethod string) (*models.GlobalModel, error)
	GetLatest(ctx context.Context, name string) (*models.GlobalModel, error)
	ListVersions(ctx context.Context, name string) ([]*models.GlobalModel, error)
	CommitNewVersion(ctx context.Context, name string, state models.ParameterState, aggregationMethod string, participantCount, roundNumber int) (*models.GlobalModel, error)
}

// CoordinatorService drives the per-model round state machine.
type CoordinatorService interface {
	StartRound(ctx context.Context, modelName string) (*models.TrainingRound, error)
	ActiveRound(ctx context.Context, modelName string) (*models.TrainingRound, error)
	Distribute(ctx context.Context, modelName, clientID string) (*models.GlobalModel, *models.TrainingRound, error)
	ReceiveUpdate(ctx context.Context, modelName string, clientID string, roundID uuid.UUID, payload models.ParameterState, modalitiesUsed []string, reportedMetrics map[string]float64) error
	RoundHistory(ctx context.Context, modelName string) ([]*models.TrainingRound, error)
	ExpireRounds(ctx context.Context) error
}

// BudgetAccountant charges privacy loss against a client's remaining budget.
// The linear accountant applies the flat per-round decrement; a
// composition-theorem accountant can be substituted without touching the
// coordinator.
type BudgetAccountant interface {
	Charge(ctx context.Context, clientID string, amount float64) (remaining float64, err error)
}

// ModelArchiver persists a committed model version to long-term storage.
type ModelArchiver interface {
	ArchiveVersion(ctx context.Context, model *models.GlobalModel) error
}
