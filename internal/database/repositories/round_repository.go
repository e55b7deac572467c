package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"gorm.io/gorm"
)

var ErrRoundNotFound = errors.New("round not found")

type RoundRepository struct {
	db *gorm.DB
}

func NewRoundRepository(db *gorm.DB) ports.RoundRepository {
	return &RoundRepository{db: db}
}

func (r *RoundRepository) Create(ctx context.Context, round *models.TrainingRound) error {
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *RoundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingRound, error) {
	var round models.TrainingRound
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *RoundRepository) GetActiveByModel(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	var round models.TrainingRound
	err := r.db.WithContext(ctx).
		Where("model_name = ? AND status = ?", modelName, models.RoundStatusActive).
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *RoundRepository) GetByModel(ctx context.Context, modelName string) ([]*models.TrainingRound, error) {
	var rounds []*models.TrainingRound
	err := r.db.WithContext(ctx).
		Where("model_name = ?", modelName).
		Order("round_number ASC").
		Find(&rounds).Error
	return rounds, err
}

func (r *RoundRepository) LatestRoundNumber(ctx context.Context, modelName string) (int, error) {
	var round models.TrainingRound
	err := r.db.WithContext(ctx).
		Where("model_name = ?", modelName).
		Order("round_number DESC").
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return round.RoundNumber, nil
}

func (r *RoundRepository) Update(ctx context.Context, round *models.TrainingRound) error {
	return r.db.WithContext(ctx).Save(round).Error
}
