package repositories

import (
	"context"
	"errors"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"gorm.io/gorm"
)

var ErrModelNotFound = errors.New("model not found")

type ModelRepository struct {
	db *gorm.DB
}

func NewModelRepository(db *gorm.DB) ports.ModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) Create(ctx context.Context, model *models.GlobalModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *ModelRepository) GetLatest(ctx context.Context, name string) (*models.GlobalModel, error) {
	var model models.GlobalModel
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("version DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *ModelRepository) GetVersions(ctx context.Context, name string) ([]*models.GlobalModel, error) {
	var versions []*models.GlobalModel
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("version ASC").Find(&versions).Error
	return versions, err
}
