package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"gorm.io/gorm"
)

var ErrClientNotFound = errors.New("client not found")

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ports.ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).First(&client, "client_id = ?", clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) List(ctx context.Context, status models.ClientStatus) ([]*models.Client, error) {
	var clients []*models.Client
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("client_id ASC").Find(&clients).Error
	return clients, err
}

func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	result := r.db.WithContext(ctx).Save(client)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) UpdateStatus(ctx context.Context, clientIDs []string, status models.ClientStatus) error {
	if len(clientIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("client_id IN ?", clientIDs).
		Updates(map[string]interface{}{
			"status":      status,
			"last_active": time.Now(),
		}).Error
}
