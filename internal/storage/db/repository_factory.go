package db

import (
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"gorm.io/gorm"
)

type RepositoryFactory struct {
	db *gorm.DB
}

func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

func NewRepositoryFactoryFromManager(manager *DBManager) *RepositoryFactory {
	return &RepositoryFactory{
		db: manager.GetDB(),
	}
}

func (f *RepositoryFactory) ModelRepository() ports.ModelRepository {
	return repositories.NewModelRepository(f.db)
}

func (f *RepositoryFactory) ClientRepository() ports.ClientRepository {
	return repositories.NewClientRepository(f.db)
}

func (f *RepositoryFactory) RoundRepository() ports.RoundRepository {
	return repositories.NewRoundRepository(f.db)
}

var repositoryFactory *RepositoryFactory

func InitRepositoryFactory(db *gorm.DB) {
	repositoryFactory = NewRepositoryFactory(db)
}

func GetRepositoryFactory() *RepositoryFactory {
	if repositoryFactory == nil {
		dbManager := GetDBManager()
		repositoryFactory = NewRepositoryFactoryFromManager(dbManager)
	}
	return repositoryFactory
}
