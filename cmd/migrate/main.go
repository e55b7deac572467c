package main

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
)

func main() {
	cfg, err := config.GetConfigManager().GetConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbURL := cfg.Database.GetConnectionURL()
	log.Printf("Connecting to database at %s:%s", cfg.Database.Host, cfg.Database.Port)

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Connected to database successfully")
	log.Println("Starting database migrations...")

	modelsList := []interface{}{
		&models.GlobalModel{},
		&models.Client{},
		&models.TrainingRound{},
	}

	for _, model := range modelsList {
		log.Printf("Migrating table for model: %T", model)
		if err := db.AutoMigrate(model); err != nil {
			log.Fatalf("Error migrating %T: %v", model, err)
		}
		log.Printf("Successfully migrated table for model: %T", model)
	}

	log.Println("All database migrations completed successfully!")

	var tables []string
	db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables)
	log.Printf("Created tables: %v", tables)
}
