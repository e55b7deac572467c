package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Modality tags a category of data a site can contribute.
const (
	ModalityImage      = "image"
	ModalityTimeSeries = "time_series"
	ModalitySensor     = "sensor"
	ModalityText       = "text"
)

// StringList is a jsonb-backed string slice used for capability sets and
// round membership sets.
type StringList []string

// Value implements the driver.Valuer interface for GORM
func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for GORM
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringList", value)
	}

	return json.Unmarshal(bytes, l)
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

type ClientStatus string

const (
	ClientStatusRegistered ClientStatus = "registered"
	ClientStatusTraining   ClientStatus = "training"
)

// Client is one registered site. Rows are upserted on registration and
// mutated on status transitions; they are never deleted.
type Client struct {
	ID                     uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID               string       `json:"client_id" gorm:"type:varchar(255);unique;not null"`
	DisplayName            string       `json:"display_name" gorm:"type:varchar(255)"`
	Capabilities           StringList   `json:"capabilities" gorm:"type:jsonb"`
	AggregationWeight      float64      `json:"aggregation_weight" gorm:"type:decimal(10,8);default:1.0"`
	Status                 ClientStatus `json:"status" gorm:"type:varchar(50)"`
	ParticipationCount     int          `json:"participation_count" gorm:"default:0"`
	PrivacyBudgetRemaining float64      `json:"privacy_budget_remaining" gorm:"type:decimal(10,8);default:1.0"`
	LastActive             time.Time    `json:"last_active" gorm:"type:timestamp"`
	CreatedAt              time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

func NewClient(clientID, displayName string, capabilities []string, aggregationWeight float64) *Client {
	return &Client{
		ClientID:               clientID,
		DisplayName:            displayName,
		Capabilities:           capabilities,
		AggregationWeight:      aggregationWeight,
		Status:                 ClientStatusRegistered,
		PrivacyBudgetRemaining: 1.0,
		LastActive:             time.Now(),
	}
}
