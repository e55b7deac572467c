package models

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundStatusActive RoundStatus = "active"
	RoundStatusClosed RoundStatus = "closed"
)

// RoundPhase tracks where an open round sits in the coordination state
// machine. The phase is observability metadata; status is the durable record.
type RoundPhase string

const (
	RoundPhaseActive      RoundPhase = "active"
	RoundPhaseCollecting  RoundPhase = "collecting"
	RoundPhaseAggregating RoundPhase = "aggregating"
	RoundPhaseAborted     RoundPhase = "aborted"
)

// TrainingRound is one coordination cycle for a model. At most one active
// round exists per model name at any time.
type TrainingRound struct {
	ID                  uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ModelName           string      `json:"model_name" gorm:"type:varchar(255);not null;index"`
	RoundNumber         int         `json:"round_number" gorm:"not null"`
	ModelVersionAtStart int         `json:"model_version_at_start" gorm:"not null"`
	SelectedClients     StringList  `json:"selected_clients" gorm:"type:jsonb"`
	RespondedClients    StringList  `json:"responded_clients" gorm:"type:jsonb"`
	Status              RoundStatus `json:"status" gorm:"type:varchar(50)"`
	Phase               RoundPhase  `json:"phase" gorm:"type:varchar(50)"`
	AggregationMethod   string      `json:"aggregation_method" gorm:"type:varchar(100)"`
	StartedAt           time.Time   `json:"started_at" gorm:"type:timestamp"`
	Deadline            time.Time   `json:"deadline" gorm:"type:timestamp"`
	ClosedAt            *time.Time  `json:"closed_at" gorm:"type:timestamp"`
}

func NewTrainingRound(modelName string, roundNumber, modelVersion int, selected []string, aggregationMethod string, deadline time.Time) *TrainingRound {
	return &TrainingRound{
		ID:                  uuid.New(),
		ModelName:           modelName,
		RoundNumber:         roundNumber,
		ModelVersionAtStart: modelVersion,
		SelectedClients:     selected,
		RespondedClients:    StringList{},
		Status:              RoundStatusActive,
		Phase:               RoundPhaseActive,
		AggregationMethod:   aggregationMethod,
		StartedAt:           time.Now(),
		Deadline:            deadline,
	}
}

// ClientUpdate is one client's contribution to a round. Updates are buffered
// in memory for the lifetime of the round only and are never persisted.
type ClientUpdate struct {
	UpdateID        uuid.UUID          `json:"update_id"`
	ClientID        string             `json:"client_id"`
	RoundID         uuid.UUID          `json:"round_id"`
	Payload         ParameterState     `json:"payload"`
	ModalitiesUsed  []string           `json:"modalities_used,omitempty"`
	ReportedMetrics map[string]float64 `json:"reported_metrics,omitempty"`
	ReceivedAt      time.Time          `json:"received_at"`
}

func NewClientUpdate(clientID string, roundID uuid.UUID, payload ParameterState, modalitiesUsed []string, reportedMetrics map[string]float64) *ClientUpdate {
	return &ClientUpdate{
		UpdateID:        uuid.New(),
		ClientID:        clientID,
		RoundID:         roundID,
		Payload:         payload,
		ModalitiesUsed:  modalitiesUsed,
		ReportedMetrics: reportedMetrics,
		ReceivedAt:      time.Now(),
	}
}
