package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ParameterState holds one numeric array per model layer or per modality
// sub-network. It is stored as a jsonb column.
type ParameterState map[string][]float64

// Value implements the driver.Valuer interface for GORM
func (p ParameterState) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for GORM
func (p *ParameterState) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ParameterState", value)
	}

	return json.Unmarshal(bytes, p)
}

// Clone returns a deep copy so that committed versions stay immutable.
func (p ParameterState) Clone() ParameterState {
	out := make(ParameterState, len(p))
	for name, values := range p {
		copied := make([]float64, len(values))
		copy(copied, values)
		out[name] = copied
	}
	return out
}

// GlobalModel is one immutable version of a shared model. New versions are
// created only by the aggregation engine; history is never rewritten.
type GlobalModel struct {
	ID                uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name              string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_global_models_name_version,priority:1"`
	Version           int            `json:"version" gorm:"not null;uniqueIndex:idx_global_models_name_version,priority:2"`
	Parameters        ParameterState `json:"parameters" gorm:"type:jsonb"`
	AggregationMethod string         `json:"aggregation_method" gorm:"type:varchar(100)"`
	ParticipantCount  int            `json:"participant_count" gorm:"default:0"`
	RoundAtCreation   int            `json:"round_at_creation" gorm:"default:0"`
	CreatedAt         time.Time      `json:"created_at" gorm:"type:timestamp"`
}

func NewGlobalModel(name string, parameters ParameterState, aggregationMethod string) *GlobalModel {
	return &GlobalModel{
		Name:              name,
		Version:           1,
		Parameters:        parameters.Clone(),
		AggregationMethod: aggregationMethod,
		CreatedAt:         time.Now(),
	}
}

// NextVersion produces the successor version record. The receiver is left
// untouched.
func (m *GlobalModel) NextVersion(parameters ParameterState, aggregationMethod string, participantCount, roundNumber int) *GlobalModel {
	return &GlobalModel{
		Name:              m.Name,
		Version:           m.Version + 1,
		Parameters:        parameters.Clone(),
		AggregationMethod: aggregationMethod,
		ParticipantCount:  participantCount,
		RoundAtCreation:   roundNumber,
		CreatedAt:         time.Now(),
	}
}
