package models

type RegisterClientRequest struct {
	ClientID     string   `json:"client_id" binding:"required"`
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
}

type ClientResponse struct {
	ClientID               string   `json:"client_id"`
	DisplayName            string   `json:"display_name"`
	Capabilities           []string `json:"capabilities"`
	AggregationWeight      float64  `json:"aggregation_weight"`
	Status                 string   `json:"status"`
	ParticipationCount     int      `json:"participation_count"`
	PrivacyBudgetRemaining float64  `json:"privacy_budget_remaining"`
	LastActive             string   `json:"last_active"`
}

type InitializeModelRequest struct {
	Name              string               `json:"name" binding:"required"`
	Parameters        map[string][]float64 `json:"parameters" binding:"required"`
	AggregationMethod string               `json:"aggregation_method"`
}

type ModelResponse struct {
	Name              string               `json:"name"`
	Version           int                  `json:"version"`
	Parameters        map[string][]float64 `json:"parameters"`
	AggregationMethod string               `json:"aggregation_method"`
	ParticipantCount  int                  `json:"participant_count"`
	RoundAtCreation   int                  `json:"round_at_creation"`
	CreatedAt         string               `json:"created_at"`
}

type RoundResponse struct {
	ID                  string   `json:"id"`
	ModelName           string   `json:"model_name"`
	RoundNumber         int      `json:"round_number"`
	ModelVersionAtStart int      `json:"model_version_at_start"`
	SelectedClients     []string `json:"selected_clients"`
	RespondedClients    []string `json:"responded_clients"`
	Status              string   `json:"status"`
	Phase               string   `json:"phase"`
	AggregationMethod   string   `json:"aggregation_method"`
	StartedAt           string   `json:"started_at"`
	Deadline            string   `json:"deadline"`
	ClosedAt            *string  `json:"closed_at,omitempty"`
}

type SnapshotResponse struct {
	Model   ModelResponse `json:"model"`
	RoundID string        `json:"round_id"`
}

type SubmitUpdateRequest struct {
	ModelName       string               `json:"model_name" binding:"required"`
	ClientID        string               `json:"client_id" binding:"required"`
	Payload         map[string][]float64 `json:"payload" binding:"required"`
	ModalitiesUsed  []string             `json:"modalities_used,omitempty"`
	ReportedMetrics map[string]float64   `json:"reported_metrics,omitempty"`
}
