package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	requestmodels "github.com/voltfed/voltfed-server/internal/api/models"
	coremodels "github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/core/services"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

type FederationHandler struct {
	modelStore  ports.ModelStoreService
	coordinator ports.CoordinatorService
}

func NewFederationHandler(modelStore ports.ModelStoreService, coordinator ports.CoordinatorService) *FederationHandler {
	return &FederationHandler{
		modelStore:  modelStore,
		coordinator: coordinator,
	}
}

func (h *FederationHandler) InitializeModel(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	var req requestmodels.InitializeModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	model, err := h.modelStore.Initialize(c.Request.Context(), req.Name, req.Parameters, req.AggregationMethod)
	if err != nil {
		if errors.Is(err, services.ErrModelAlreadyInitialized) {
			c.JSON(http.StatusConflict, gin.H{"error": "Model already initialized"})
			return
		}
		log.Error().Err(err).Str("model", req.Name).Msg("Failed to initialize model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize model"})
		return
	}

	log.Info().Str("model", model.Name).Int("version", model.Version).Msg("Model initialized")
	c.JSON(http.StatusCreated, modelResponse(model))
}

func (h *FederationHandler) GetModel(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	model, err := h.modelStore.GetLatest(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, repositories.ErrModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
			return
		}
		log.Error().Err(err).Str("model", name).Msg("Failed to get model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get model"})
		return
	}

	c.JSON(http.StatusOK, modelResponse(model))
}

func (h *FederationHandler) ListModelVersions(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	versions, err := h.modelStore.ListVersions(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, repositories.ErrModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
			return
		}
		log.Error().Err(err).Str("model", name).Msg("Failed to list model versions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list model versions"})
		return
	}

	responses := make([]requestmodels.ModelResponse, 0, len(versions))
	for _, model := range versions {
		responses = append(responses, modelResponse(model))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *FederationHandler) StartRound(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	round, err := h.coordinator.StartRound(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrModelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		case errors.Is(err, services.ErrRoundInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "A round is already in progress for this model"})
		default:
			log.Error().Err(err).Str("model", name).Msg("Failed to start round")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start round"})
		}
		return
	}

	log.Info().
		Str("model", name).
		Int("round_number", round.RoundNumber).
		Int("selected", len(round.SelectedClients)).
		Msg("Round started")

	c.JSON(http.StatusCreated, roundResponse(round))
}

func (h *FederationHandler) GetActiveRound(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	round, err := h.coordinator.ActiveRound(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveRound) {
			c.Status(http.StatusNoContent)
			return
		}
		log.Error().Err(err).Str("model", name).Msg("Failed to get active round")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get active round"})
		return
	}

	c.JSON(http.StatusOK, roundResponse(round))
}

func (h *FederationHandler) ListRounds(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	rounds, err := h.coordinator.RoundHistory(c.Request.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("model", name).Msg("Failed to list rounds")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rounds"})
		return
	}

	responses := make([]requestmodels.RoundResponse, 0, len(rounds))
	for _, round := range rounds {
		responses = append(responses, roundResponse(round))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *FederationHandler) GetSnapshot(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	name := c.Param("name")
	clientID := c.Query("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id query parameter is required"})
		return
	}

	model, round, err := h.coordinator.Distribute(c.Request.Context(), name, clientID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoActiveRound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No active round"})
		case errors.Is(err, services.ErrNotSelected):
			c.JSON(http.StatusForbidden, gin.H{"error": "Client is not selected for the active round"})
		case errors.Is(err, repositories.ErrModelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		default:
			log.Error().Err(err).Str("model", name).Str("client_id", clientID).Msg("Failed to distribute snapshot")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to distribute snapshot"})
		}
		return
	}

	c.JSON(http.StatusOK, requestmodels.SnapshotResponse{
		Model:   modelResponse(model),
		RoundID: round.ID.String(),
	})
}

func (h *FederationHandler) SubmitUpdate(c *gin.Context) {
	log := logger.WithComponent("federation_handler")

	roundIDStr := c.Param("id")
	roundID, err := uuid.Parse(roundIDStr)
	if err != nil {
		log.Error().Err(err).Str("round_id", roundIDStr).Msg("Invalid round ID")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round ID"})
		return
	}

	var req requestmodels.SubmitUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err = h.coordinator.ReceiveUpdate(c.Request.Context(), req.ModelName, req.ClientID, roundID, req.Payload, req.ModalitiesUsed, req.ReportedMetrics)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoActiveRound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No active round for this update"})
		case errors.Is(err, services.ErrRoundAborted):
			c.JSON(http.StatusGone, gin.H{"error": "Round was aborted on timeout"})
		case errors.Is(err, services.ErrRoundMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": "Update does not target the active round"})
		case errors.Is(err, services.ErrNotSelected):
			c.JSON(http.StatusForbidden, gin.H{"error": "Client is not selected for the active round"})
		case errors.Is(err, repositories.ErrClientNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		default:
			log.Error().Err(err).Str("round_id", roundIDStr).Str("client_id", req.ClientID).Msg("Failed to accept update")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept update"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func modelResponse(model *coremodels.GlobalModel) requestmodels.ModelResponse {
	return requestmodels.ModelResponse{
		Name:              model.Name,
		Version:           model.Version,
		Parameters:        model.Parameters,
		AggregationMethod: model.AggregationMethod,
		ParticipantCount:  model.ParticipantCount,
		RoundAtCreation:   model.RoundAtCreation,
		CreatedAt:         model.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func roundResponse(round *coremodels.TrainingRound) requestmodels.RoundResponse {
	resp := requestmodels.RoundResponse{
		ID:                  round.ID.String(),
		ModelName:           round.ModelName,
		RoundNumber:         round.RoundNumber,
		ModelVersionAtStart: round.ModelVersionAtStart,
		SelectedClients:     round.SelectedClients,
		RespondedClients:    round.RespondedClients,
		Status:              string(round.Status),
		Phase:               string(round.Phase),
		AggregationMethod:   round.AggregationMethod,
		StartedAt:           round.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		Deadline:            round.Deadline.Format("2006-01-02T15:04:05Z07:00"),
	}
	if round.ClosedAt != nil {
		closedAt := round.ClosedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ClosedAt = &closedAt
	}
	return resp
}
