package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	requestmodels "github.com/voltfed/voltfed-server/internal/api/models"
	coremodels "github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

type ClientHandler struct {
	registry ports.RegistryService
}

func NewClientHandler(registry ports.RegistryService) *ClientHandler {
	return &ClientHandler{
		registry: registry,
	}
}

func (h *ClientHandler) RegisterClient(c *gin.Context) {
	log := logger.WithComponent("client_handler")

	var req requestmodels.RegisterClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	client, err := h.registry.Register(c.Request.Context(), req.ClientID, req.DisplayName, req.Capabilities)
	if err != nil {
		log.Error().Err(err).Str("client_id", req.ClientID).Msg("Failed to register client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register client"})
		return
	}

	log.Info().
		Str("client_id", client.ClientID).
		Float64("aggregation_weight", client.AggregationWeight).
		Msg("Client registered")

	c.JSON(http.StatusCreated, clientResponse(client))
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	log := logger.WithComponent("client_handler")

	status := c.Query("status")
	clients, err := h.registry.List(c.Request.Context(), coremodels.ClientStatus(status))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list clients")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list clients"})
		return
	}

	responses := make([]requestmodels.ClientResponse, 0, len(clients))
	for _, client := range clients {
		responses = append(responses, clientResponse(client))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	log := logger.WithComponent("client_handler")

	clientID := c.Param("id")
	client, err := h.registry.Get(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, repositories.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to get client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get client"})
		return
	}

	c.JSON(http.StatusOK, clientResponse(client))
}

func clientResponse(client *coremodels.Client) requestmodels.ClientResponse {
	return requestmodels.ClientResponse{
		ClientID:               client.ClientID,
		DisplayName:            client.DisplayName,
		Capabilities:           client.Capabilities,
		AggregationWeight:      client.AggregationWeight,
		Status:                 string(client.Status),
		ParticipationCount:     client.ParticipationCount,
		PrivacyBudgetRemaining: client.PrivacyBudgetRemaining,
		LastActive:             client.LastActive.Format("2006-01-02T15:04:05Z07:00"),
	}
}
