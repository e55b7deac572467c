package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/voltfed/voltfed-server/internal/api/handlers"
)

func registerClientRoutes(router *gin.RouterGroup, clientHandler *handlers.ClientHandler) {
	clients := router.Group("/clients")
	{
		clients.POST("", clientHandler.RegisterClient)
		clients.GET("", clientHandler.ListClients)
		clients.GET("/:id", clientHandler.GetClient)
	}
}

func registerFederationRoutes(router *gin.RouterGroup, federationHandler *handlers.FederationHandler) {
	models := router.Group("/models")
	{
		models.POST("", federationHandler.InitializeModel)
		models.GET("/:name", federationHandler.GetModel)
		models.GET("/:name/versions", federationHandler.ListModelVersions)
		models.POST("/:name/rounds", federationHandler.StartRound)
		models.GET("/:name/rounds", federationHandler.ListRounds)
		models.GET("/:name/rounds/active", federationHandler.GetActiveRound)
		models.GET("/:name/snapshot", federationHandler.GetSnapshot)
	}

	rounds := router.Group("/rounds")
	{
		rounds.POST("/:id/updates", federationHandler.SubmitUpdate)
	}
}

func RegisterRoutes(api *gin.RouterGroup, clientHandler *handlers.ClientHandler, federationHandler *handlers.FederationHandler) {
	registerClientRoutes(api, clientHandler)
	registerFederationRoutes(api, federationHandler)
}
