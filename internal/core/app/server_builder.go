package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voltfed/voltfed-server/internal/api"
	"github.com/voltfed/voltfed-server/internal/api/handlers"
	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/core/services"
	"github.com/voltfed/voltfed-server/internal/storage/db"
	"github.com/voltfed/voltfed-server/internal/utils"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

type Server struct {
	Config             *config.Config
	HttpServer         *http.Server
	DBManager          *db.DBManager
	RegistryService    *services.RegistryService
	ModelStoreService  *services.ModelStoreService
	CoordinatorService *services.CoordinatorService
	RoundMonitor       *services.RoundMonitorService
	StopChannel        chan struct{}
}

func (s *Server) Shutdown(ctx context.Context) {
	log := logger.Get()

	serverShutdownCtx, serverShutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer serverShutdownCancel()

	close(s.StopChannel)

	s.RoundMonitor.Stop()
	log.Info().Msg("Stopped round monitoring service")

	log.Info().Int("shutdown_timeout_seconds", 15).Msg("Initiating server shutdown sequence")
	shutdownStart := time.Now()

	if err := s.HttpServer.Shutdown(serverShutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		if err == context.DeadlineExceeded {
			log.Warn().Msg("Server shutdown deadline exceeded, forcing immediate shutdown")
		}
	} else {
		shutdownDuration := time.Since(shutdownStart)
		log.Info().Dur("duration_ms", shutdownDuration).Msg("Server HTTP connections gracefully closed")
	}

	dbCloseStart := time.Now()
	if err := s.DBManager.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Dur("duration_ms", time.Since(dbCloseStart)).Msg("Database connection closed successfully")
	}

	log.Info().Msg("Shutdown complete")
}

type ServerBuilder struct {
	config             *config.Config
	dbManager          *db.DBManager
	repoFactory        *db.RepositoryFactory
	modelRepo          ports.ModelRepository
	clientRepo         ports.ClientRepository
	roundRepo          ports.RoundRepository
	registryService    *services.RegistryService
	modelStoreService  *services.ModelStoreService
	aggregationService *services.AggregationService
	privacyService     *services.PrivacyService
	coordinatorService *services.CoordinatorService
	roundMonitor       *services.RoundMonitorService
	httpServer         *http.Server
	stopChannel        chan struct{}
	err                error
}

func NewServerBuilder(cfg *config.Config) *ServerBuilder {
	return &ServerBuilder{
		config:      cfg,
		stopChannel: make(chan struct{}),
	}
}

func (sb *ServerBuilder) InitDatabase() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	URL := sb.config.Database.GetConnectionURL()

	sb.dbManager = db.GetDBManager()
	if err := sb.dbManager.Connect(ctx, URL); err != nil {
		sb.err = fmt.Errorf("failed to connect to database: %w", err)
		return sb
	}

	log.Info().Msg("Successfully connected to database")
	return sb
}

func (sb *ServerBuilder) InitRepositories() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	gormDB := sb.dbManager.GetDB()
	db.InitRepositoryFactory(gormDB)
	sb.repoFactory = db.GetRepositoryFactory()

	sb.modelRepo = sb.repoFactory.ModelRepository()
	sb.clientRepo = sb.repoFactory.ClientRepository()
	sb.roundRepo = sb.repoFactory.RoundRepository()

	return sb
}

func (sb *ServerBuilder) InitServices() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	sb.registryService = services.NewRegistryService(sb.clientRepo, &sb.config.Federation)
	sb.modelStoreService = services.NewModelStoreService(sb.modelRepo)
	sb.aggregationService = services.NewAggregationService(&sb.config.Federation)

	accountant := services.NewLinearAccountant(sb.clientRepo)
	sb.privacyService = services.NewPrivacyService(&sb.config.Privacy, accountant)

	sb.coordinatorService = services.NewCoordinatorService(
		sb.modelStoreService,
		sb.registryService,
		sb.aggregationService,
		sb.privacyService,
		sb.roundRepo,
		&sb.config.Federation,
	)

	if sb.config.AWS.BucketName != "" {
		archiveService, err := services.NewArchiveService(sb.config)
		if err != nil {
			sb.err = fmt.Errorf("failed to initialize archive service: %w", err)
			return sb
		}
		sb.modelStoreService.SetArchiver(archiveService)
		log.Info().Str("bucket", sb.config.AWS.BucketName).Msg("Model version archival enabled")
	}

	return sb
}

func (sb *ServerBuilder) InitRoundMonitor() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	sweepInterval := sb.config.Monitor.SweepInterval()
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
		log.Warn().
			Dur("default_sweep_interval", sweepInterval).
			Msg("Sweep interval not specified in config, using default")
	}

	sb.roundMonitor = services.NewRoundMonitorService(sb.coordinatorService)
	sb.roundMonitor.SetSweepInterval(sweepInterval)

	if err := sb.roundMonitor.Start(); err != nil {
		sb.err = fmt.Errorf("failed to start round monitoring service: %w", err)
		return sb
	}

	return sb
}

func (sb *ServerBuilder) InitRouter() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	clientHandler := handlers.NewClientHandler(sb.registryService)
	federationHandler := handlers.NewFederationHandler(sb.modelStoreService, sb.coordinatorService)

	router := api.NewRouter(
		clientHandler,
		federationHandler,
		sb.config.Server.Endpoint,
	)

	if err := utils.VerifyPortAvailable(sb.config.Server.Host, sb.config.Server.Port); err != nil {
		sb.err = fmt.Errorf("server port is not available: %w", err)
		return sb
	}

	sb.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", sb.config.Server.Host, sb.config.Server.Port),
		Handler: router,
	}

	return sb
}

func (sb *ServerBuilder) Build() (*Server, error) {
	if sb.err != nil {
		return nil, sb.err
	}

	return &Server{
		Config:             sb.config,
		HttpServer:         sb.httpServer,
		DBManager:          sb.dbManager,
		RegistryService:    sb.registryService,
		ModelStoreService:  sb.modelStoreService,
		CoordinatorService: sb.coordinatorService,
		RoundMonitor:       sb.roundMonitor,
		StopChannel:        sb.stopChannel,
	}, nil
}
