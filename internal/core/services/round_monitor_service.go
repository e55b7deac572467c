package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// RoundMonitorService periodically sweeps the coordinator for rounds whose
// deadline passed. The coordinator also checks deadlines opportunistically on
// every interaction; the sweep covers models nobody is currently touching.
type RoundMonitorService struct {
	coordinator   *CoordinatorService
	scheduler     *gocron.Scheduler
	mutex         sync.Mutex
	sweepInterval time.Duration
	isRunning     bool
	stopCh        chan struct{}
}

func NewRoundMonitorService(coordinator *CoordinatorService) *RoundMonitorService {
	return &RoundMonitorService{
		coordinator:   coordinator,
		sweepInterval: 30 * time.Second,
		stopCh:        make(chan struct{}),
	}
}

func (s *RoundMonitorService) SetSweepInterval(interval time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sweepInterval = interval
}

func (s *RoundMonitorService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return nil
	}

	log := logger.WithComponent("round_monitor")
	log.Info().
		Dur("sweep_interval", s.sweepInterval).
		Msg("Starting round timeout monitor")

	s.scheduler = gocron.NewScheduler(time.UTC)
	s.stopCh = make(chan struct{})

	_, err := s.scheduler.Every(s.sweepInterval).Do(func() {
		select {
		case <-s.stopCh:
			return
		default:
			if err := s.coordinator.ExpireRounds(context.Background()); err != nil {
				log.Error().Err(err).Msg("Round expiry sweep failed")
			}
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule round expiry sweep")
		return err
	}

	s.scheduler.StartAsync()
	s.isRunning = true

	return nil
}

func (s *RoundMonitorService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isRunning {
		return
	}

	close(s.stopCh)

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	s.isRunning = false

	log := logger.WithComponent("round_monitor")
	log.Info().Msg("Round timeout monitor stopped")
}

func (s *RoundMonitorService) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.isRunning
}
