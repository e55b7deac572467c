package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/ports"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
	"github.com/voltfed/voltfed-server/internal/metrics"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// CoordinatorService drives one round state machine per model name. All
// writes for a model happen under that model's lock, so the
// enough-responses-to-aggregate check and the version-advance/round-close
// pair are atomic. Different model names never contend.
type CoordinatorService struct {
	modelStore *ModelStoreService
	registry   *RegistryService
	aggregator *AggregationService
	privacy    *PrivacyService
	roundRepo  ports.RoundRepository
	federation *config.FederationConfig

	mu     sync.Mutex
	states map[string]*modelState
}

// modelState is the lock-guarded per-model arena entry. The update buffer is
// ephemeral: it lives exactly as long as the round that collected it.
type modelState struct {
	mu     sync.Mutex
	round  *models.TrainingRound
	buffer []*models.ClientUpdate
	loaded bool
}

func NewCoordinatorService(
	modelStore *ModelStoreService,
	registry *RegistryService,
	aggregator *AggregationService,
	privacy *PrivacyService,
	roundRepo ports.RoundRepository,
	federation *config.FederationConfig,
) *CoordinatorService {
	return &CoordinatorService{
		modelStore: modelStore,
		registry:   registry,
		aggregator: aggregator,
		privacy:    privacy,
		roundRepo:  roundRepo,
		federation: federation,
		states:     make(map[string]*modelState),
	}
}

func (s *CoordinatorService) state(modelName string) *modelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[modelName]
	if !ok {
		st = &modelState{}
		s.states[modelName] = st
	}
	return st
}

// loadLocked restores a persisted open round after restart. Buffered updates
// are not recoverable; such a round can only close by timeout or by fresh
// updates arriving.
func (s *CoordinatorService) loadLocked(ctx context.Context, modelName string, st *modelState) {
	if st.loaded {
		return
	}
	st.loaded = true

	round, err := s.roundRepo.GetActiveByModel(ctx, modelName)
	if errors.Is(err, repositories.ErrRoundNotFound) {
		return
	}
	if err != nil {
		log := logger.WithComponent("coordinator")
		log.Error().Err(err).
			Str("model", modelName).
			Msg("Failed to restore persisted round state")
		return
	}

	st.round = round
	metrics.ActiveRounds.Inc()
}

func (s *CoordinatorService) StartRound(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	log := logger.WithComponent("coordinator")

	st := s.state(modelName)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.loadLocked(ctx, modelName, st)
	s.expireLocked(ctx, modelName, st)

	if st.round != nil {
		return nil, ErrRoundInProgress
	}

	model, err := s.modelStore.GetLatest(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	registered, err := s.registry.List(ctx, models.ClientStatusRegistered)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	selected := s.sampleClients(registered)
	if len(registered) < s.federation.MinClientsPerRound {
		// Absence of clients degrades quality, it never blocks the protocol.
		log.Warn().
			Str("model", modelName).
			Int("registered", len(registered)).
			Int("min_clients_per_round", s.federation.MinClientsPerRound).
			Msg("Starting round below participation floor")
	}

	lastNumber, err := s.roundRepo.LatestRoundNumber(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to determine round number: %w", err)
	}

	round := models.NewTrainingRound(
		modelName,
		lastNumber+1,
		model.Version,
		selected,
		s.federation.AggregationMethod,
		time.Now().Add(s.federation.RoundTimeout()),
	)

	if err := s.roundRepo.Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to persist round: %w", err)
	}

	if err := s.registry.MarkTraining(ctx, selected); err != nil {
		return nil, fmt.Errorf("failed to mark clients training: %w", err)
	}

	st.round = round
	st.buffer = nil

	metrics.RoundsStarted.WithLabelValues(modelName).Inc()
	metrics.ActiveRounds.Inc()

	log.Info().
		Str("model", modelName).
		Str("round_id", round.ID.String()).
		Int("round_number", round.RoundNumber).
		Int("selected", len(selected)).
		Int("model_version", model.Version).
		Msg("Started training round")

	return round, nil
}

// sampleClients applies the configured sample rate, floored by the minimum
// cohort size and capped by availability.
func (s *CoordinatorService) sampleClients(registered []*models.Client) []string {
	n := int(math.Ceil(s.federation.ClientSampleRate * float64(len(registered))))
	if n < s.federation.MinClientsPerRound {
		n = s.federation.MinClientsPerRound
	}
	if n > len(registered) {
		n = len(registered)
	}

	shuffled := make([]*models.Client, len(registered))
	copy(shuffled, registered)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	selected := make([]string, 0, n)
	for _, client := range shuffled[:n] {
		selected = append(selected, client.ClientID)
	}
	return selected
}

func (s *CoordinatorService) ActiveRound(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	st := s.state(modelName)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.loadLocked(ctx, modelName, st)
	s.expireLocked(ctx, modelName, st)

	if st.round == nil {
		return nil, ErrNoActiveRound
	}
	snapshot := *st.round
	return &snapshot, nil
}

// Distribute hands the latest committed model snapshot to a client of the
// active round. Unselected clients are admitted when unsolicited updates are
// accepted by config; otherwise they get a soft rejection.
func (s *CoordinatorService) Distribute(ctx context.Context, modelName, clientID string) (*models.GlobalModel, *models.TrainingRound, error) {
	log := logger.WithComponent("coordinator")

	st := s.state(modelName)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.loadLocked(ctx, modelName, st)
	s.expireLocked(ctx, modelName, st)

	if st.round == nil {
		return nil, nil, ErrNoActiveRound
	}

	if !st.round.SelectedClients.Contains(clientID) {
		if err := s.admitUnsolicited(ctx, st, modelName, clientID, "distribute"); err != nil {
			return nil, nil, err
		}
	}

	model, err := s.modelStore.GetLatest(ctx, modelName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model snapshot: %w", err)
	}

	log.Debug().
		Str("model", modelName).
		Str("client_id", clientID).
		Str("round_id", st.round.ID.String()).
		Msg("Distributed model snapshot")

	snapshot := *st.round
	return model, &snapshot, nil
}

func (s *CoordinatorService) ReceiveUpdate(ctx context.Context, modelName, clientID string, roundID uuid.UUID, payload models.ParameterState, modalitiesUsed []string, reportedMetrics map[string]float64) error {
	log := logger.WithComponent("coordinator")

	st := s.state(modelName)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.loadLocked(ctx, modelName, st)
	s.expireLocked(ctx, modelName, st)

	if st.round == nil {
		// Distinguish a round that timed out from one that never existed so
		// agents can tell a discarded contribution from a stale target.
		if aborted, lookupErr := s.roundRepo.GetByID(ctx, roundID); lookupErr == nil && aborted.Phase == models.RoundPhaseAborted {
			metrics.UpdatesRejected.WithLabelValues(modelName, "round_aborted").Inc()
			return ErrRoundAborted
		}
		metrics.UpdatesRejected.WithLabelValues(modelName, "no_active_round").Inc()
		return ErrNoActiveRound
	}
	if roundID != st.round.ID {
		metrics.UpdatesRejected.WithLabelValues(modelName, "round_mismatch").Inc()
		return ErrRoundMismatch
	}

	if !st.round.SelectedClients.Contains(clientID) {
		if err := s.admitUnsolicited(ctx, st, modelName, clientID, "receive_update"); err != nil {
			metrics.UpdatesRejected.WithLabelValues(modelName, "not_selected").Inc()
			return err
		}
	}

	update := models.NewClientUpdate(clientID, roundID, payload, modalitiesUsed, reportedMetrics)
	sanitized, err := s.privacy.Sanitize(ctx, update)
	if err != nil {
		return fmt.Errorf("failed to sanitize update: %w", err)
	}

	s.bufferLocked(st, sanitized)

	st.round.Phase = models.RoundPhaseCollecting
	if !st.round.RespondedClients.Contains(clientID) {
		st.round.RespondedClients = append(st.round.RespondedClients, clientID)
	}
	if err := s.roundRepo.Update(ctx, st.round); err != nil {
		return fmt.Errorf("failed to persist round progress: %w", err)
	}

	if err := s.registry.RecordParticipation(ctx, clientID); err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("Failed to record participation")
	}

	metrics.UpdatesReceived.WithLabelValues(modelName).Inc()

	log.Info().
		Str("model", modelName).
		Str("client_id", clientID).
		Int("responded", len(st.round.RespondedClients)).
		Int("selected", len(st.round.SelectedClients)).
		Msg("Buffered client update")

	if s.shouldAggregateLocked(st) {
		return s.aggregateLocked(ctx, modelName, st)
	}
	return nil
}

// admitUnsolicited resolves the policy for clients acting outside their
// assigned round. Admission keeps responded ⊆ selected intact by growing the
// selected set.
func (s *CoordinatorService) admitUnsolicited(ctx context.Context, st *modelState, modelName, clientID, operation string) error {
	log := logger.WithComponent("coordinator")

	if !s.federation.AcceptUnsolicitedUpdates {
		log.Warn().
			Str("model", modelName).
			Str("client_id", clientID).
			Str("operation", operation).
			Msg("Rejected client outside its assigned round")
		return ErrNotSelected
	}

	log.Warn().
		Str("model", modelName).
		Str("client_id", clientID).
		Str("operation", operation).
		Msg("Admitting unsolicited participant")

	st.round.SelectedClients = append(st.round.SelectedClients, clientID)
	if err := s.roundRepo.Update(ctx, st.round); err != nil {
		return fmt.Errorf("failed to persist admitted participant: %w", err)
	}
	if err := s.registry.MarkTraining(ctx, []string{clientID}); err != nil {
		return fmt.Errorf("failed to mark admitted participant: %w", err)
	}
	return nil
}

// bufferLocked stores the sanitized update, replacing any earlier update
// from the same client within the round.
func (s *CoordinatorService) bufferLocked(st *modelState, update *models.ClientUpdate) {
	for i, buffered := range st.buffer {
		if buffered.ClientID == update.ClientID {
			st.buffer[i] = update
			return
		}
	}
	st.buffer = append(st.buffer, update)
}

// shouldAggregateLocked is the round-completion criterion: enough distinct
// responses, and the round number lands on the global update cadence. Rounds
// off-cadence stay open in the collecting phase, batching responses until a
// qualifying round number.
func (s *CoordinatorService) shouldAggregateLocked(st *modelState) bool {
	if len(st.round.RespondedClients) < s.federation.MinClientsPerRound {
		return false
	}
	return st.round.RoundNumber%s.federation.RoundsPerGlobalUpdate == 0
}

func (s *CoordinatorService) aggregateLocked(ctx context.Context, modelName string, st *modelState) error {
	log := logger.WithComponent("coordinator")

	st.round.Phase = models.RoundPhaseAggregating
	if err := s.roundRepo.Update(ctx, st.round); err != nil {
		return fmt.Errorf("failed to persist aggregating phase: %w", err)
	}

	model, err := s.modelStore.GetLatest(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to load model for aggregation: %w", err)
	}

	clients := make(map[string]*models.Client, len(st.buffer))
	for _, update := range st.buffer {
		client, err := s.registry.Get(ctx, update.ClientID)
		if err != nil {
			log.Warn().Err(err).Str("client_id", update.ClientID).Msg("Contributor missing from registry")
			continue
		}
		clients[update.ClientID] = client
	}

	newState, err := s.aggregator.Aggregate(ctx, model.Parameters, st.buffer, clients, st.round.AggregationMethod)
	if errors.Is(err, ErrInsufficientParticipants) {
		// Below the secure aggregation floor the round is held open, not
		// failed; more contributors may still arrive.
		st.round.Phase = models.RoundPhaseCollecting
		if persistErr := s.roundRepo.Update(ctx, st.round); persistErr != nil {
			return fmt.Errorf("failed to persist held-open round: %w", persistErr)
		}
		log.Warn().Err(err).
			Str("model", modelName).
			Str("round_id", st.round.ID.String()).
			Msg("Holding round open below secure aggregation threshold")
		return nil
	}
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	// Version advance and round close happen together under the model lock
	// so a new round can never start against a stale version.
	committed, err := s.modelStore.CommitNewVersion(ctx, modelName, newState, st.round.AggregationMethod, distinctClients(st.buffer), st.round.RoundNumber)
	if err != nil {
		return fmt.Errorf("failed to commit aggregated version: %w", err)
	}

	now := time.Now()
	st.round.Status = models.RoundStatusClosed
	st.round.ClosedAt = &now
	if err := s.roundRepo.Update(ctx, st.round); err != nil {
		return fmt.Errorf("failed to close round: %w", err)
	}

	if err := s.registry.MarkIdle(ctx, st.round.SelectedClients); err != nil {
		log.Warn().Err(err).Str("model", modelName).Msg("Failed to return clients to registered")
	}

	log.Info().
		Str("model", modelName).
		Str("round_id", st.round.ID.String()).
		Int("round_number", st.round.RoundNumber).
		Int("new_version", committed.Version).
		Int("participants", distinctClients(st.buffer)).
		Msg("Round aggregated and closed")

	st.round = nil
	st.buffer = nil

	metrics.AggregationsCompleted.WithLabelValues(modelName).Inc()
	metrics.ActiveRounds.Dec()

	return nil
}

func (s *CoordinatorService) RoundHistory(ctx context.Context, modelName string) ([]*models.TrainingRound, error) {
	return s.roundRepo.GetByModel(ctx, modelName)
}

// ExpireRounds sweeps every tracked model for deadline violations. The same
// check also runs opportunistically on each coordinator interaction.
func (s *CoordinatorService) ExpireRounds(ctx context.Context) error {
	s.mu.Lock()
	tracked := make(map[string]*modelState, len(s.states))
	for name, st := range s.states {
		tracked[name] = st
	}
	s.mu.Unlock()

	for name, st := range tracked {
		st.mu.Lock()
		s.expireLocked(ctx, name, st)
		st.mu.Unlock()
	}
	return nil
}

// expireLocked aborts a round whose deadline passed while responses were
// still below the participation floor. Rounds with enough responses that are
// merely waiting out the aggregation cadence stay open.
func (s *CoordinatorService) expireLocked(ctx context.Context, modelName string, st *modelState) {
	if st.round == nil || time.Now().Before(st.round.Deadline) {
		return
	}
	if len(st.round.RespondedClients) >= s.federation.MinClientsPerRound {
		return
	}

	log := logger.WithComponent("coordinator")

	now := time.Now()
	st.round.Status = models.RoundStatusClosed
	st.round.Phase = models.RoundPhaseAborted
	st.round.ClosedAt = &now

	if err := s.roundRepo.Update(ctx, st.round); err != nil {
		log.Error().Err(err).
			Str("model", modelName).
			Str("round_id", st.round.ID.String()).
			Msg("Failed to persist aborted round")
		return
	}

	if err := s.registry.MarkIdle(ctx, st.round.SelectedClients); err != nil {
		log.Warn().Err(err).Str("model", modelName).Msg("Failed to revert clients after abort")
	}

	log.Warn().
		Str("model", modelName).
		Str("round_id", st.round.ID.String()).
		Int("round_number", st.round.RoundNumber).
		Int("responded", len(st.round.RespondedClients)).
		Int("min_clients_per_round", s.federation.MinClientsPerRound).
		Msg("Aborted round on timeout; discarding partial updates")

	st.round = nil
	st.buffer = nil

	metrics.RoundsAborted.WithLabelValues(modelName).Inc()
	metrics.ActiveRounds.Dec()
}
