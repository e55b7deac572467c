package agent

import (
	"context"
	"fmt"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// Outcome is the terminal result of one round attempt. Failures surface as
// typed outcomes rather than errors so callers can score participation
// without unwrapping.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeNotSelected        Outcome = "not_selected"
	OutcomeComputationFailed  Outcome = "computation_failed"
	OutcomeSubmissionRejected Outcome = "submission_rejected"
)

// RoundInfo is the subset of round state an agent needs to decide whether
// to participate.
type RoundInfo struct {
	RoundID         string
	RoundNumber     int
	SelectedClients []string
	Deadline        string
}

// ModelSnapshot is the global state handed to the local trainer.
type ModelSnapshot struct {
	Name       string
	Version    int
	Parameters models.ParameterState
	RoundID    string
}

// Transport is the client-side view of the coordinator API.
type Transport interface {
	Register(ctx context.Context, clientID, displayName string, capabilities []string) error
	ActiveRound(ctx context.Context, modelName string) (*RoundInfo, error)
	FetchSnapshot(ctx context.Context, modelName, clientID string) (*ModelSnapshot, error)
	SubmitUpdate(ctx context.Context, modelName, clientID, roundID string, payload models.ParameterState, modalitiesUsed []string, metrics map[string]float64) error
}

// LocalTrainer produces a parameter delta from a global snapshot. Training
// is opaque to the protocol; real backends substitute here.
type LocalTrainer interface {
	ComputeUpdate(ctx context.Context, global models.ParameterState) (models.ParameterState, map[string]float64, error)
}

type Agent struct {
	clientID     string
	displayName  string
	capabilities []string
	transport    Transport
	trainer      LocalTrainer
}

func NewAgent(clientID, displayName string, capabilities []string, transport Transport, trainer LocalTrainer) *Agent {
	return &Agent{
		clientID:     clientID,
		displayName:  displayName,
		capabilities: capabilities,
		transport:    transport,
		trainer:      trainer,
	}
}

// RunRound attempts to participate in the active round for modelName. The
// agent never retries within a round; a timed-out or closed round reads as
// not_selected on the next attempt.
func (a *Agent) RunRound(ctx context.Context, modelName string) (Outcome, error) {
	log := logger.WithComponent("agent")

	if err := a.transport.Register(ctx, a.clientID, a.displayName, a.capabilities); err != nil {
		return OutcomeNotSelected, fmt.Errorf("failed to register with coordinator: %w", err)
	}

	round, err := a.transport.ActiveRound(ctx, modelName)
	if err != nil {
		return OutcomeNotSelected, fmt.Errorf("failed to query active round: %w", err)
	}
	if round == nil || !contains(round.SelectedClients, a.clientID) {
		log.Debug().Str("model", modelName).Str("client_id", a.clientID).Msg("Not selected for active round")
		return OutcomeNotSelected, nil
	}

	snapshot, err := a.transport.FetchSnapshot(ctx, modelName, a.clientID)
	if err != nil {
		return OutcomeNotSelected, fmt.Errorf("failed to fetch model snapshot: %w", err)
	}

	payload, metrics, err := a.trainer.ComputeUpdate(ctx, snapshot.Parameters)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("Local computation failed")
		return OutcomeComputationFailed, err
	}

	err = a.transport.SubmitUpdate(ctx, modelName, a.clientID, snapshot.RoundID, payload, a.capabilities, metrics)
	if err != nil {
		log.Warn().Err(err).Str("model", modelName).Str("round_id", snapshot.RoundID).Msg("Update submission rejected")
		return OutcomeSubmissionRejected, err
	}

	log.Info().
		Str("model", modelName).
		Str("round_id", snapshot.RoundID).
		Int("version", snapshot.Version).
		Msg("Round completed")

	return OutcomeCompleted, nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
