package services

import "errors"

// Protocol-level error taxonomy. Storage-level not-found sentinels live with
// the repository implementations; everything here is a coordination outcome.
var (
	// ErrModelAlreadyInitialized is returned on double initialization of a
	// model name. Non-fatal; the existing version history is untouched.
	ErrModelAlreadyInitialized = errors.New("model already initialized")

	// ErrNotSelected marks a client interacting outside its assigned round.
	// Soft rejection unless unsolicited updates are accepted by config.
	ErrNotSelected = errors.New("client not selected for round")

	// ErrNoActiveRound is returned when a model has no open round.
	ErrNoActiveRound = errors.New("no active round")

	// ErrRoundInProgress is returned when a round start is attempted while
	// another round is still open for the same model.
	ErrRoundInProgress = errors.New("round already in progress")

	// ErrRoundMismatch is returned when an update names a round other than
	// the currently active one.
	ErrRoundMismatch = errors.New("update round does not match active round")

	// ErrInsufficientParticipants is returned by the aggregation engine when
	// fewer distinct clients contributed than the secure aggregation floor.
	// The coordinator treats it as a signal to hold the round open.
	ErrInsufficientParticipants = errors.New("insufficient participants for aggregation")

	// ErrRoundAborted is returned when a round was expired on timeout.
	ErrRoundAborted = errors.New("round aborted")

	// ErrStrategyNotImplemented is returned for aggregation strategies that
	// are recognized names but have no real implementation yet.
	ErrStrategyNotImplemented = errors.New("aggregation strategy not implemented")
)
