package cli

import (
	"context"
	"os"
	"time"

	"github.com/voltfed/voltfed-server/internal/agent"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

type AgentOptions struct {
	ClientID     string
	DisplayName  string
	ModelName    string
	ServerURL    string
	Capabilities []string
}

// RunAgent participates in a single round and exits. Operators loop it
// externally (cron, systemd timer) for continuous participation.
func RunAgent(opts AgentOptions) {
	log := logger.Get()

	transport := agent.NewHTTPTransport(opts.ServerURL)
	trainer := agent.NewSimulatedTrainer()

	a := agent.NewAgent(opts.ClientID, opts.DisplayName, opts.Capabilities, transport, trainer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	outcome, err := a.RunRound(ctx, opts.ModelName)
	if err != nil {
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("Round attempt failed")
		os.Exit(1)
	}

	log.Info().
		Str("model", opts.ModelName).
		Str("client_id", opts.ClientID).
		Str("outcome", string(outcome)).
		Msg("Agent finished")
}
