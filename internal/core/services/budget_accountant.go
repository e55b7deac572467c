package services

import (
	"context"
	"fmt"
	"time"

	"github.com/voltfed/voltfed-server/internal/core/ports"
)

// LinearAccountant applies a flat, irreversible decrement per sanitized
// update. It performs no composition accounting; swapping in a
// composition-theorem accountant only requires implementing
// ports.BudgetAccountant.
type LinearAccountant struct {
	clientRepo ports.ClientRepository
}

func NewLinearAccountant(clientRepo ports.ClientRepository) *LinearAccountant {
	return &LinearAccountant{clientRepo: clientRepo}
}

func (a *LinearAccountant) Charge(ctx context.Context, clientID string, amount float64) (float64, error) {
	client, err := a.clientRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to get client: %w", err)
	}

	remaining := client.PrivacyBudgetRemaining - amount
	if remaining < 0 {
		remaining = 0
	}
	if remaining > 1 {
		remaining = 1
	}
	// The budget never increases; a non-positive charge is a no-op.
	if remaining >= client.PrivacyBudgetRemaining {
		return client.PrivacyBudgetRemaining, nil
	}

	client.PrivacyBudgetRemaining = remaining
	client.LastActive = time.Now()

	if err := a.clientRepo.Update(ctx, client); err != nil {
		return 0, fmt.Errorf("failed to persist budget: %w", err)
	}
	return remaining, nil
}
