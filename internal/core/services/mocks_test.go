package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
)

type memModelRepo struct {
	mu     sync.Mutex
	models []*models.GlobalModel
}

func newMemModelRepo() *memModelRepo {
	return &memModelRepo{}
}

func (r *memModelRepo) Create(ctx context.Context, model *models.GlobalModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *model
	stored.Parameters = model.Parameters.Clone()
	r.models = append(r.models, &stored)
	return nil
}

func (r *memModelRepo) GetLatest(ctx context.Context, name string) (*models.GlobalModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.GlobalModel
	for _, m := range r.models {
		if m.Name != name {
			continue
		}
		if latest == nil || m.Version > latest.Version {
			latest = m
		}
	}
	if latest == nil {
		return nil, repositories.ErrModelNotFound
	}

	out := *latest
	out.Parameters = latest.Parameters.Clone()
	return &out, nil
}

func (r *memModelRepo) GetVersions(ctx context.Context, name string) ([]*models.GlobalModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.GlobalModel
	for _, m := range r.models {
		if m.Name == name {
			copied := *m
			copied.Parameters = m.Parameters.Clone()
			out = append(out, &copied)
		}
	}
	if len(out) == 0 {
		return nil, repositories.ErrModelNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type memClientRepo struct {
	mu      sync.Mutex
	clients map[string]*models.Client
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{clients: make(map[string]*models.Client)}
}

func (r *memClientRepo) Create(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *client
	r.clients[client.ClientID] = &stored
	return nil
}

func (r *memClientRepo) GetByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[clientID]
	if !ok {
		return nil, repositories.ErrClientNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memClientRepo) List(ctx context.Context, status models.ClientStatus) ([]*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Client
	for _, stored := range r.clients {
		if status != "" && stored.Status != status {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *memClientRepo) Update(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ClientID]; !ok {
		return repositories.ErrClientNotFound
	}
	stored := *client
	r.clients[client.ClientID] = &stored
	return nil
}

func (r *memClientRepo) UpdateStatus(ctx context.Context, clientIDs []string, status models.ClientStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range clientIDs {
		if stored, ok := r.clients[id]; ok {
			stored.Status = status
			stored.LastActive = time.Now()
		}
	}
	return nil
}

type memRoundRepo struct {
	mu     sync.Mutex
	rounds map[uuid.UUID]*models.TrainingRound
}

func newMemRoundRepo() *memRoundRepo {
	return &memRoundRepo{rounds: make(map[uuid.UUID]*models.TrainingRound)}
}

func copyRound(round *models.TrainingRound) *models.TrainingRound {
	out := *round
	out.SelectedClients = append(models.StringList{}, round.SelectedClients...)
	out.RespondedClients = append(models.StringList{}, round.RespondedClients...)
	return &out
}

func (r *memRoundRepo) Create(ctx context.Context, round *models.TrainingRound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rounds[round.ID] = copyRound(round)
	return nil
}

func (r *memRoundRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingRound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	return copyRound(stored), nil
}

func (r *memRoundRepo) GetActiveByModel(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.rounds {
		if stored.ModelName == modelName && stored.Status == models.RoundStatusActive {
			return copyRound(stored), nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *memRoundRepo) GetByModel(ctx context.Context, modelName string) ([]*models.TrainingRound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.TrainingRound
	for _, stored := range r.rounds {
		if stored.ModelName == modelName {
			out = append(out, copyRound(stored))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *memRoundRepo) LatestRoundNumber(ctx context.Context, modelName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	highest := 0
	for _, stored := range r.rounds {
		if stored.ModelName == modelName && stored.RoundNumber > highest {
			highest = stored.RoundNumber
		}
	}
	return highest, nil
}

func (r *memRoundRepo) Update(ctx context.Context, round *models.TrainingRound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rounds[round.ID]; !ok {
		return repositories.ErrRoundNotFound
	}
	r.rounds[round.ID] = copyRound(round)
	return nil
}
