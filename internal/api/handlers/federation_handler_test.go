package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/internal/core/services"
	"github.com/voltfed/voltfed-server/internal/database/repositories"
)

type stubCoordinator struct {
	startErr   error
	activeErr  error
	receiveErr error
	round      *models.TrainingRound
}

func (s *stubCoordinator) StartRound(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return s.round, nil
}

func (s *stubCoordinator) ActiveRound(ctx context.Context, modelName string) (*models.TrainingRound, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.round, nil
}

func (s *stubCoordinator) Distribute(ctx context.Context, modelName, clientID string) (*models.GlobalModel, *models.TrainingRound, error) {
	return nil, nil, services.ErrNoActiveRound
}

func (s *stubCoordinator) ReceiveUpdate(ctx context.Context, modelName, clientID string, roundID uuid.UUID, payload models.ParameterState, modalitiesUsed []string, reportedMetrics map[string]float64) error {
	return s.receiveErr
}

func (s *stubCoordinator) RoundHistory(ctx context.Context, modelName string) ([]*models.TrainingRound, error) {
	return nil, nil
}

func (s *stubCoordinator) ExpireRounds(ctx context.Context) error {
	return nil
}

type stubModelStore struct {
	initErr error
	model   *models.GlobalModel
}

func (s *stubModelStore) Initialize(ctx context.Context, name string, initial models.ParameterState, aggregationMethod string) (*models.GlobalModel, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.model, nil
}

func (s *stubModelStore) GetLatest(ctx context.Context, name string) (*models.GlobalModel, error) {
	if s.model == nil {
		return nil, repositories.ErrModelNotFound
	}
	return s.model, nil
}

func (s *stubModelStore) ListVersions(ctx context.Context, name string) ([]*models.GlobalModel, error) {
	return nil, repositories.ErrModelNotFound
}

func (s *stubModelStore) CommitNewVersion(ctx context.Context, name string, state models.ParameterState, aggregationMethod string, participantCount, roundNumber int) (*models.GlobalModel, error) {
	return nil, nil
}

func newTestRouter(handler *FederationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/models", handler.InitializeModel)
	router.GET("/models/:name", handler.GetModel)
	router.POST("/models/:name/rounds", handler.StartRound)
	router.GET("/models/:name/rounds/active", handler.GetActiveRound)
	router.POST("/rounds/:id/updates", handler.SubmitUpdate)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestInitializeModelConflict(t *testing.T) {
	handler := NewFederationHandler(&stubModelStore{initErr: services.ErrModelAlreadyInitialized}, &stubCoordinator{})
	router := newTestRouter(handler)

	recorder := performJSON(t, router, http.MethodPost, "/models", map[string]interface{}{
		"name":       "battery_health",
		"parameters": map[string][]float64{"w": {1.0}},
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestInitializeModelBadBody(t *testing.T) {
	handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{})
	router := newTestRouter(handler)

	recorder := performJSON(t, router, http.MethodPost, "/models", map[string]interface{}{
		"name": "battery_health",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetModelNotFound(t *testing.T) {
	handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{})
	router := newTestRouter(handler)

	recorder := performJSON(t, router, http.MethodGet, "/models/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestStartRoundStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"round in progress", services.ErrRoundInProgress, http.StatusConflict},
		{"model missing", repositories.ErrModelNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{startErr: tc.err})
		router := newTestRouter(handler)

		recorder := performJSON(t, router, http.MethodPost, "/models/battery_health/rounds", nil)
		assert.Equal(t, tc.want, recorder.Code, tc.name)
	}
}

func TestActiveRoundNoContent(t *testing.T) {
	handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{activeErr: services.ErrNoActiveRound})
	router := newTestRouter(handler)

	recorder := performJSON(t, router, http.MethodGet, "/models/battery_health/rounds/active", nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestSubmitUpdateStatusCodes(t *testing.T) {
	body := map[string]interface{}{
		"model_name": "battery_health",
		"client_id":  "site-a",
		"payload":    map[string][]float64{"w": {0.1}},
	}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"no active round", services.ErrNoActiveRound, http.StatusNotFound},
		{"round mismatch", services.ErrRoundMismatch, http.StatusConflict},
		{"round aborted", services.ErrRoundAborted, http.StatusGone},
		{"not selected", services.ErrNotSelected, http.StatusForbidden},
	}
	for _, tc := range cases {
		handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{receiveErr: tc.err})
		router := newTestRouter(handler)

		recorder := performJSON(t, router, http.MethodPost, "/rounds/"+uuid.NewString()+"/updates", body)
		assert.Equal(t, tc.want, recorder.Code, tc.name)
	}
}

func TestSubmitUpdateRejectsBadRoundID(t *testing.T) {
	handler := NewFederationHandler(&stubModelStore{}, &stubCoordinator{})
	router := newTestRouter(handler)

	recorder := performJSON(t, router, http.MethodPost, "/rounds/not-a-uuid/updates", map[string]interface{}{
		"model_name": "battery_health",
		"client_id":  "site-a",
		"payload":    map[string][]float64{"w": {0.1}},
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
