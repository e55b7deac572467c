package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apimodels "github.com/voltfed/voltfed-server/internal/api/models"
	"github.com/voltfed/voltfed-server/internal/core/models"
)

// HTTPTransport speaks the coordinator's JSON API.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *HTTPTransport) Register(ctx context.Context, clientID, displayName string, capabilities []string) error {
	body := apimodels.RegisterClientRequest{
		ClientID:     clientID,
		DisplayName:  displayName,
		Capabilities: capabilities,
	}

	resp, err := t.postJSON(ctx, "/api/v1/clients", body)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register returned unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *HTTPTransport) ActiveRound(ctx context.Context, modelName string) (*RoundInfo, error) {
	resp, err := t.get(ctx, fmt.Sprintf("/api/v1/models/%s/rounds/active", modelName))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("active round query returned unexpected status %d", resp.StatusCode)
	}

	var round apimodels.RoundResponse
	if err := json.NewDecoder(resp.Body).Decode(&round); err != nil {
		return nil, fmt.Errorf("failed to decode round response: %w", err)
	}

	return &RoundInfo{
		RoundID:         round.ID,
		RoundNumber:     round.RoundNumber,
		SelectedClients: round.SelectedClients,
		Deadline:        round.Deadline,
	}, nil
}

func (t *HTTPTransport) FetchSnapshot(ctx context.Context, modelName, clientID string) (*ModelSnapshot, error) {
	resp, err := t.get(ctx, fmt.Sprintf("/api/v1/models/%s/snapshot?client_id=%s", modelName, clientID))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request returned unexpected status %d", resp.StatusCode)
	}

	var snapshot apimodels.SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	return &ModelSnapshot{
		Name:       snapshot.Model.Name,
		Version:    snapshot.Model.Version,
		Parameters: snapshot.Model.Parameters,
		RoundID:    snapshot.RoundID,
	}, nil
}

func (t *HTTPTransport) SubmitUpdate(ctx context.Context, modelName, clientID, roundID string, payload models.ParameterState, modalitiesUsed []string, metrics map[string]float64) error {
	body := apimodels.SubmitUpdateRequest{
		ModelName:       modelName,
		ClientID:        clientID,
		Payload:         payload,
		ModalitiesUsed:  modalitiesUsed,
		ReportedMetrics: metrics,
	}

	resp, err := t.postJSON(ctx, fmt.Sprintf("/api/v1/rounds/%s/updates", roundID), body)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("update submission returned unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *HTTPTransport) postJSON(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (t *HTTPTransport) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
