package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/loghub/internal/adapter/pii"
	"github.com/user/loghub/internal/domain"
	"github.com/user/loghub/internal/domain/mocks"
	"github.com/user/loghub/internal/usecase"
)

func newTestIngestHandler(store *mocks.MockLogRepository) *IngestHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := &mocks.MockAPIKeyRepository{
		Keys: map[string]domain.APIKey{
			"valid-key": {Key: "valid-key", ServiceName: "checkout", IsActive: true},
		},
	}
	redactor := pii.NewRedactor(nil, logger)
	uc := usecase.NewIngestLogUseCase(store, keys, redactor, nil, logger, nil, 1000, 2000)
	return NewIngestHandler(uc, logger, 1<<20)
}

func TestIngestHandler(t *testing.T) {
	t.Run("Batch Accepted", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		h := newTestIngestHandler(store)

		body := `{"logs":[{"service_name":"checkout","message":"ok"},{"service_name":"checkout","message":"also ok"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(body))
		req.Header.Set(APIKeyHeader, "valid-key")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			AcceptedCount int      `json:"accepted_count"`
			IDs           []uint64 `json:"ids"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.AcceptedCount != 2 || len(resp.IDs) != 2 {
			t.Errorf("unexpected response: %+v", resp)
		}
		if len(store.Entries) != 2 {
			t.Errorf("expected 2 stored entries, got %d", len(store.Entries))
		}
	})

	t.Run("Bare Array Body", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		h := newTestIngestHandler(store)

		body := `[{"service_name":"checkout","message":"ok"}]`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(body))
		req.Header.Set(APIKeyHeader, "valid-key")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Key Via Query Param", func(t *testing.T) {
		h := newTestIngestHandler(&mocks.MockLogRepository{})

		body := `{"logs":[{"service_name":"checkout","message":"ok"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest?api_key=valid-key", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	})

	t.Run("Missing Key", func(t *testing.T) {
		h := newTestIngestHandler(&mocks.MockLogRepository{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(`[]`))
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("Invalid Key", func(t *testing.T) {
		h := newTestIngestHandler(&mocks.MockLogRepository{})

		body := `{"logs":[{"service_name":"checkout","message":"ok"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(body))
		req.Header.Set(APIKeyHeader, "wrong")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("Invalid Entry Rejects Batch", func(t *testing.T) {
		store := &mocks.MockLogRepository{}
		h := newTestIngestHandler(store)

		body := `{"logs":[{"service_name":"checkout","message":"ok"},{"message":"no service"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(body))
		req.Header.Set(APIKeyHeader, "valid-key")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		if len(store.Entries) != 0 {
			t.Errorf("expected nothing stored, got %d", len(store.Entries))
		}
	})

	t.Run("Partial Commit Reports Accepted IDs", func(t *testing.T) {
		store := &mocks.MockLogRepository{
			AppendErr: errors.New("disk full"),
			FailAfter: 2,
		}
		h := newTestIngestHandler(store)

		body := `{"logs":[
			{"service_name":"checkout","message":"one"},
			{"service_name":"checkout","message":"two"},
			{"service_name":"checkout","message":"three"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(body))
		req.Header.Set(APIKeyHeader, "valid-key")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Error         string   `json:"error"`
			AcceptedCount int      `json:"accepted_count"`
			IDs           []uint64 `json:"ids"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.Error == "" {
			t.Error("expected an error message in the body")
		}
		if resp.AcceptedCount != 2 || len(resp.IDs) != 2 {
			t.Errorf("expected the 2 committed ids reported, got %+v", resp)
		}
		if len(store.Entries) != 2 {
			t.Errorf("expected 2 stored entries, got %d", len(store.Entries))
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		h := newTestIngestHandler(&mocks.MockLogRepository{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/logs/ingest", strings.NewReader(`{not json`))
		req.Header.Set(APIKeyHeader, "valid-key")
		rr := httptest.NewRecorder()

		h.Ingest(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}
