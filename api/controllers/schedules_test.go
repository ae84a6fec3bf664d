package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumicrm/payments-backend/internal/schedules"
	"github.com/lumicrm/payments-backend/pkg/db/models"
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

type stubScheduleService struct {
	created      *models.Schedule
	createErr    error
	cancelErr    error
	calledCreate bool
	calledCancel bool
}

func (s *stubScheduleService) CreateFromContract(_ context.Context, _ schedules.ContractSignedPayload) (*models.Schedule, error) {
	s.calledCreate = true
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubScheduleService) Cancel(_ context.Context, _ uuid.UUID) error {
	s.calledCancel = true
	return s.cancelErr
}

type stubScheduleReader struct {
	schedule *models.Schedule
}

func (s *stubScheduleReader) FindByID(_ context.Context, _ uuid.UUID) (*models.Schedule, error) {
	return s.schedule, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func TestScheduleCreateSuccess(t *testing.T) {
	created := &models.Schedule{
		ID:             uuid.New(),
		OrganisationID: uuid.New(),
		ContractID:     uuid.New(),
		Amount:         decimal.NewFromFloat(49.90),
		Currency:       "EUR",
		Status:         enums.ScheduleStatusPlanned,
		Provider:       enums.PSPProviderStripe,
		MaxRetries:     3,
	}
	service := &stubScheduleService{created: created}
	handler := ScheduleCreate(service, testLogger())

	payload := scheduleCreateRequest{
		OrganisationID: created.OrganisationID,
		ContractID:     created.ContractID,
		ClientID:       uuid.New(),
		CompanyID:      uuid.New(),
		Amount:         created.Amount,
		Currency:       "EUR",
		Provider:       "stripe",
		MandateRef:     "pm_1",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", bytes.NewReader(body))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if !service.calledCreate {
		t.Fatal("service should be invoked for create")
	}
	var envelope struct {
		Data scheduleResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != "PLANNED" {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
}

func TestScheduleCreateRejectsMissingFields(t *testing.T) {
	service := &stubScheduleService{}
	handler := ScheduleCreate(service, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", bytes.NewReader([]byte(`{}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if service.calledCreate {
		t.Fatal("service should not be invoked on validation failure")
	}
}

func TestScheduleCreateRejectsUnknownProvider(t *testing.T) {
	handler := ScheduleCreate(&stubScheduleService{}, testLogger())

	payload := scheduleCreateRequest{
		OrganisationID: uuid.New(),
		ContractID:     uuid.New(),
		ClientID:       uuid.New(),
		CompanyID:      uuid.New(),
		Amount:         decimal.NewFromInt(10),
		Currency:       "EUR",
		Provider:       "paypal",
		MandateRef:     "pm_1",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestScheduleCancelMapsStateConflict(t *testing.T) {
	service := &stubScheduleService{
		cancelErr: pkgerrors.New(pkgerrors.CodeStateConflict, "schedule is terminal"),
	}
	router := chi.NewRouter()
	router.Post("/schedules/{scheduleId}/cancel", ScheduleCancel(service, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/schedules/"+uuid.NewString()+"/cancel", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestScheduleFetchNotFound(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/schedules/{scheduleId}", ScheduleFetch(&stubScheduleReader{}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/schedules/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestScheduleFetchRejectsMalformedID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/schedules/{scheduleId}", ScheduleFetch(&stubScheduleReader{}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/schedules/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
