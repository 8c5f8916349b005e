package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/audit"
	locationapp "wms-core/internal/location/application"
	location "wms-core/internal/location/domain"
	locationmemory "wms-core/internal/location/infrastructure/memory"
	"wms-core/internal/platform/txn"
	"wms-core/internal/reporting"
	tuapp "wms-core/internal/transportunit/application"
	transportunit "wms-core/internal/transportunit/domain"
	tumemory "wms-core/internal/transportunit/infrastructure/memory"
)

type discardWriter struct{}

func (discardWriter) Publish(context.Context, any) error { return nil }

type fixture struct {
	handler *Handler
	audit   *audit.MemoryLogger
	groups  *locationmemory.GroupRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	runner := txn.NewMemoryRunner(discardWriter{})
	pk := location.LocationPK{Area: "HRL", Aisle: "0001", X: "0001", Y: "0001", Z: "0000"}
	units := tumemory.NewTransportUnitRepository(
		transportunit.TransportUnit{PKey: "pk-4711", Barcode: "4711", ActualLocation: pk, ActualLocationErpCode: "ERP-1", State: transportunit.StateAvailable},
		transportunit.TransportUnit{PKey: "pk-4712", Barcode: "4712", ActualLocation: pk, State: transportunit.StateAvailable},
	)
	engine, err := tuapp.NewReservationEngine(units, tumemory.NewReservationRepository(), runner)
	require.NoError(t, err)
	allocation, err := tuapp.NewAllocationService(units, engine, runner, tuapp.WithTokenSource(func() string { return "alloc-token" }))
	require.NoError(t, err)

	locations := locationmemory.NewLocationRepository(location.Location{ID: "L-1", PK: pk, GroupName: "ZONE-A"})
	groups := locationmemory.NewGroupRepository(location.LocationGroup{
		Name:          "ZONE-A",
		GroupStateIn:  location.GroupStateAvailable,
		GroupStateOut: location.GroupStateAvailable,
		OperationMode: location.ModeInfeedAndOutfeed,
	})
	groupSvc, err := locationapp.NewGroupStateService(groups, runner)
	require.NoError(t, err)
	reports, err := reporting.NewBuilder(locations, groups)
	require.NoError(t, err)

	logger := &audit.MemoryLogger{}
	h := NewHandler(Deps{
		Allocations:  allocation,
		Reservations: engine,
		Groups:       groupSvc,
		Reports:      reports,
		Audit:        logger,
	}, nil)
	return fixture{handler: h, audit: logger, groups: groups}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestAllocateReservesUnit(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"search_attributes": []map[string]string{{"key": "transportUnitBK", "value": "4711"}}}

	resp := f.do(t, http.MethodPost, "/api/v1/allocations", body)
	require.Equal(t, http.StatusOK, resp.Code)
	var allocations []tuapp.Allocation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &allocations))
	require.Len(t, allocations, 1)
	assert.Equal(t, "4711", allocations[0].TransportUnitBK)
	assert.Equal(t, "ERP-1", allocations[0].ActualLocationErpCode)
	assert.Equal(t, "alloc-token", allocations[0].ReservationID)
	assert.Len(t, f.audit.Entries(), 1)

	resp = f.do(t, http.MethodPost, "/api/v1/allocations", body)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestAllocateWithoutBusinessKeyIsEmpty(t *testing.T) {
	resp := newFixture(t).do(t, http.MethodPost, "/api/v1/allocations", map[string]any{"search_attributes": []any{}})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestAllocateRejectsMalformedJSON(t *testing.T) {
	resp := newFixture(t).do(t, http.MethodPost, "/api/v1/allocations", "{")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "REQUEST_INVALID", decodeError(t, resp).Code)
}

func TestReserveCreatedThenConflict(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/transport-units/4712/reservations", map[string]string{"token": "picker-1"})
	require.Equal(t, http.StatusCreated, resp.Code)
	var created reservationResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "pk-4712", created.TransportUnitPKey)
	assert.Equal(t, "picker-1", created.ReservedBy)
	assert.NotEmpty(t, created.ReservationID)

	resp = f.do(t, http.MethodPost, "/api/v1/transport-units/4712/reservations", map[string]string{"token": "picker-2"})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "TU_ALREADY_RESERVED", decodeError(t, resp).Code)
}

func TestReserveErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/transport-units/9999/reservations", map[string]string{"token": "t"})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "TU_NOT_FOUND", decodeError(t, resp).Code)

	resp = f.do(t, http.MethodPost, "/api/v1/transport-units/4711/reservations", map[string]string{"token": ""})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "RESERVATION_TOKEN_MISSING", decodeError(t, resp).Code)
}

func TestSetGroupStateAndMode(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/v1/location-groups/ZONE-A/state", map[string]string{"state_in": "NOT_AVAILABLE", "state_out": "AVAILABLE"})
	require.Equal(t, http.StatusOK, resp.Code)
	var group groupResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &group))
	assert.Equal(t, "NOT_AVAILABLE", group.StateIn)
	assert.True(t, group.Changed)

	stored, err := f.groups.Get(context.Background(), "ZONE-A")
	require.NoError(t, err)
	assert.Equal(t, location.GroupStateNotAvailable, stored.GroupStateIn)

	resp = f.do(t, http.MethodPut, "/api/v1/location-groups/ZONE-A/mode", map[string]string{"operation_mode": "BLOCKED"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &group))
	assert.Equal(t, "BLOCKED", group.OperationMode)

	entries := f.audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "location_group.state.set", entries[0].Action)
	assert.Equal(t, "ZONE-A", entries[0].ResourceID)
	assert.NotEmpty(t, entries[0].PayloadDigest)
}

func TestSetGroupStateErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/v1/location-groups/ZONE-A/state", map[string]string{"state_in": "OPEN", "state_out": "AVAILABLE"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "LOCATION_GROUP_STATE_INVALID", decodeError(t, resp).Code)

	resp = f.do(t, http.MethodPut, "/api/v1/location-groups/ZONE-Z/mode", map[string]string{"operation_mode": "INFEED"})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "LOCATION_GROUP_NOT_FOUND", decodeError(t, resp).Code)
}

func TestReports(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/reports/locations.pdf", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	resp = f.do(t, http.MethodGet, "/api/v1/reports/locations.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, reporting.FormatXLSX.ContentType(), resp.Header().Get("Content-Type"))
	assert.NotZero(t, resp.Body.Len())
}

func TestHealthz(t *testing.T) {
	resp := newFixture(t).do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	h := NewHandler(Deps{Health: func(context.Context) error { return errors.New("db down") }}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "UNKNOWN", body.Code)
	assert.Equal(t, "internal error", body.Message)
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
