package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wms-core/internal/audit"
	"wms-core/internal/auth"
	locationapp "wms-core/internal/location/application"
	location "wms-core/internal/location/domain"
	"wms-core/internal/reporting"
	tuapp "wms-core/internal/transportunit/application"
	transportunit "wms-core/internal/transportunit/domain"
)

const timeLayout = time.RFC3339

// Allocator reserves a unit matching search criteria.
type Allocator interface {
	Allocate(ctx context.Context, req tuapp.AllocationRequest) ([]tuapp.Allocation, error)
}

// Reserver claims a unit by barcode.
type Reserver interface {
	Reserve(ctx context.Context, barcode, token string) (transportunit.Reservation, error)
}

// GroupOperator applies operator changes to a location group.
type GroupOperator interface {
	SetState(ctx context.Context, name string, in, out location.GroupState) (locationapp.GroupResult, error)
	SetMode(ctx context.Context, name string, mode location.OperationMode) (locationapp.GroupResult, error)
}

// ReportRenderer renders the location state report.
type ReportRenderer interface {
	Render(ctx context.Context, format reporting.Format) ([]byte, error)
}

// HealthCheck reports readiness; nil means always healthy.
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the HTTP surface. Nil services leave their
// routes unregistered.
type Deps struct {
	Allocations  Allocator
	Reservations Reserver
	Groups       GroupOperator
	Reports      ReportRenderer
	Audit        audit.Logger
	Health       HealthCheck
}

// Handler serves the synchronous API.
type Handler struct {
	deps   Deps
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewHandler builds the route table.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{deps: deps, mux: http.NewServeMux(), logger: logger}
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	if deps.Allocations != nil {
		h.mux.HandleFunc("POST /api/v1/allocations", h.handleAllocate)
	}
	if deps.Reservations != nil {
		h.mux.HandleFunc("POST /api/v1/transport-units/{barcode}/reservations", h.handleReserve)
	}
	if deps.Groups != nil {
		h.mux.HandleFunc("PUT /api/v1/location-groups/{name}/state", h.handleGroupState)
		h.mux.HandleFunc("PUT /api/v1/location-groups/{name}/mode", h.handleGroupMode)
	}
	if deps.Reports != nil {
		h.mux.HandleFunc("GET /api/v1/reports/locations.xlsx", h.handleReport(reporting.FormatXLSX))
		h.mux.HandleFunc("GET /api/v1/reports/locations.pdf", h.handleReport(reporting.FormatPDF))
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req tuapp.AllocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	allocations, err := h.deps.Allocations.Allocate(r.Context(), req)
	if err != nil {
		h.logger.Error("allocation failed", zap.Error(err))
		writeError(w, err)
		return
	}
	if allocations == nil {
		allocations = []tuapp.Allocation{}
	}
	writeJSON(w, http.StatusOK, allocations)
	for _, allocation := range allocations {
		h.logAudit(r, "transport_unit.allocate", "transport_unit", allocation.TransportUnitBK, req)
	}
}

type reservationResponse struct {
	ReservationID     string `json:"reservation_id"`
	TransportUnitPKey string `json:"transport_unit_pkey"`
	ReservedBy        string `json:"reserved_by"`
	ReservedAt        string `json:"reserved_at"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	barcode := r.PathValue("barcode")
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	reservation, err := h.deps.Reservations.Reserve(r.Context(), barcode, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationResponse{
		ReservationID:     reservation.ID,
		TransportUnitPKey: reservation.TransportUnitPKey,
		ReservedBy:        reservation.ReservedBy,
		ReservedAt:        reservation.ReservedAt.UTC().Format(timeLayout),
	})
	h.logAudit(r, "transport_unit.reserve", "transport_unit", barcode, map[string]string{"reservation_id": reservation.ID})
}

type groupResponse struct {
	Name          string `json:"name"`
	StateIn       string `json:"state_in"`
	StateOut      string `json:"state_out"`
	OperationMode string `json:"operation_mode"`
	Changed       bool   `json:"changed"`
}

func newGroupResponse(result locationapp.GroupResult) groupResponse {
	return groupResponse{
		Name:          result.Group.Name,
		StateIn:       string(result.Group.GroupStateIn),
		StateOut:      string(result.Group.GroupStateOut),
		OperationMode: string(result.Group.OperationMode),
		Changed:       result.Changed,
	}
}

func (h *Handler) handleGroupState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req struct {
		StateIn  string `json:"state_in"`
		StateOut string `json:"state_out"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := location.ParseGroupState(req.StateIn)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := location.ParseGroupState(req.StateOut)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.deps.Groups.SetState(r.Context(), name, in, out)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(result))
	h.logAudit(r, "location_group.state.set", "location_group", name, req)
}

func (h *Handler) handleGroupMode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req struct {
		OperationMode string `json:"operation_mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := location.ParseOperationMode(req.OperationMode)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.deps.Groups.SetMode(r.Context(), name, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(result))
	h.logAudit(r, "location_group.mode.set", "location_group", name, req)
}

func (h *Handler) handleReport(format reporting.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h.deps.Reports.Render(r.Context(), format)
		if err != nil {
			h.logger.Error("report render failed", zap.String("format", string(format)), zap.Error(err))
			if errors.Is(err, reporting.ErrUnknownFormat) {
				http.Error(w, "unknown format", http.StatusBadRequest)
				return
			}
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", "attachment; filename=locations."+string(format))
		_, _ = w.Write(data)
	}
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, metadata any) {
	if h.deps.Audit == nil {
		return
	}
	var payload []byte
	if metadata != nil {
		payload, _ = json.Marshal(metadata)
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.deps.Audit.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
