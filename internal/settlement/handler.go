package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/auth"
	"github.com/frahmantamala/hr-ops/internal/transport"
	"github.com/frahmantamala/hr-ops/pkg/logger"
)

type ServiceAPI interface {
	Initiate(ctx context.Context, actor Actor, dto InitiateDTO) (*Settlement, error)
	Calculate(ctx context.Context, actor Actor, id int64) (*Settlement, error)
	Update(ctx context.Context, actor Actor, id int64, dto UpdateDTO) (*Settlement, error)
	GetClearanceStatus(ctx context.Context, actor Actor, id int64) (*ClearanceVerdict, error)
	UpdateClearance(ctx context.Context, actor Actor, id int64, dto ClearanceUpdateDTO) (*Settlement, error)
	Approve(ctx context.Context, actor Actor, id int64) (*Settlement, error)
	GenerateDocuments(ctx context.Context, actor Actor, id int64) (DocumentKeys, error)
	Complete(ctx context.Context, actor Actor, id int64) (*Settlement, error)
	Cancel(ctx context.Context, actor Actor, id int64, dto CancelDTO) error
	GetByID(ctx context.Context, actor Actor, id int64) (*Settlement, error)
	ListByUser(ctx context.Context, actor Actor, userID int64) ([]*Settlement, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("user not found in context", "path", r.URL.Path)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return Actor{}, false
	}
	return Actor{UserID: user.ID, Permissions: user.Permissions}, true
}

// withID resolves the actor and the {id} parameter before calling fn.
func (h *Handler) withID(fn func(w http.ResponseWriter, r *http.Request, actor Actor, id int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		id, ok := h.IDParam(w, r, "id")
		if !ok {
			return
		}
		fn(w, r, actor, id)
	}
}

// initiateRequest accepts plain YYYY-MM-DD dates as well as RFC 3339.
type initiateRequest struct {
	EmployeeID         int64   `json:"employee_id"`
	ExitDate           string  `json:"exit_date"`
	ExitReason         string  `json:"exit_reason"`
	LastWorkingDate    string  `json:"last_working_date"`
	NoticePeriodWaived bool    `json:"notice_period_waived"`
	Remarks            *string `json:"remarks,omitempty"`
}

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.NewValidationFieldError(field, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field), errors.ErrCodeInvalidDate)
	}
	return t, nil
}

func (req initiateRequest) toDTO() (InitiateDTO, error) {
	exitDate, err := parseDate("exit_date", req.ExitDate)
	if err != nil {
		return InitiateDTO{}, err
	}
	lastWorking, err := parseDate("last_working_date", req.LastWorkingDate)
	if err != nil {
		return InitiateDTO{}, err
	}
	return InitiateDTO{
		EmployeeID:         req.EmployeeID,
		ExitDate:           exitDate,
		ExitReason:         req.ExitReason,
		LastWorkingDate:    lastWorking,
		NoticePeriodWaived: req.NoticePeriodWaived,
		Remarks:            req.Remarks,
	}, nil
}

// Initiate handles POST /settlements
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req initiateRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	dto, err := req.toDTO()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	st, err := h.Service.Initiate(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, st)
}

// Get handles GET /settlements/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		st, err := h.Service.GetByID(r.Context(), actor, id)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, st)
	})(w, r)
}

// ListByUser handles GET /settlements/users/{userID}
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, ok := h.IDParam(w, r, "userID")
	if !ok {
		return
	}
	h.list(w, r, actor, userID)
}

// ListMine handles GET /settlements/me
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.list(w, r, actor, actor.UserID)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, actor Actor, userID int64) {
	list, err := h.Service.ListByUser(r.Context(), actor, userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"settlements": list,
		"user_id":     userID,
	})
}

// Calculate handles POST /settlements/{id}/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		h.respond(w)(h.Service.Calculate(r.Context(), actor, id))
	})(w, r)
}

// Update handles PATCH /settlements/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		var dto UpdateDTO
		if !h.DecodeJSON(w, r, &dto) {
			return
		}
		h.respond(w)(h.Service.Update(r.Context(), actor, id, dto))
	})(w, r)
}

// GetClearance handles GET /settlements/{id}/clearance
func (h *Handler) GetClearance(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		verdict, err := h.Service.GetClearanceStatus(r.Context(), actor, id)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, verdict)
	})(w, r)
}

// UpdateClearance handles PATCH /settlements/{id}/clearance
func (h *Handler) UpdateClearance(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		var dto ClearanceUpdateDTO
		if !h.DecodeJSON(w, r, &dto) {
			return
		}
		h.respond(w)(h.Service.UpdateClearance(r.Context(), actor, id, dto))
	})(w, r)
}

// Approve handles POST /settlements/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		h.respond(w)(h.Service.Approve(r.Context(), actor, id))
	})(w, r)
}

// GenerateDocuments handles POST /settlements/{id}/documents
func (h *Handler) GenerateDocuments(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		keys, err := h.Service.GenerateDocuments(r.Context(), actor, id)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"settlement_id": id,
			"documents":     keys,
		})
	})(w, r)
}

// Complete handles POST /settlements/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		h.respond(w)(h.Service.Complete(r.Context(), actor, id))
	})(w, r)
}

// Cancel handles POST /settlements/{id}/cancel. The body is optional.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withID(func(w http.ResponseWriter, r *http.Request, actor Actor, id int64) {
		var dto CancelDTO
		if r.ContentLength > 0 && !h.DecodeJSON(w, r, &dto) {
			return
		}
		if err := h.Service.Cancel(r.Context(), actor, id, dto); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"settlement_id": id,
			"status":        StatusCancelled,
		})
	})(w, r)
}

func (h *Handler) respond(w http.ResponseWriter) func(*Settlement, error) {
	return func(st *Settlement, err error) {
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, st)
	}
}
