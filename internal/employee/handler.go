package employee

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/auth"
	"github.com/frahmantamala/hr-ops/internal/transport"
	"github.com/frahmantamala/hr-ops/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
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

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetCurrentUser: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.respond(w, r, user.ID)
}

// GetEmployee handles GET /employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	h.respond(w, r, id)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, id int64) {
	e, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			h.HandleServiceError(w, errors.NewNotFoundError(fmt.Sprintf("employee %d not found", id), errors.ErrCodeEmployeeNotFound))
			return
		}
		h.Logger.Error("failed to load employee", "employee_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, e)
}
