package expense

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/hr-ops/internal/auth"
	"github.com/frahmantamala/hr-ops/internal/transport"
	"github.com/frahmantamala/hr-ops/pkg/logger"
)

type ServiceAPI interface {
	CreateExpense(ctx context.Context, userID int64, dto CreateExpenseDTO) (*Expense, error)
	GetExpenseByID(ctx context.Context, id, userID int64, userPermissions []string) (*Expense, error)
	GetUserExpenses(ctx context.Context, userID int64, limit, offset int) ([]*Expense, error)
	GetAllExpenses(ctx context.Context, limit, offset int, userPermissions []string) ([]*Expense, error)
	ApproveExpense(ctx context.Context, expenseID, managerID int64, userPermissions []string) error
	RejectExpense(ctx context.Context, expenseID, managerID int64, reason string, userPermissions []string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("user not found in context", "path", r.URL.Path)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var dto CreateExpenseDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	expense, err := h.Service.CreateExpense(r.Context(), user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, expense)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	expenseID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	expense, err := h.Service.GetExpenseByID(r.Context(), expenseID, user.ID, user.Permissions)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, expense)
}

// GetExpenses lists every expense for managers and the caller's own otherwise.
func (h *Handler) GetExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	var (
		expenses []*Expense
		err      error
	)
	if hasManagerPermissions(user.Permissions) {
		expenses, err = h.Service.GetAllExpenses(r.Context(), limit, offset, user.Permissions)
	} else {
		expenses, err = h.Service.GetUserExpenses(r.Context(), user.ID, limit, offset)
	}
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	expenseID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.ApproveExpense(r.Context(), expenseID, user.ID, user.Permissions); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": ExpenseStatusApproved})
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	expenseID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto RejectExpenseDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.RejectExpense(r.Context(), expenseID, user.ID, dto.Reason, user.Permissions); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": ExpenseStatusRejected})
}
