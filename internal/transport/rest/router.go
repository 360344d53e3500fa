package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/hr-ops/internal/auth"
	"github.com/frahmantamala/hr-ops/internal/employee"
	"github.com/frahmantamala/hr-ops/internal/expense"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/frahmantamala/hr-ops/internal/transport/middleware"
	"github.com/frahmantamala/hr-ops/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	RBAC       *auth.RBACAuthorization
	Employee   *employee.Handler
	Expense    *expense.Handler
	Settlement *settlement.Handler
}

type Options struct {
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	LoginRateLimit  int
	LoginRateWindow time.Duration
	OpenAPISpec     []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}
	if opts.LoginRateWindow <= 0 {
		opts.LoginRateWindow = time.Minute
	}

	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(chiMiddleware.Timeout(opts.RequestTimeout))

	if len(opts.OpenAPISpec) > 0 {
		router.Get(swagger.SpecPath, swagger.SpecHandler(opts.OpenAPISpec))
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Check)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.With(httprate.Limit(opts.LoginRateLimit, opts.LoginRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			)).Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Employee != nil {
				pr.Get("/users/me", h.Employee.GetCurrentUser)
				pr.With(h.RBAC.RequireManageSettlements()).Get("/employees/{id}", h.Employee.GetEmployee)
			}

			if h.Expense != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.Post("/", h.Expense.CreateExpense)
					er.Get("/", h.Expense.GetExpenses)
					er.Get("/{id}", h.Expense.GetExpense)
					er.With(h.RBAC.RequireApproveExpense()).Patch("/{id}/approve", h.Expense.ApproveExpense)
					er.With(h.RBAC.RequireRejectExpense()).Patch("/{id}/reject", h.Expense.RejectExpense)
				})
			}

			if h.Settlement != nil {
				pr.Route("/settlements", func(sr chi.Router) {
					// Read routes check ownership in the service.
					sr.Get("/me", h.Settlement.ListMine)
					sr.Get("/users/{userID}", h.Settlement.ListByUser)
					sr.Get("/{id}", h.Settlement.Get)
					sr.Get("/{id}/clearance", h.Settlement.GetClearance)

					sr.Group(func(mr chi.Router) {
						mr.Use(h.RBAC.RequireManageSettlements())
						mr.Post("/", h.Settlement.Initiate)
						mr.Patch("/{id}", h.Settlement.Update)
						mr.Post("/{id}/calculate", h.Settlement.Calculate)
						mr.Patch("/{id}/clearance", h.Settlement.UpdateClearance)
						mr.Post("/{id}/documents", h.Settlement.GenerateDocuments)
						mr.Post("/{id}/cancel", h.Settlement.Cancel)
					})

					sr.Group(func(ar chi.Router) {
						ar.Use(h.RBAC.RequireApproveSettlements())
						ar.Post("/{id}/approve", h.Settlement.Approve)
						ar.Post("/{id}/complete", h.Settlement.Complete)
					})
				})
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"NOT_FOUND","code":"ROUTE_NOT_FOUND","message":"route not found"}}`))
	})
}
