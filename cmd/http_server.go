package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/hr-ops/api"
	"github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/auth"
	authPostgres "github.com/frahmantamala/hr-ops/internal/auth/postgres"
	"github.com/frahmantamala/hr-ops/internal/clearance"
	"github.com/frahmantamala/hr-ops/internal/core/events"
	"github.com/frahmantamala/hr-ops/internal/core/rules"
	rulesPostgres "github.com/frahmantamala/hr-ops/internal/core/rules/postgres"
	"github.com/frahmantamala/hr-ops/internal/documents"
	"github.com/frahmantamala/hr-ops/internal/employee"
	employeePostgres "github.com/frahmantamala/hr-ops/internal/employee/postgres"
	"github.com/frahmantamala/hr-ops/internal/expense"
	expensePostgres "github.com/frahmantamala/hr-ops/internal/expense/postgres"
	leavePostgres "github.com/frahmantamala/hr-ops/internal/leave/postgres"
	"github.com/frahmantamala/hr-ops/internal/payroll"
	payrollPostgres "github.com/frahmantamala/hr-ops/internal/payroll/postgres"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	settlementPostgres "github.com/frahmantamala/hr-ops/internal/settlement/postgres"
	"github.com/frahmantamala/hr-ops/internal/transport/rest"
	"github.com/frahmantamala/hr-ops/internal/transport/swagger"
	"github.com/frahmantamala/hr-ops/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	Handlers rest.Handlers
	Events   *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.Handlers, rest.Options{
		AllowedOrigins:  deps.Config.Server.Origins(),
		RequestTimeout:  deps.Config.Server.RequestTimeout,
		LoginRateLimit:  deps.Config.Server.LoginRateLimit,
		LoginRateWindow: deps.Config.Server.LoginRateWindow,
		OpenAPISpec:     api.OpenAPISpec,
	}, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.Events.Drain(ctx); err != nil {
			deps.Logger.Error("event delivery did not finish", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	if _, err := swagger.LoadSpec(context.Background(), api.OpenAPISpec); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	db, gormDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ruleProvider := rules.Chain{
		rulesPostgres.NewRuleSetRepository(gormDB),
		rules.NewStatic(config.SettlementRules),
	}
	if r, err := ruleProvider.Current(context.Background()); err != nil {
		lg.Warn("no settlement rules in force; settlement endpoints will return 503 until a rule set is published", "error", err)
	} else {
		lg.Info("settlement rules loaded", "version", r.Version)
	}

	bus := events.NewEventBus(lg)
	subscribeSettlementAudit(bus, lg)

	// auth
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), tokenGen, config.Security.BCryptCost, lg)

	// employees and expenses
	employeeRepo := employeePostgres.NewEmployeeRepository(gormDB)
	expenseRepo := expensePostgres.NewExpenseRepository(gormDB)

	// settlement
	engine := settlement.NewCalculationEngine(
		payroll.NewProrationService(payrollPostgres.NewPayrollRepository(gormDB), lg),
		leavePostgres.NewBalanceRepository(gormDB),
		expenseRepo,
	)
	settlementService := settlement.NewService(settlement.Dependencies{
		UnitOfWork: settlementPostgres.NewUnitOfWork(gormDB),
		Rules:      ruleProvider,
		Engine:     engine,
		Clearance:  settlement.NewClearanceChecker(clearance.NewSource(db)),
		Documents: documents.NewClient(documents.Config{
			BaseURL:        config.Documents.BaseURL,
			APIKey:         config.Documents.APIKey,
			RequestTimeout: config.Documents.RequestTimeout,
			MaxConcurrency: config.Documents.MaxConcurrency,
		}, lg),
		Events: bus,
		Logger: lg,
	})

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		Gorm:   gormDB,
		Events: bus,
		Router: chi.NewRouter(),
		Handlers: rest.Handlers{
			Health:     rest.NewHealthHandler(db, ruleProvider),
			Auth:       auth.NewHandler(authService),
			RBAC:       auth.NewRBACAuthorization(auth.NewPermissionChecker(), lg),
			Employee:   employee.NewHandler(employee.NewService(employeeRepo)),
			Expense:    expense.NewHandler(expense.NewService(expenseRepo, lg)),
			Settlement: settlement.NewHandler(settlementService),
		},
	}, nil
}

// subscribeSettlementAudit writes every settlement transition to the log.
func subscribeSettlementAudit(bus *events.EventBus, lg *slog.Logger) {
	bus.Subscribe(func(ctx context.Context, event events.Event) error {
		lg.InfoContext(ctx, "settlement audit",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}, events.SettlementEventTypes...)
}

// initDB opens one pgx pool and shares it between sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Open(driver, cfg.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := internal.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return dbConn, gormDB, nil
}
