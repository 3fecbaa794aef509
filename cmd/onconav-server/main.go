package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onconav/onconav/internal/config"
	"github.com/onconav/onconav/internal/domain/alert"
	"github.com/onconav/onconav/internal/domain/analytics"
	"github.com/onconav/onconav/internal/domain/navigation"
	"github.com/onconav/onconav/internal/domain/patient"
	"github.com/onconav/onconav/internal/platform/auth"
	"github.com/onconav/onconav/internal/platform/db"
	"github.com/onconav/onconav/internal/platform/middleware"
	"github.com/onconav/onconav/internal/platform/notification"
	"github.com/onconav/onconav/internal/platform/scheduler"
	"github.com/onconav/onconav/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "onconav-server",
		Short: "Oncology care navigation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(initStepsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the navigation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created and migrated successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

// sweepCmd runs the overdue detection pass once, outside the daily schedule.
func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the overdue step sweep across all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			navSvc, _, _, _ := buildServices(pool, cfg, logger, nil, nil)

			sweepTenant := func(ctx context.Context, tenantID string) error {
				return db.WithTenant(ctx, pool, tenantID, func(ctx context.Context) error {
					result, err := navSvc.CheckOverdueSteps(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("tenant %s: checked=%d overdue=%d alerts=%d\n",
						tenantID, result.Checked, result.MarkedOverdue, result.AlertsCreated)
					return nil
				})
			}

			if tenant != "" {
				return sweepTenant(ctx, tenant)
			}

			sched := scheduler.New(0, cfg.SweepConcurrency, func(ctx context.Context) ([]string, error) {
				return db.ListTenants(ctx, pool)
			}, sweepTenant, logger)
			swept, failed := sched.RunOnce(ctx)
			fmt.Printf("sweep finished: %d tenant(s) swept, %d failed\n", swept, failed)
			if failed > 0 {
				return fmt.Errorf("%d tenant sweep(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Sweep a single tenant instead of all")
	return cmd
}

// initStepsCmd backfills navigation steps for patients that have none.
func initStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-steps",
		Short: "Initialize navigation steps for all patients without them",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			if tenant == "" {
				return fmt.Errorf("--tenant is required")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			navSvc, _, _, _ := buildServices(pool, cfg, logger, nil, nil)

			return db.WithTenant(ctx, pool, tenant, func(ctx context.Context) error {
				result, err := navSvc.InitializeAllPatientsSteps(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("initialized=%d skipped=%d errors=%d\n",
					result.Initialized, result.Skipped, len(result.Errors))
				for _, e := range result.Errors {
					fmt.Println("  error:", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant to initialize")
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildServices wires the domain services onto a connection pool. Events and
// notifier may be nil for CLI commands that run without a server.
func buildServices(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, events websocket.EventPublisher, notifier alert.CriticalNotifier) (*navigation.Service, *alert.Service, *patient.Service, *analytics.Service) {
	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo)

	alertRepo := alert.NewRepoPG(pool)
	alertSvc := alert.NewService(alertRepo, patientRepo, events, notifier, logger)

	stepRepo := navigation.NewStepRepoPG(pool)
	navSvc := navigation.NewService(stepRepo, patient.NewNavigationSource(patientRepo), alertSvc, logger, cfg.CriticalOverdueDays)

	analyticsRepo := analytics.NewRepoPG(pool)
	analyticsSvc := analytics.NewService(analyticsRepo, nil, analytics.Config{
		CriticalOverdueDays:  cfg.CriticalOverdueDays,
		DueSoonDays:          cfg.DueSoonDays,
		BottleneckSharePct:   cfg.BottleneckSharePercent,
		BottleneckTimeFactor: cfg.BottleneckTimeFactor,
	}, logger)

	return navSvc, alertSvc, patientSvc, analyticsSvc
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthJWTSecret),
		}))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Websocket hub for real-time alert events
	hub := websocket.NewHub()
	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(apiV1)

	// Notification delivery for critical alerts
	tplEngine := notification.NewTemplateEngine()
	notifyMgr := notification.NewNotificationManager(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		tplEngine,
	)
	notifyHandler := notification.NewNotificationHandler(notifyMgr)
	notifyHandler.RegisterRoutes(apiV1.Group("", auth.RequireRole("admin", "navigator")))
	notifier := notification.NewCriticalAlertNotifier(notifyMgr, nil, logger)

	// Domain wiring
	navSvc, alertSvc, patientSvc, analyticsSvc := buildServices(pool, cfg, logger, hub, notifier)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	navigation.NewHandler(navSvc).RegisterRoutes(apiV1)
	analytics.NewHandler(analyticsSvc).RegisterRoutes(apiV1)

	// Daily sweep scheduler
	var sched *scheduler.Scheduler
	if cfg.SweepEnabled {
		sched = scheduler.New(cfg.SweepHour, cfg.SweepConcurrency, func(ctx context.Context) ([]string, error) {
			return db.ListTenants(ctx, pool)
		}, func(ctx context.Context, tenantID string) error {
			return db.WithTenant(ctx, pool, tenantID, func(ctx context.Context) error {
				_, err := navSvc.CheckOverdueSteps(ctx)
				return err
			})
		}, logger)
		schedCtx, schedCancel := context.WithCancel(ctx)
		defer schedCancel()
		sched.Start(schedCtx)
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
