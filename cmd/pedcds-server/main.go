package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pedcds/pedcds/internal/config"
	"github.com/pedcds/pedcds/internal/domain/guideline"
	"github.com/pedcds/pedcds/internal/domain/profile"
	"github.com/pedcds/pedcds/internal/domain/terminology"
	"github.com/pedcds/pedcds/internal/platform/auth"
	"github.com/pedcds/pedcds/internal/platform/db"
	"github.com/pedcds/pedcds/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pedcds-server",
		Short: "Pediatric clinical decision support API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(evaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// evaluateCmd runs one extraction + evaluation from files and prints the
// matches as JSON. Useful for testing rule sets without a server. The
// terminology store is used when a database is reachable, otherwise
// extraction degrades to token-only features.
func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a rule set against observations from files",
		RunE: func(cmd *cobra.Command, args []string) error {
			obsPath, _ := cmd.Flags().GetString("observations")
			rsPath, _ := cmd.Flags().GetString("ruleset")
			if obsPath == "" || rsPath == "" {
				return fmt.Errorf("--observations and --ruleset are required")
			}

			obsData, err := os.ReadFile(obsPath)
			if err != nil {
				return fmt.Errorf("read observations: %w", err)
			}
			rsData, err := os.ReadFile(rsPath)
			if err != nil {
				return fmt.Errorf("read rule set: %w", err)
			}

			var in profile.Input
			if err := json.Unmarshal(obsData, &in); err != nil {
				return fmt.Errorf("parse observations: %w", err)
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			ctx := context.Background()

			var resolver profile.ConceptResolver
			if cfg, err := config.Load(); err == nil {
				if pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns); err == nil {
					defer pool.Close()
					resolver = terminology.NewStore(ctx, terminology.NewRepoPG(pool), logger)
				} else {
					logger.Warn().Err(err).Msg("database unreachable, extracting without terminology")
				}
			}

			extractor := profile.NewExtractor(resolver, logger, profile.ExtractOptions{})
			p, err := extractor.BuildProfile(ctx, in)
			if err != nil {
				return err
			}

			engine := guideline.NewEngine(logger)
			matches := engine.Evaluate(p, rsData)

			out, err := json.MarshalIndent(map[string]interface{}{
				"matches": matches,
				"profile": p,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("observations", "", "Path to observations JSON")
	cmd.Flags().String("ruleset", "", "Path to rule set JSON")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Domain wiring
	store := terminology.NewStore(ctx, terminology.NewRepoPG(pool), logger)
	extractor := profile.NewExtractor(store, logger, profile.ExtractOptions{
		ExpandAncestors:     cfg.ExpandAncestors,
		MaxAncestorFeatures: cfg.MaxAncestorFeatures,
		AncestorMaxDepth:    cfg.AncestorMaxDepth,
	})
	engine := guideline.NewEngine(logger)
	guidelineSvc := guideline.NewService(guideline.NewRepoPG(pool), engine, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":               "ok",
			"version":              "0.1.0",
			"terminology_disabled": store.Disabled(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API routes
	apiV1 := e.Group("/api/v1")
	admin := apiV1.Group("", auth.RequireRole("admin"))

	terminology.NewHandler(store).RegisterRoutes(apiV1)
	profile.NewHandler(extractor).RegisterRoutes(apiV1)
	guideline.NewHandler(guidelineSvc, extractor).RegisterRoutes(apiV1, admin)

	// Start server with graceful shutdown
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
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
