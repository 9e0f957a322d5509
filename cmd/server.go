package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/raffleport/relay/pkg/config"
	"github.com/raffleport/relay/pkg/errx"
	"github.com/raffleport/relay/pkg/logx"
	"github.com/raffleport/relay/pkg/relay/relayapi"
)

func main() {
	// 1. Load environment and logger
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logx.Warnf("Could not load .env file: %v", err)
	}
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))

	logx.Info("🚀 Starting Raffle Transaction Relay...")

	cfg := config.Load()
	if cfg.Chain.PrivateKey == "" {
		logx.Fatal("CHAIN_PRIVATE_KEY is required")
	}
	if cfg.Chain.ContractAddress == "" {
		logx.Fatal("CHAIN_CONTRACT_ADDRESS is required")
	}
	if cfg.Server.APIKey == "" {
		logx.Fatal("API_KEY is required")
	}

	// 2. Initialize Dependency Container
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 3. Background services (worker + monitor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.StartBackgroundServices(ctx)

	// 4. Create Fiber App
	app := fiber.New(fiber.Config{
		AppName:               "Raffle Transaction Relay",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// 5. Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, X-API-Key, X-Request-ID",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimit,
		Expiration: cfg.Server.RateLimitWindow,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// 6. Health Check
	app.Get("/health", healthCheckHandler(container))

	// 7. Relay Routes
	app.Use(relayapi.IPAllowlist(cfg.Server.AllowedIPs))
	container.API.RegisterRoutes(app, relayapi.APIKeyAuth(cfg.Server.APIKey))
	logx.Info("✓ Relay routes registered")

	// 8. 404 Handler
	app.Use(notFoundHandler)

	// 9. Start Server with Graceful Shutdown
	startServer(app, container, cancel)
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "raffle-relay",
			"version": getEnv("APP_VERSION", "1.0.0"),
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		if err := container.Chain.Ping(c.Context()); err != nil {
			health["chain"] = "unhealthy"
			health["chain_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["chain"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success":    false,
		"error":      "NOT_FOUND",
		"message":    "The requested endpoint does not exist",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler converts internal errors to standard HTTP responses.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get("X-Request-ID"),
	}).Errorf("Request error: %v", err)

	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"success":    false,
			"error":      "FIBER_ERROR",
			"message":    e.Message,
			"request_id": c.Get("X-Request-ID"),
		})
	}

	var coded *errx.Error
	if errx.As(err, &coded) {
		response := fiber.Map{
			"success":    false,
			"error":      coded.Code,
			"message":    coded.Message,
			"request_id": c.Get("X-Request-ID"),
		}
		if len(coded.Details) > 0 {
			response["details"] = coded.Details
		}
		return c.Status(coded.HTTPStatus).JSON(response)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success":    false,
		"error":      "INTERNAL_ERROR",
		"message":    "An unexpected error occurred",
		"request_id": c.Get("X-Request-ID"),
	})
}

// ============================================================================
// Utility Functions
// ============================================================================

// startServer starts the server and blocks until shutdown completes.
func startServer(app *fiber.App, container *Container, cancel context.CancelFunc) {
	port := container.Config.Server.Port

	go func() {
		logx.Info(strings.Repeat("=", 60))
		logx.Infof("🚀 Relay listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)
		logx.Infof("📊 Queue Health: http://localhost:%s/api/v1/queue/health", port)
		logx.Info(strings.Repeat("=", 60))

		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app, container, cancel)
}

// gracefulShutdown stops new traffic, then lets in-flight jobs drain.
func gracefulShutdown(app *fiber.App, container *Container, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(container.Config.Server.ShutdownTimeout); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop the worker after the HTTP surface so no new jobs arrive while
	// the in-flight one finishes its drain window.
	cancel()

	logx.Info("✅ Server exited successfully")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
