package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/lecture-notebook/internal/auth"
	"github.com/codebuildervaibhav/lecture-notebook/internal/cleanup"
	"github.com/codebuildervaibhav/lecture-notebook/internal/config"
	"github.com/codebuildervaibhav/lecture-notebook/internal/handlers"
	"github.com/codebuildervaibhav/lecture-notebook/internal/logger"
	"github.com/codebuildervaibhav/lecture-notebook/internal/openai"
	"github.com/codebuildervaibhav/lecture-notebook/internal/queue"
	"github.com/codebuildervaibhav/lecture-notebook/internal/quota"
	"github.com/codebuildervaibhav/lecture-notebook/internal/storage"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := cleanup.EnsureDirExists(cfg.Storage.BlobDir); err != nil {
		zlog.Fatalw("failed to create staging directory", "error", err)
	}

	store, err := storage.NewStore(cfg.Storage.Database)
	if err != nil {
		zlog.Fatalw("failed to initialize database", "error", err)
	}
	defer store.Close()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		zlog.Fatalw("failed to initialize blob store", "error", err)
	}
	zlog.Infow("blob store ready", "backend", cfg.Storage.BlobBackend)

	aiClient, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		zlog.Fatalw("failed to initialize OpenAI client", "error", err)
	}

	guard := quota.NewGuard(store, cfg.Limits, cfg.Auth)
	resolver := auth.NewResolver(store, cfg.Auth.IdentityHeader)

	pool := queue.NewWorkerPool(cfg.Workers.Count, aiClient, aiClient, blobs, store, zlog)
	pool.Start()

	scheduler := cleanup.NewScheduler(
		cfg.Storage.BlobDir, store,
		cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, zlog)
	scheduler.Start()

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxFileSizeBytes()) + 1024*1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + cfg.Auth.IdentityHeader,
	}))

	uploadHandler := handlers.NewUploadHandler(cfg, store, blobs, guard, resolver, pool, zlog)
	notebookHandler := handlers.NewNotebookHandler(store, zlog)
	watchHandler := handlers.NewWatchHandler(store, zlog)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	app.Post("/recordings", uploadHandler.Handle)
	app.Get("/notebooks/:id", notebookHandler.Handle)
	app.Get("/ws/notebooks/:id", websocket.New(watchHandler.Handle))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	zlog.Infow("server starting", "addr", addr)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		zlog.Info("shutting down gracefully")
		if err := app.Shutdown(); err != nil {
			zlog.Errorw("server shutdown error", "error", err)
		}
	}()

	if err := app.Listen(addr); err != nil {
		zlog.Fatalw("server failed", "error", err)
	}

	// Intake is closed; finish accepted work before exiting.
	scheduler.Stop()
	pool.Stop()
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.BlobBackend == "gdrive" {
		return storage.NewDriveBlobStore(
			cfg.Storage.GoogleDrive.CredentialsFile,
			cfg.Storage.GoogleDrive.TokenFile,
			cfg.Storage.GoogleDrive.FolderName,
		)
	}
	return storage.NewLocalBlobStore(cfg.Storage.BlobDir)
}
