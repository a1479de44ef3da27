package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/genposting/configs"
	"github.com/maheshrc27/genposting/internal/api/handlers"
	"github.com/maheshrc27/genposting/internal/api/middleware"
	job "github.com/maheshrc27/genposting/internal/jobs"
	"github.com/maheshrc27/genposting/internal/metrics"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/queue"
	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/maheshrc27/genposting/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *sql.DB
	historyRepo := repository.NewMemoryPostingHistoryRepository()
	if cfg.PostgresURI != "" {
		db = openDB(ctx, cfg.PostgresURI)
		historyRepo = repository.NewPostingHistoryRepository(db)
	} else {
		log.Println("POSTGRES_URI not set, posting history is kept in memory")
	}

	postRepo := repository.NewPostRepository()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	sealer := service.NewCredentialSealer(cfg.SecretKey)

	var mediaStore service.MediaStore
	r2Service, err := service.NewR2Service(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to set up R2: %v", err)
	}
	if r2Service.Enabled() {
		mediaStore = r2Service
	} else {
		log.Println("R2 is not configured, media uploads are disabled")
	}

	postService := service.NewPostService(postRepo, historyRepo, mediaStore, sealer)
	instagramService := service.NewInstagramService(*cfg, httpClient)
	linkedInService := service.NewLinkedInService(*cfg, httpClient)
	platformService := service.NewPlatformService(*cfg, httpClient, instagramService, linkedInService)

	sequencer := service.NewCommentSequencer(map[models.Platform]time.Duration{
		models.PlatformInstagram: cfg.Instagram.CommentPacing,
		models.PlatformLinkedIn:  cfg.LinkedIn.CommentPacing,
	})
	dispatcher := job.NewDispatchJob(
		postRepo,
		historyRepo,
		map[models.Platform]service.PlatformClient{
			models.PlatformInstagram: instagramService,
			models.PlatformLinkedIn:  linkedInService,
		},
		sequencer,
		sealer,
		cfg.DispatchInterval,
	)

	// queue
	var enqueuer queue.Enqueuer
	var asynqClient *asynq.Client
	var asynqServer *asynq.Server
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		enqueuer = asynqClient

		asynqServer = asynq.NewServer(redisConn, asynq.Config{Concurrency: 2})
		queueW := queue.NewQueue(dispatcher)
		go func() {
			log.Println("Starting the Asynq server...")
			if err := asynqServer.Run(queueW.NewServeMux()); err != nil {
				log.Printf("Asynq server stopped: %v", err)
			}
		}()
	} else {
		log.Println("REDIS_URI not set, relying on the dispatch interval only")
	}

	// cron jobs
	retentionJob := job.NewRetentionJob(postRepo, cfg.Retention)
	c := cron.New()
	if err := retentionJob.Schedule(c, "@every 01h00m00s"); err != nil {
		log.Fatalf("Failed to schedule retention job: %v", err)
	}
	c.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	if cfg.MetricsAddr != "" {
		metrics.StartServer(cfg.MetricsAddr)
	} else {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	platform := handlers.NewPlatformHandler(platformService)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, dispatcher, enqueuer, linkedInService)
	api.Post("/media", post.UploadMedia)
	api.Post("/linkedin/media", post.UploadLinkedInMedia)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/history", post.PostHistory)
	api.Post("/:platform/publish", post.PublishNow)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, cancel, dispatchDone, func() {
		c.Stop()
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
		if asynqClient != nil {
			asynqClient.Close()
		}
		if db != nil {
			closeDB(db)
		}
	})
}

func openDB(ctx context.Context, uri string) *sql.DB {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

// gracefulShutdown waits for SIGINT or SIGTERM, stops the dispatcher, waits
// for its current post to settle, then stops everything else.
func gracefulShutdown(app *fiber.App, stopDispatch context.CancelFunc, dispatchDone <-chan struct{}, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	stopDispatch()
	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}

	select {
	case <-dispatchDone:
	case <-time.After(30 * time.Second):
		log.Println("Dispatcher did not stop in time")
	}

	cleanup()
	log.Println("Server shutdown complete.")
}
