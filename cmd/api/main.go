package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/printsafeai/printsafe-api/internal/application"
	appai "github.com/printsafeai/printsafe-api/internal/application/ai"
	appanalysis "github.com/printsafeai/printsafe-api/internal/application/analysis"
	"github.com/printsafeai/printsafe-api/internal/config"
	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	openaiclient "github.com/printsafeai/printsafe-api/internal/infra/ai/openai"
	mysqlp "github.com/printsafeai/printsafe-api/internal/infra/db/mysql"
	postgresp "github.com/printsafeai/printsafe-api/internal/infra/db/postgres"
	"github.com/printsafeai/printsafe-api/internal/infra/httpserver"
	"github.com/printsafeai/printsafe-api/internal/infra/storage"
	"github.com/printsafeai/printsafe-api/internal/infra/vision"
	"github.com/printsafeai/printsafe-api/internal/middleware"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// load classifier; the model is held for the lifetime of the process
	classifier, err := vision.NewClassifier(cfg.Model.Path, cfg.Model.MetadataPath, cfg.Model.Library)
	if err != nil {
		log.Fatalf("model load error: %v", err)
	}
	defer classifier.Close()
	log.Printf("model loaded: %s classes=%v", cfg.Model.Path, classifier.Metadata.Classes)

	// image copy storage
	var images domain.ImageStore
	switch cfg.Storage.Backend {
	case "minio":
		images, err = storage.NewMinio(ctx,
			cfg.Storage.Minio.Endpoint,
			cfg.Storage.Minio.Region,
			cfg.Storage.Minio.BucketName,
			cfg.Storage.Minio.AccessKey,
			cfg.Storage.Minio.SecretKey,
			cfg.Storage.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
	default:
		images = storage.NewLocal(cfg.Storage.Dir)
	}

	// record store; unreachable or unconfigured DB degrades the service
	// instead of killing it, image analysis has no store dependency
	checkers := map[string]middleware.HealthChecker{
		"model": &middleware.ModelHealthChecker{Loaded: true},
	}
	var store domain.Store
	if !cfg.DatabaseConfigured() {
		log.Printf("store disabled: %v: no connection string (set MYSQL_URL or the database block)", domain.ErrConfig)
	} else {
		switch cfg.Database.Driver {
		case "postgres":
			db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
			if err != nil {
				log.Printf("postgres connect error, continuing degraded: %v", err)
			} else {
				defer db.Close()
				store = postgresp.NewStore(db, images)
				checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
			}
		default:
			db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
			if err != nil {
				log.Printf("mysql connect error, continuing degraded: %v", err)
			} else {
				defer db.Close()
				store = mysqlp.NewStore(db, images)
				checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
			}
		}
	}

	svc := &appanalysis.Service{
		Decoder:    vision.ImageDecoder{},
		Classifier: classifier,
		Store:      store,
		Clock:      application.SystemClock{},
	}

	var aiSvc *appai.Service
	if cfg.AI.APIKey != "" {
		aiSvc = appai.NewService(openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model))
		log.Printf("ai review enabled: model=%s", cfg.AI.Model)
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(30, 2))
	mux.Mount("/", httpserver.NewRouter(svc, aiSvc, middleware.HealthHandler(checkers)))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
