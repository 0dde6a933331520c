package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"credit-engine/internal/config"
	"credit-engine/internal/database"
	"credit-engine/internal/handlers"
	"credit-engine/internal/ingest"
	"credit-engine/internal/storage"
)

func main() {
	// Load .env file if present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := config.Load()

	log.Printf("Configuration:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  Database: %s@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	log.Printf("  Feature refresh URL: %s", cfg.FeatureRefreshURL)
	log.Printf("  Ingest workers: %d", cfg.IngestWorkers)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store := storage.NewStore(db)
	refresher := storage.NewHTTPFeatureRefresher(cfg.FeatureRefreshURL, cfg.FeatureRefreshKey)

	// With a Drive API key the pipeline reads from Google Drive; without one
	// it falls back to a local directory of file drops.
	var files ingest.FileStore
	if cfg.DriveAPIKey != "" {
		log.Printf("File source: Google Drive at %s", cfg.DriveBaseURL)
		files = ingest.NewDriveClient(cfg.DriveBaseURL, cfg.DriveAPIKey)
	} else {
		log.Printf("File source: local folder root %s", cfg.LocalFolderRoot)
		files = ingest.NewLocalFolder(cfg.LocalFolderRoot)
	}

	ingestSvc := ingest.NewService(files, store, refresher, ingest.Config{
		Workers:         cfg.IngestWorkers,
		DownloadTimeout: cfg.DownloadTimeout,
		UpsertTimeout:   cfg.UpsertTimeout,
	})

	api := handlers.NewAPI(ingestSvc)

	router := gin.Default()
	api.RegisterRoutes(router)

	listenAddr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting credit engine on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
