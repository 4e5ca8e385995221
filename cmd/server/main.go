package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/krakend/docsite-search/internal/api"
	"github.com/krakend/docsite-search/internal/config"
	"github.com/krakend/docsite-search/internal/content"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	service, err := cfg.OpenService()
	if err != nil {
		log.Fatalf("Failed to open %s search service: %v", cfg.Backend, err)
	}
	defer service.Close()

	registry, err := content.LoadRegistry(os.DirFS(cfg.ContentDir), content.DefaultSections)
	if err != nil {
		log.Fatalf("Failed to load content: %v", err)
	}

	router := gin.Default()
	api.SetupRoutes(router, api.NewAPI(service, cfg.Collection, registry))

	log.Printf("✓ Search API listening on %s (collection %s, %s backend)", cfg.HTTPAddr, cfg.Collection, cfg.Backend)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Printf("Server error: %v", err)
	}
}
