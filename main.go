package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/krakend/docsite-search/internal/config"
	"github.com/krakend/docsite-search/internal/content"
	"github.com/krakend/docsite-search/tools"
)

const (
	version     = "0.1.0"
	serverName  = "docsite-search"
	description = "MCP server for searching the documentation site"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	// MCP uses stdout for protocol
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", serverName, version)

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

	docs, err := tools.NewDocSearch(service, cfg.Collection, os.DirFS(cfg.ContentDir), content.DefaultSections)
	if err != nil {
		service.Close()
		log.Fatalf("Failed to initialize documentation search: %v", err)
	}
	defer func() {
		if err := docs.Close(); err != nil {
			log.Printf("Error closing doc search: %v", err)
		}
	}()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil, // Default options
	)
	tools.RegisterDocSearchTools(server, docs)
	log.Printf("✓ Server ready: %s (collection %s, %s backend)", description, cfg.Collection, cfg.Backend)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}
