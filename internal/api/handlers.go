// Package api serves the search box of the documentation site over HTTP.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/krakend/docsite-search/internal/retrieval"
	"github.com/krakend/docsite-search/internal/search"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

const maxFetchLimit = 10

// API holds the dependencies of the HTTP handlers
type API struct {
	searcher   search.Searcher
	collection string
	fetcher    *retrieval.Fetcher
}

// NewAPI creates the handlers for collection
func NewAPI(searcher search.Searcher, collection string, pages retrieval.PageResolver) *API {
	return &API{
		searcher:   searcher,
		collection: collection,
		fetcher: &retrieval.Fetcher{
			Searcher:   searcher,
			Collection: collection,
			Pages:      pages,
		},
	}
}

// SetupRoutes registers the health and search routes
func SetupRoutes(router *gin.Engine, api *API) {
	router.Use(RequestIDMiddleware(), CORSMiddleware())

	router.GET("/health", api.HealthCheckHandler)

	searchRoutes := router.Group("/api/search")
	{
		searchRoutes.GET("", api.SearchHandler)           // Grouped results for the search box
		searchRoutes.GET("/fetch", api.SearchFetchHandler) // Full page text for AI context
	}
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "docsite-search",
		"collection": api.collection,
		"timestamp":  fmt.Sprintf("%d", time.Now().Unix()),
	})
}

// SearchResponse is the body of a successful search
type SearchResponse struct {
	Query   string                 `json:"query"`
	Tag     string                 `json:"tag,omitempty"`
	Results []search.GroupedResult `json:"results"`
}

// SearchHandler returns grouped results. An empty query lists pages.
//
// Query Params: query, tag
func (api *API) SearchHandler(c *gin.Context) {
	query := c.Query("query")
	tag := c.Query("tag")

	results, err := search.SearchDocs(c.Request.Context(), api.searcher, api.collection, query, tag)
	if err != nil {
		log.Printf("Search %q failed: %v", query, err)
		if errors.Is(err, searchsvc.ErrCollectionNotFound) {
			SendError(c, http.StatusServiceUnavailable, ErrorCodeNotFound, "Search index is not available")
			return
		}
		SendError(c, http.StatusBadGateway, ErrorCodeSearchFailed, "Search service request failed")
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Query: query, Tag: tag, Results: results})
}

// SearchFetchHandler returns the text of the best matching pages with citations.
// Failures are reported in the text, never as an error status.
//
// Query Params: query, limit (default 3, capped at 10)
func (api *API) SearchFetchHandler(c *gin.Context) {
	limit := retrieval.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxFetchLimit)
		}
	}

	c.JSON(http.StatusOK, api.fetcher.SearchAndFetch(c.Request.Context(), c.Query("query"), limit))
}
