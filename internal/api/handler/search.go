package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/service"
)

// SearchHandler exposes retrieval and index building over HTTP.
type SearchHandler struct {
	retrieval *service.RetrievalService
	indexer   *service.IndexerService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(retrieval *service.RetrievalService, indexer *service.IndexerService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval, indexer: indexer}
}

// Retrieve handles POST /api/v1/retrieve
func (h *SearchHandler) Retrieve(c *gin.Context) {
	var req service.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := service.ParseSearchMode(string(req.Mode))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Mode = mode

	resp, err := h.retrieval.Retrieve(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Build handles POST /api/v1/generations/:id/build
func (h *SearchHandler) Build(c *gin.Context) {
	stats, err := h.indexer.BuildGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrGenerationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":   stats.Documents,
		"chunks":      stats.Chunks,
		"failed":      stats.Failed,
		"duration_ms": stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	})
}

// Archive handles POST /api/v1/generations/:id/archive
func (h *SearchHandler) Archive(c *gin.Context) {
	err := h.indexer.ArchiveGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGenerationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		case errors.Is(err, domain.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}
