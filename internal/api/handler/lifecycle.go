package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/service"
)

// LifecycleHandler exposes dataset, config, and generation lifecycle
// operations over HTTP.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
}

// NewLifecycleHandler creates a new lifecycle handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle}
}

type createDatasetRequest struct {
	Name    string `json:"name" binding:"required"`
	Version string `json:"version" binding:"required"`
}

// CreateDataset handles POST /api/v1/datasets
func (h *LifecycleHandler) CreateDataset(c *gin.Context) {
	var req createDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dataset, err := h.lifecycle.CreateDataset(c.Request.Context(), req.Name, req.Version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dataset)
}

type registerConfigRequest struct {
	ModelName    string `json:"model_name" binding:"required"`
	ChunkSize    int    `json:"chunk_size" binding:"required"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// RegisterConfig handles POST /api/v1/configs
func (h *LifecycleHandler) RegisterConfig(c *gin.Context) {
	var req registerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.lifecycle.RegisterEmbeddingConfig(c.Request.Context(), req.ModelName, req.ChunkSize, req.ChunkOverlap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetConfig handles GET /api/v1/configs/:id
func (h *LifecycleHandler) GetConfig(c *gin.Context) {
	cfg, err := h.lifecycle.GetEmbeddingConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "embedding config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type createGenerationRequest struct {
	DatasetID string `json:"dataset_id" binding:"required"`
	ConfigID  string `json:"config_id" binding:"required"`
}

// CreateGeneration handles POST /api/v1/generations
func (h *LifecycleHandler) CreateGeneration(c *gin.Context) {
	var req createGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gen, err := h.lifecycle.CreateIndexGeneration(c.Request.Context(), req.DatasetID, req.ConfigID)
	if err != nil {
		if errors.Is(err, domain.ErrDatasetNotFound) || errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gen)
}

// GetGeneration handles GET /api/v1/generations/:id
func (h *LifecycleHandler) GetGeneration(c *gin.Context) {
	gen, err := h.lifecycle.GetIndexGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrGenerationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gen)
}

type promoteRequest struct {
	Status string `json:"status" binding:"required"`
}

// Promote handles POST /api/v1/generations/:id/promote
func (h *LifecycleHandler) Promote(c *gin.Context) {
	var req promoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := domain.ParseLifecycleState(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gen, err := h.lifecycle.PromoteIndex(c.Request.Context(), c.Param("id"), target)
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
	c.JSON(http.StatusOK, gen)
}

// ListGenerations handles GET /api/v1/datasets/:id/generations
func (h *LifecycleHandler) ListGenerations(c *gin.Context) {
	gens, err := h.lifecycle.ListGenerations(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generations": gens,
		"total":       len(gens),
	})
}

// GetProduction handles GET /api/v1/production/:name
// A dataset name with nothing in production returns 200 with a null
// generation, not 404: an empty production slot is a valid state.
func (h *LifecycleHandler) GetProduction(c *gin.Context) {
	gen, err := h.lifecycle.GetProductionIndex(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation": gen})
}
