package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

// EnginePinger is the reachability check the probe needs from the search
// engine client. Implemented by repository.QdrantRepository.
type EnginePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports readiness: whether the metadata store and the search
// engine answer. A failing dependency turns the probe into a 503 so load
// balancers stop routing to this instance.
type HealthHandler struct {
	db     *gorm.DB
	engine EnginePinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *gorm.DB, engine EnginePinger) *HealthHandler {
	return &HealthHandler{db: db, engine: engine}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"database": "ok",
		"engine":   "ok",
	}
	healthy := true

	if err := h.pingDatabase(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.engine.Ping(ctx); err != nil {
		checks["engine"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
