package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/smokecheck/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" when every check slot is taken.
func Health(slots *Slots, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if slots.Active() >= slots.Max() {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			ActiveChecks: slots.Active(),
			MaxChecks:    slots.Max(),
			Version:      Version,
		})
	}
}
