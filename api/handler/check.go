package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/smokecheck/cache"
	"github.com/use-agent/smokecheck/checker"
	"github.com/use-agent/smokecheck/models"
)

// Runner runs a single smoke check.
type Runner interface {
	Run(ctx context.Context, t checker.Target) (*models.CheckReport, error)
}

// Check returns a handler for POST /api/v1/check.
//
// Flow:
//  1. Bind the request and merge it over the default target.
//  2. Serve from cache when max_age allows.
//  3. Wait for a check slot (bounded by the request context).
//  4. Run the check, cache the report, map the outcome to a status code.
func Check(runner Runner, defaults checker.Target, cc *cache.Cache, slots *Slots) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.CheckRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
				return
			}
		}
		target := defaults.WithRequest(&req)

		// ── 2. Cache lookup ────────────────────────────────────────
		var cacheKey string
		if cc != nil && req.MaxAge > 0 {
			cacheKey = cache.Key(target.URL, target.Pattern, target.Mode, target.ReadySelector, target.Headers)
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				c.JSON(statusFor(cached), cached)
				return
			}
		}

		// ── 3. Slot ─────────────────────────────────────────────────
		if err := slots.Acquire(c.Request.Context()); err != nil {
			abortWithError(c, http.StatusServiceUnavailable, models.ErrCodeServerBusy,
				"no check slot became free before the request ended")
			return
		}
		defer slots.Release()

		// ── 4. Run ──────────────────────────────────────────────────
		ran, _ := runner.Run(c.Request.Context(), target)

		// The checker's notifier may still hold ran; respond with a copy.
		report := *ran
		if cacheKey != "" {
			cc.Set(cacheKey, &report)
			report.CacheStatus = "miss"
		}

		c.JSON(statusFor(&report), &report)
	}
}

// statusFor maps a report's outcome to an HTTP status code.
func statusFor(r *models.CheckReport) int {
	if r.Passed {
		return http.StatusOK
	}
	code := models.ErrCodeInternal
	if r.Error != nil {
		code = r.Error.Code
	}
	switch code {
	case models.ErrCodeTitleMismatch:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeUnreachable:
		return http.StatusBadGateway // 502
	case models.ErrCodeLoadTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeBrowserLaunch, models.ErrCodeServerBusy:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: message},
	})
}
