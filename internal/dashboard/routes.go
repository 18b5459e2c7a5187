package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/scheduler"
	"github.com/avolkmer/chaser/internal/sla"
	"github.com/avolkmer/chaser/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up the JSON API on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/stats", handleStats(opts.DB))
	router.GET("/api/sla", handleSLA(opts.DB, opts.WindowDays))
	router.GET("/api/schedules", handleSchedules(opts.DB))
	router.GET("/api/requests/:id/audit", handleAudit(opts.DB))
	if opts.Processor != nil {
		router.POST("/api/process", handleProcess(opts.Processor))
	}
}

func handleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats(db, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleSLA(db *gorm.DB, defaultWindow int) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := defaultWindow
		if raw := c.Query("window_days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "window_days must be a positive integer"})
				return
			}
			window = n
		}
		snap, err := sla.Compute(db, window, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func handleSchedules(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := store.ListFilters{
			Status:    models.ScheduleStatus(c.Query("status")),
			RequestID: c.Query("request_id"),
			Limit:     200,
		}
		scheds, err := store.List(db, filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, scheds)
	}
}

func handleAudit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := store.AuditForRequest(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// handleProcess triggers a processing cycle. ?all=1 processes every pending
// schedule regardless of due time. Safe to call while the daemon is running;
// the claim protocol keeps the runs from overlapping on any single item.
func handleProcess(p *scheduler.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			result *scheduler.BatchResult
			err    error
		)
		if c.Query("all") == "1" {
			result, err = p.ProcessAll(c.Request.Context())
		} else {
			result, err = p.ProcessDue(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
