package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/models/reports"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"bitbucket.org/mmdatafocus/stockcount_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("stockcount-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

type NewSubmissionRow struct {
	ItemId       int   `json:"item_id" binding:"required,gt=0"`
	Qty          int64 `json:"qty" binding:"gte=0"`
	QtyOpenGrams int64 `json:"qty_open_grams" binding:"gte=0"`
	QtyTotalMl   int64 `json:"qty_total_ml" binding:"gte=0"`
}

type NewSubmissionBatch struct {
	SubmissionDate string             `json:"submission_date" binding:"required"`
	Rows           []NewSubmissionRow `json:"rows" binding:"required,min=1,dive"`
}

type RebuildRequest struct {
	MaxItems       int  `json:"max_items"`
	MaxRowsScanned int  `json:"max_rows_scanned"`
	DryRun         bool `json:"dry_run"`
}

type BackfillRequest struct {
	MaxMissing     int  `json:"max_missing"`
	MaxRowsScanned int  `json:"max_rows_scanned"`
	DryRun         bool `json:"dry_run"`
}

func parseLocationId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location id"})
		return 0, false
	}
	return id, true
}

func toSubmissionRows(batch *NewSubmissionBatch) ([]*models.InventorySubmission, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(batch.SubmissionDate))
	if err != nil {
		return nil, fmt.Errorf("invalid submission_date: %v", err)
	}
	rows := make([]*models.InventorySubmission, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		rows = append(rows, &models.InventorySubmission{
			ItemId:         r.ItemId,
			SubmissionDate: date,
			Qty:            r.Qty,
			QtyOpenGrams:   r.QtyOpenGrams,
			QtyTotalMl:     r.QtyTotalMl,
		})
	}
	return rows, nil
}

func itemIdsOf(rows []*models.InventorySubmission) []int {
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ItemId)
	}
	return ids
}

// submissionsHandler persists a counted batch, then best-effort syncs the
// ledger. A sync failure never fails the submission: the count history is
// the source of truth, so the response stays 200 and carries a warning.
func submissionsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		locationId, ok := parseLocationId(c)
		if !ok {
			return
		}
		var batch NewSubmissionBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		rows, err := toSubmissionRows(&batch)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB()
		if err := models.CreateSubmissionRows(db, locationId, rows); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		response := gin.H{"saved_rows": len(rows)}
		items, err := models.GetItemsByIds(db, itemIdsOf(rows))
		if err == nil {
			var result *workflow.SyncResult
			result, err = workflow.SyncLedger(db, logger, locationId, rows, items)
			if err == nil {
				response["sync"] = result
			}
		}
		if err != nil {
			config.LogError(logger, "server", "submissionsHandler", "ledger sync after save", locationId, err)
			response["warning"] = "submission saved but ledger sync failed: " + err.Error()
		}
		c.JSON(http.StatusOK, response)
	}
}

func syncHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		locationId, ok := parseLocationId(c)
		if !ok {
			return
		}
		var batch NewSubmissionBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		rows, err := toSubmissionRows(&batch)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB()
		items, err := models.GetItemsByIds(db, itemIdsOf(rows))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		result, err := workflow.SyncLedger(db, logger, locationId, rows, items)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func rebuildHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		locationId, ok := parseLocationId(c)
		if !ok {
			return
		}
		var req RebuildRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := workflow.RebuildLedger(c.Request.Context(), config.GetDB(), logger, locationId, req.MaxItems, req.MaxRowsScanned, req.DryRun)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func backfillHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		locationId, ok := parseLocationId(c)
		if !ok {
			return
		}
		var req BackfillRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := workflow.BackfillLedger(config.GetDB(), logger, locationId, req.MaxMissing, req.MaxRowsScanned, req.DryRun)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// comparisonHandler takes an uploaded gestionale xlsx, parses it, merges it
// with the internal latest-submission snapshot and returns the diff report
// as JSON or as a downloadable workbook (?format=xlsx).
func comparisonHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "stock_comparison")
		defer span.End()

		locationId, ok := parseLocationId(c)
		if !ok {
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing uploaded file"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()
		fileBytes, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		includeExternalOnly := !strings.EqualFold(c.Query("include_external_only"), "false")

		cacheKey := reports.ComparisonCacheKey(locationId, fileBytes)
		report, cached := reports.GetCachedComparison(cacheKey)
		if !cached {
			snapshot, err := models.GetLatestSubmissionSnapshot(config.GetDB().WithContext(ctx), locationId)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			report, err = reports.BuildComparisonReport(locationId, fileBytes, reports.InternalRowsFromSnapshot(snapshot), includeExternalOnly)
			if err != nil {
				config.LogError(logger, "server", "comparisonHandler", "building comparison", locationId, err)
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			reports.SetCachedComparison(cacheKey, report)
		}

		if strings.EqualFold(c.Query("format"), "xlsx") {
			f, err := reports.ExportComparisonXlsx(report)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Header("Content-Disposition", "attachment; filename=stock_comparison.xlsx")
			if err := f.Write(c.Writer); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
			}
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/locations/:id/submissions", submissionsHandler(logger))
	r.POST("/api/locations/:id/ledger/sync", syncHandler(logger))
	r.POST("/api/locations/:id/ledger/rebuild", rebuildHandler(logger))
	r.POST("/api/locations/:id/ledger/backfill", backfillHandler(logger))
	r.POST("/api/locations/:id/comparison", comparisonHandler(logger))
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"correlation_id": cid,
				"path":           c.Request.URL.Path,
			}).Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
