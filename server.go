package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/middlewares"
	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"bitbucket.org/nrsdigital/fieldaudit_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

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
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var permissionErr *models.PermissionError
	var conflictErr *models.ConflictError
	var bulkConflictErr *models.BulkConflictError
	var quotaErr *models.QuotaExceededError
	var channelErr *models.MissingChannelError

	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &permissionErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":       err.Error(),
			"holder_id":   conflictErr.HolderId,
			"holder_name": conflictErr.HolderName,
		})
	case errors.As(err, &bulkConflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"conflicts": bulkConflictErr.Conflicts,
		})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     err.Error(),
			"target":    quotaErr.Target,
			"completed": quotaErr.Completed,
		})
	case errors.As(err, &channelErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

/* assignment handlers */

func assignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAssignment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		assignment, err := models.AssignStore(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, assignment)
	}
}

func bulkAssignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBulkAssignment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := models.BulkAssignStores(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func autoDistributeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAutoDistribution
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		counts, err := models.AutoDistributeStores(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assigned": counts})
	}
}

func listAssignmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, _ := strconv.Atoi(c.Query("analyst_id"))
		activeOnly := c.Query("active") != "false"
		assignments, err := models.GetAssignments(c.Request.Context(), analystId, activeOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, assignments)
	}
}

func getAssignmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		assignment, err := models.GetAssignment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, assignment)
	}
}

func unassignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		assignment, err := models.UnassignStore(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, assignment)
	}
}

func unassignAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := models.UnassignAllStores(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deactivated": count})
	}
}

/* quota handlers */

func getQuotaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var date time.Time
		if v := c.Query("date"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed
		}
		quota, err := models.GetDailyQuota(c.Request.Context(), analystId, date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quota)
	}
}

func grantExtraQuotaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			Count int `json:"count" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quota, err := models.GrantExtraQuota(c.Request.Context(), analystId, req.Count)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quota)
	}
}

/* audit handlers */

func submitAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStoreAudit
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := workflow.SubmitAudit(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func listAuditsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, _ := strconv.Atoi(c.Query("analyst_id"))
		storeId, _ := strconv.Atoi(c.Query("store_id"))
		audits, err := models.GetStoreAudits(c.Request.Context(), analystId, storeId, time.Time{}, time.Time{})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, audits)
	}
}

func getAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		audit, err := models.GetStoreAudit(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, audit)
	}
}

/* issue handlers */

func getIssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		issue, err := models.GetIssue(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

func listIssuesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _ := strconv.Atoi(c.Query("store_id"))
		status := models.IssueStatus(c.Query("status"))
		if status != "" && !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		issues, err := models.GetIssues(c.Request.Context(), storeId, status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issues)
	}
}

func overdueIssuesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		issues, err := models.GetOverdueWhatsappIssues(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issues)
	}
}

func issueEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		events, err := models.GetIssueEvents(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func notifyWhatsappHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			DeadlineHours int `json:"deadline_hours" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issue, err := workflow.NotifyWhatsapp(c.Request.Context(), id, req.DeadlineHours)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

func notifyTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.NewTicketNotification
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issue, err := workflow.NotifyTicket(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

func resolveIssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			Notes string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issue, err := workflow.Resolve(c.Request.Context(), id, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

func checkEscalationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			Fixed *bool `json:"fixed" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issue, err := workflow.CheckEscalation(c.Request.Context(), id, *req.Fixed)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

func timerStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		status, err := workflow.GetTimerStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

/* KPI and dashboard handlers */

func weeklyKpiHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		weekStart := time.Now()
		if v := c.Query("week_start"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "week_start must be YYYY-MM-DD"})
				return
			}
			weekStart = parsed
		}
		kpi, err := models.GetWeeklyKpi(c.Request.Context(), analystId, weekStart)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, kpi)
	}
}

func monthlyKpiHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		kpi, err := models.GetMonthlyKpi(c.Request.Context(), analystId, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, kpi)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		dashboard, err := models.GetAnalystDashboard(c.Request.Context(), analystId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}

func scheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		schedule, err := models.WeeklySchedule(c.Request.Context(), analystId, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"schedule": schedule})
	}
}

func overviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := models.GetAnalystOverview(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

/* store and analyst handlers */

func createStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store, err := models.CreateStore(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, store)
	}
}

func listStoresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if code := strings.TrimSpace(c.Query("code")); code != "" {
			store, err := models.GetStoreByCode(c.Request.Context(), code)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, []*models.Store{store})
			return
		}
		activeOnly := c.Query("active") != "false"
		stores, err := models.GetStores(c.Request.Context(), activeOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stores)
	}
}

func getStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		store, err := models.GetStore(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func updateStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store, err := models.UpdateStore(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func suspendStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store, err := models.SuspendStore(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func reactivateStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		store, err := models.ReactivateStore(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func reverificationPendingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stores, err := models.GetReverificationPendingStores(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stores)
	}
}

func createAnalystHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAnalyst
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		analyst, err := models.CreateAnalyst(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, analyst)
	}
}

func listAnalystsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") != "false"
		analysts, err := models.GetAnalysts(c.Request.Context(), activeOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analysts)
	}
}

func getAnalystHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		analyst, err := models.GetAnalyst(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analyst)
	}
}

func updateAnalystHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewAnalyst
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		analyst, err := models.UpdateAnalyst(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analyst)
	}
}

func toggleActiveAnalystHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req struct {
			IsActive *bool `json:"is_active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		analyst, err := models.ToggleActiveAnalyst(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, analyst)
	}
}

/* schedule exception handlers */

func saveShiftProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewShiftProfile
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := models.SaveShiftProfile(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func saveDayOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDayOverride
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		override, err := models.SaveDayOverride(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, override)
	}
}

func getShiftProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		profile, err := models.GetShiftProfileByAnalyst(c.Request.Context(), analystId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func listDayOverridesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analystId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var from, to time.Time
		if v := c.Query("from"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be formatted as YYYY-MM-DD"})
				return
			}
			from = parsed
		}
		if v := c.Query("to"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be formatted as YYYY-MM-DD"})
				return
			}
			to = parsed
		}
		overrides, err := models.GetDayOverrides(c.Request.Context(), analystId, from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, overrides)
	}
}

func deleteDayOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		override, err := models.DeleteDayOverride(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, override)
	}
}

func clearCacheHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.RequirePermission(c.Request.Context(), models.PermissionViewOverview); err != nil {
			respondError(c, err)
			return
		}
		if err := config.ClearRedis(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"correlationId": correlationId,
				"path":          c.Request.URL.Path,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

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
		// Always allow the startup probe.
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
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization",
		"X-Department-Id", "X-Actor-Id", "X-Actor-Name", "X-Actor-Role", "X-Timezone")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
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
	r.NoRoute(customNotFoundHandler)

	api := r.Group("/api/v1", middlewares.IdentityMiddleware())
	{
		api.POST("/assignments", assignHandler())
		api.POST("/assignments/bulk", bulkAssignHandler())
		api.POST("/assignments/auto-distribute", autoDistributeHandler())
		api.GET("/assignments", listAssignmentsHandler())
		api.GET("/assignments/:id", getAssignmentHandler())
		api.POST("/assignments/:id/unassign", unassignHandler())
		api.POST("/assignments/unassign-all", unassignAllHandler())

		api.GET("/analysts", listAnalystsHandler())
		api.POST("/analysts", createAnalystHandler())
		api.GET("/analysts/:id", getAnalystHandler())
		api.PUT("/analysts/:id", updateAnalystHandler())
		api.POST("/analysts/:id/toggle-active", toggleActiveAnalystHandler())
		api.GET("/analysts/:id/shift-profile", getShiftProfileHandler())
		api.GET("/analysts/:id/day-overrides", listDayOverridesHandler())
		api.GET("/analysts/:id/quota", getQuotaHandler())
		api.POST("/analysts/:id/quota/extra", grantExtraQuotaHandler())
		api.GET("/analysts/:id/kpi/weekly", weeklyKpiHandler())
		api.GET("/analysts/:id/kpi/monthly", monthlyKpiHandler())
		api.GET("/analysts/:id/dashboard", dashboardHandler())
		api.GET("/analysts/:id/schedule", scheduleHandler())

		api.POST("/audits", submitAuditHandler())
		api.GET("/audits", listAuditsHandler())
		api.GET("/audits/:id", getAuditHandler())

		api.GET("/issues", listIssuesHandler())
		api.GET("/issues/overdue", overdueIssuesHandler())
		api.GET("/issues/:id", getIssueHandler())
		api.GET("/issues/:id/events", issueEventsHandler())
		api.GET("/issues/:id/timer", timerStatusHandler())
		api.POST("/issues/:id/notify-whatsapp", notifyWhatsappHandler())
		api.POST("/issues/:id/notify-ticket", notifyTicketHandler())
		api.POST("/issues/:id/resolve", resolveIssueHandler())
		api.POST("/issues/:id/check-escalation", checkEscalationHandler())

		api.GET("/stores", listStoresHandler())
		api.POST("/stores", createStoreHandler())
		api.GET("/stores/reverification-pending", reverificationPendingHandler())
		api.GET("/stores/:id", getStoreHandler())
		api.PUT("/stores/:id", updateStoreHandler())
		api.POST("/stores/:id/suspend", suspendStoreHandler())
		api.POST("/stores/:id/reactivate", reactivateStoreHandler())

		api.GET("/overview", overviewHandler())
		api.POST("/admin/clear-cache", clearCacheHandler())

		api.POST("/shift-profiles", saveShiftProfileHandler())
		api.POST("/day-overrides", saveDayOverrideHandler())
		api.DELETE("/day-overrides/:id", deleteDayOverrideHandler())
	}

	// Start listening immediately (startup probe is TCP based).
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
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)

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
