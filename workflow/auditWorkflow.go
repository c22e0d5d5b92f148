package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("fieldaudit-backend/workflow")

// SubmitAuditResult bundles the created audit with the post-submission quota
// snapshot so the client can refresh its counter without a second call.
type SubmitAuditResult struct {
	Audit *models.StoreAudit       `json:"audit"`
	Quota *models.DailyQuotaStatus `json:"quota"`
	Issue *models.Issue            `json:"issue,omitempty"`
}

// SubmitAudit runs the full submission pipeline: quota gate, audit + items,
// issue attachment for non-compliant items, store flags, quota increment.
// The quota row for (analyst, local date) is a critical section; the redis
// lock serializes concurrent submissions so two requests cannot both pass the
// completed < target check.
func SubmitAudit(ctx context.Context, input *models.NewStoreAudit) (*SubmitAuditResult, error) {
	ctx, span := tracer.Start(ctx, "SubmitAudit")
	defer span.End()

	logger := config.GetLogger()

	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	if err := models.RequirePermission(ctx, models.PermissionSubmitAudits); err != nil {
		return nil, err
	}
	analystId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || analystId == 0 {
		return nil, errors.New("analyst id is required")
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Store](ctx, departmentId, input.StoreId); err != nil {
		return nil, errors.New("store not found")
	}

	today, err := models.LocalToday(ctx, analystId)
	if err != nil {
		config.LogError(logger, "auditWorkflow.go", "SubmitAudit", "LocalToday", analystId, err)
		return nil, err
	}

	var result *SubmitAuditResult
	err = utils.QuotaLock(ctx, analystId, today, "auditWorkflow.go", "SubmitAudit", func() error {
		quota, err := models.GetDailyQuota(ctx, analystId, today)
		if err != nil {
			config.LogError(logger, "auditWorkflow.go", "SubmitAudit", "GetDailyQuota", analystId, err)
			return err
		}
		if quota.Blocked {
			return &models.QuotaExceededError{
				AnalystId: analystId,
				Target:    quota.Target,
				Completed: quota.Completed,
			}
		}

		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			audit, issue, err := persistAudit(tx, ctx, logger, departmentId, analystId, input)
			if err != nil {
				return err
			}

			if err := incrementQuotaCompleted(tx, ctx, analystId, today); err != nil {
				config.LogError(logger, "auditWorkflow.go", "SubmitAudit", "incrementQuotaCompleted", analystId, err)
				return err
			}

			quota.Completed++
			if quota.Remaining > 0 {
				quota.Remaining--
			}
			quota.Blocked = quota.Completed >= quota.Target

			result = &SubmitAuditResult{Audit: audit, Quota: quota, Issue: issue}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// persistAudit creates the audit with its items, attaches non-compliant
// items to the store's open issue (opening one if absent) and refreshes the
// store's last-audit fields.
func persistAudit(tx *gorm.DB, ctx context.Context, logger *logrus.Logger, departmentId int, analystId int, input *models.NewStoreAudit) (*models.StoreAudit, *models.Issue, error) {
	now := time.Now()

	audit := models.StoreAudit{
		DepartmentId: departmentId,
		AnalystId:    analystId,
		StoreId:      input.StoreId,
		AuditedAt:    now,
		Result:       models.AuditResultCompliant,
		Notes:        input.Notes,
	}
	if input.HasIrregularities() {
		audit.Result = models.AuditResultIrregular
	}
	if err := tx.WithContext(ctx).Create(&audit).Error; err != nil {
		config.LogError(logger, "auditWorkflow.go", "persistAudit", "create audit", input.StoreId, err)
		return nil, nil, err
	}

	var issue *models.Issue
	if input.HasIrregularities() {
		var err error
		issue, err = openOrReuseIssue(tx, ctx, logger, departmentId, input.StoreId, audit.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, item := range input.Items {
		row := models.StoreAuditItem{
			StoreAuditId:  audit.ID,
			Category:      item.Category,
			Compliant:     item.Compliant,
			EvidenceRef:   item.EvidenceRef,
			Notes:         item.Notes,
			RecordingMode: item.RecordingMode,
		}
		if !utils.DereferencePtr(item.Compliant, true) && issue != nil {
			row.IssueId = &issue.ID
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			config.LogError(logger, "auditWorkflow.go", "persistAudit", "create audit item", item.Category, err)
			return nil, nil, err
		}
		audit.Items = append(audit.Items, row)

		if row.IssueId != nil {
			if err := models.AppendIssueEvent(tx, ctx, issue.ID, models.IssueActionItemAttached, map[string]interface{}{
				"audit_id": audit.ID,
				"category": item.Category,
				"notes":    item.Notes,
			}); err != nil {
				config.LogError(logger, "auditWorkflow.go", "persistAudit", "append item event", issue.ID, err)
				return nil, nil, err
			}
		}
	}

	// refresh store cadence flags
	err := tx.WithContext(ctx).Model(&models.Store{}).
		Where("id = ?", input.StoreId).
		Updates(map[string]interface{}{
			"LastAuditDate":       now,
			"LastAuditResult":     audit.Result,
			"NeedsReverification": false,
		}).Error
	if err != nil {
		config.LogError(logger, "auditWorkflow.go", "persistAudit", "update store", input.StoreId, err)
		return nil, nil, err
	}

	return &audit, issue, nil
}

// openOrReuseIssue returns the store's open issue, creating one with an
// issue_opened event when none exists.
func openOrReuseIssue(tx *gorm.DB, ctx context.Context, logger *logrus.Logger, departmentId int, storeId int, auditId int) (*models.Issue, error) {
	issue, err := models.GetOpenIssueForStore(tx, ctx, storeId)
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		config.LogError(logger, "auditWorkflow.go", "openOrReuseIssue", "lookup open issue", storeId, err)
		return nil, err
	}

	newIssue := models.Issue{
		DepartmentId:            departmentId,
		StoreId:                 storeId,
		Status:                  models.IssueStatusOpen,
		AutoEscalated:           utils.NewFalse(),
		EscalationQuestionShown: utils.NewFalse(),
	}
	if err := tx.WithContext(ctx).Create(&newIssue).Error; err != nil {
		config.LogError(logger, "auditWorkflow.go", "openOrReuseIssue", "create issue", storeId, err)
		return nil, err
	}
	if err := models.AppendIssueEvent(tx, ctx, newIssue.ID, models.IssueActionOpened, map[string]interface{}{
		"audit_id": auditId,
		"store_id": storeId,
	}); err != nil {
		config.LogError(logger, "auditWorkflow.go", "openOrReuseIssue", "append opened event", newIssue.ID, err)
		return nil, err
	}
	return &newIssue, nil
}

// incrementQuotaCompleted bumps the day's completed count unconditionally.
func incrementQuotaCompleted(tx *gorm.DB, ctx context.Context, analystId int, date time.Time) error {
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return tx.WithContext(ctx).Model(&models.DailyQuota{}).
		Where("analyst_id = ? AND date = ?", analystId, dateOnly).
		UpdateColumn("completed", gorm.Expr("completed + 1")).Error
}
