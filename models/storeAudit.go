package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
)

// StoreAudit is one inspection event with its checklist. Immutable once
// created; corrections happen by submitting a new audit.
type StoreAudit struct {
	ID           int         `gorm:"primary_key" json:"id"`
	DepartmentId int         `gorm:"index;not null" json:"department_id"`
	AnalystId    int         `gorm:"index;not null" json:"analyst_id" binding:"required"`
	StoreId      int         `gorm:"index;not null" json:"store_id" binding:"required"`
	AuditedAt    time.Time   `gorm:"index;not null" json:"audited_at"`
	Result       AuditResult `gorm:"size:20;not null" json:"result"`
	Notes        string      `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`

	Items   []StoreAuditItem `gorm:"foreignKey:StoreAuditId" json:"items"`
	Analyst *Analyst         `gorm:"foreignKey:AnalystId" json:"analyst,omitempty"`
	Store   *Store           `gorm:"foreignKey:StoreId" json:"store,omitempty"`
}

type StoreAuditItem struct {
	ID            int               `gorm:"primary_key" json:"id"`
	StoreAuditId  int               `gorm:"index;not null" json:"store_audit_id"`
	Category      ChecklistCategory `gorm:"size:30;not null" json:"category"`
	Compliant     *bool             `gorm:"not null" json:"compliant"`
	EvidenceRef   string            `gorm:"size:255" json:"evidence_ref"`
	Notes         string            `gorm:"type:text" json:"notes"`
	RecordingMode RecordingMode     `gorm:"size:20" json:"recording_mode,omitempty"`
	IssueId       *int              `gorm:"index" json:"issue_id"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

type NewStoreAuditItem struct {
	Category      ChecklistCategory `json:"category" binding:"required" validate:"required"`
	Compliant     *bool             `json:"compliant" binding:"required" validate:"required"`
	EvidenceRef   string            `json:"evidence_ref"`
	Notes         string            `json:"notes"`
	RecordingMode RecordingMode     `json:"recording_mode"`
}

type NewStoreAudit struct {
	StoreId int                  `json:"store_id" binding:"required" validate:"required"`
	Notes   string               `json:"notes"`
	Items   []*NewStoreAuditItem `json:"items" binding:"required" validate:"required,min=1"`
}

func (input *NewStoreAudit) Validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	seen := make(map[ChecklistCategory]bool, len(input.Items))
	for _, item := range input.Items {
		if !item.Category.IsValid() {
			return &ValidationError{Field: "category", Message: "unknown checklist category " + item.Category.String()}
		}
		if seen[item.Category] {
			return &ValidationError{Field: "category", Message: "duplicate checklist category " + item.Category.String()}
		}
		seen[item.Category] = true
		if item.Compliant == nil {
			return &ValidationError{Field: "compliant", Message: "compliant flag is required"}
		}
		// recording mode only applies to non-compliant camera items
		if item.RecordingMode != "" {
			if item.Category != ChecklistCategoryCameras {
				return &ValidationError{Field: "recording_mode", Message: "recording mode only applies to cameras"}
			}
			if *item.Compliant {
				return &ValidationError{Field: "recording_mode", Message: "recording mode is captured only for non-compliant camera items"}
			}
			if !item.RecordingMode.IsValid() {
				return &ValidationError{Field: "recording_mode", Message: "invalid recording mode"}
			}
		}
	}
	return nil
}

// HasIrregularities reports whether any item is non-compliant.
func (input *NewStoreAudit) HasIrregularities() bool {
	for _, item := range input.Items {
		if !utils.DereferencePtr(item.Compliant, true) {
			return true
		}
	}
	return false
}

func (a *StoreAudit) HasIrregularities() bool {
	for _, item := range a.Items {
		if !utils.DereferencePtr(item.Compliant, true) {
			return true
		}
	}
	return false
}

func GetStoreAudit(ctx context.Context, id int) (*StoreAudit, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	return utils.FetchModel[StoreAudit](ctx, departmentId, id, "Items", "Store", "Analyst")
}

func GetStoreAudits(ctx context.Context, analystId int, storeId int, from time.Time, to time.Time) ([]*StoreAudit, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*StoreAudit
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if analystId > 0 {
		dbCtx = dbCtx.Where("analyst_id = ?", analystId)
	}
	if storeId > 0 {
		dbCtx = dbCtx.Where("store_id = ?", storeId)
	}
	if !from.IsZero() {
		dbCtx = dbCtx.Where("audited_at >= ?", from)
	}
	if !to.IsZero() {
		dbCtx = dbCtx.Where("audited_at <= ?", to)
	}
	if err := dbCtx.Preload("Items").Order("audited_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CountAuditsForStoreInRange counts an analyst's audits of one store within
// [from, to], used by weekly progress and quota math.
func CountAuditsForStoreInRange(ctx context.Context, analystId int, storeId int, from time.Time, to time.Time) (int, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&StoreAudit{}).
		Where("analyst_id = ? AND store_id = ? AND audited_at >= ? AND audited_at <= ?", analystId, storeId, from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountAuditsForAnalystInRange counts all audits by an analyst within [from, to].
func CountAuditsForAnalystInRange(ctx context.Context, analystId int, from time.Time, to time.Time) (int, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&StoreAudit{}).
		Where("analyst_id = ? AND audited_at >= ? AND audited_at <= ?", analystId, from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
