package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"gorm.io/gorm"
)

// Issue aggregates a store's non-compliance. At most one open issue exists
// per store; non-compliant audit items attach to it until it is resolved.
type Issue struct {
	ID                      int                 `gorm:"primary_key" json:"id"`
	DepartmentId            int                 `gorm:"index;not null" json:"department_id"`
	StoreId                 int                 `gorm:"index;not null" json:"store_id"`
	Status                  IssueStatus         `gorm:"size:30;not null;default:'open'" json:"status"`
	Channel                 NotificationChannel `gorm:"size:20" json:"channel,omitempty"`
	Priority                TicketPriority      `gorm:"size:20" json:"priority,omitempty"`
	TicketId                string              `gorm:"size:50" json:"ticket_id,omitempty"`
	TicketNotes             string              `gorm:"type:text" json:"ticket_notes,omitempty"`
	ResponsibleId           *int                `gorm:"index" json:"responsible_id,omitempty"`
	TimerStart              *time.Time          `json:"timer_start"`
	Deadline                *time.Time          `json:"deadline"`
	AutoEscalated           *bool               `gorm:"not null;default:false" json:"auto_escalated"`
	EscalationQuestionShown *bool               `gorm:"not null;default:false" json:"escalation_question_shown"`
	ResolvedBy              *int                `json:"resolved_by"`
	ResolvedAt              *time.Time          `json:"resolved_at"`
	ResolutionNotes         string              `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt               time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Store  *Store       `gorm:"foreignKey:StoreId" json:"store,omitempty"`
	Events []IssueEvent `gorm:"foreignKey:IssueId" json:"events,omitempty"`
}

// TimerStatus is the derived view of a timed issue.
type TimerStatus struct {
	RemainingSeconds int64      `json:"remaining_seconds"`
	ProgressPercent  float64    `json:"progress_percent"`
	Color            TimerColor `json:"color"`
	Overdue          bool       `json:"overdue"`
}

// InTimedState reports whether a notification timer is currently running.
func (i *Issue) InTimedState() bool {
	return (i.Status == IssueStatusNotifiedWhatsapp || i.Status == IssueStatusNotifiedTicket) &&
		i.TimerStart != nil && i.Deadline != nil
}

// TimeRemaining is max(0, deadline - now); zero outside timed states.
func (i *Issue) TimeRemaining(now time.Time) time.Duration {
	if !i.InTimedState() {
		return 0
	}
	remaining := i.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ProgressPercent is the elapsed fraction of the timer window, clamped to
// [0, 100]. Monotonically non-decreasing for a fixed issue; 100 once the
// deadline passes.
func (i *Issue) ProgressPercent(now time.Time) float64 {
	if !i.InTimedState() {
		return 0
	}
	total := i.Deadline.Sub(*i.TimerStart)
	if total <= 0 {
		return 100
	}
	progress := 100 * float64(now.Sub(*i.TimerStart)) / float64(total)
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

func TimerColorFor(progress float64) TimerColor {
	switch {
	case progress < 50:
		return TimerColorGreen
	case progress < 75:
		return TimerColorYellow
	default:
		return TimerColorRed
	}
}

func (i *Issue) DeadlinePassed(now time.Time) bool {
	return i.Deadline != nil && now.After(*i.Deadline)
}

func (i *Issue) TimerStatusAt(now time.Time) *TimerStatus {
	progress := i.ProgressPercent(now)
	return &TimerStatus{
		RemainingSeconds: int64(i.TimeRemaining(now).Seconds()),
		ProgressPercent:  progress,
		Color:            TimerColorFor(progress),
		Overdue:          i.InTimedState() && i.DeadlinePassed(now),
	}
}

// GetOpenIssueForStore may return RecordNotFound. "Open" here means any
// non-resolved status, so notified issues keep absorbing new items.
func GetOpenIssueForStore(tx *gorm.DB, ctx context.Context, storeId int) (*Issue, error) {
	var issue Issue
	err := tx.WithContext(ctx).
		Where("store_id = ? AND status <> ?", storeId, IssueStatusResolved).
		Order("id DESC").
		First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func GetIssue(ctx context.Context, id int) (*Issue, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	return utils.FetchModel[Issue](ctx, departmentId, id, "Store", "Events")
}

func GetIssues(ctx context.Context, storeId int, status IssueStatus) ([]*Issue, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Issue
	dbCtx := db.WithContext(ctx).Where("department_id = ?", departmentId)
	if storeId > 0 {
		dbCtx = dbCtx.Where("store_id = ?", storeId)
	}
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if err := dbCtx.Preload("Store").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOverdueWhatsappIssues lists issues awaiting the escalation decision:
// whatsapp channel, still notified, deadline in the past.
func GetOverdueWhatsappIssues(ctx context.Context) ([]*Issue, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}

	db := config.GetDB()
	var results []*Issue
	err := db.WithContext(ctx).
		Where("department_id = ? AND status = ? AND channel = ? AND deadline < ?",
			departmentId, IssueStatusNotifiedWhatsapp, NotificationChannelWhatsapp, time.Now()).
		Preload("Store").
		Order("deadline").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
