package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/models"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"gorm.io/gorm"
)

const (
	whatsappDeadlineMinHours = 24
	whatsappDeadlineMaxHours = 48
	ticketDeadlineHours      = 72
)

type NewTicketNotification struct {
	Priority      models.TicketPriority `json:"priority" binding:"required" validate:"required"`
	Notes         string                `json:"notes"`
	ResponsibleId *int                  `json:"responsible_id"`
}

// SyntheticTicketId builds the ticket reference recorded on the issue. The
// escalated form carries an ESC marker so downstream reports can tell manual
// tickets from auto-escalations.
func SyntheticTicketId(issueId int, escalated bool, at time.Time) string {
	if escalated {
		return fmt.Sprintf("TK-ESC-%d-%s", issueId, at.Format("20060102"))
	}
	return fmt.Sprintf("TK-%d-%s", issueId, at.Format("20060102"))
}

// fetchIssueForTransition loads the issue inside the transition's lock and
// checks it still belongs to the caller's department.
func fetchIssueForTransition(tx *gorm.DB, ctx context.Context, issueId int) (*models.Issue, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	var issue models.Issue
	err := tx.WithContext(ctx).
		Where("department_id = ?", departmentId).
		First(&issue, issueId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// NotifyWhatsapp starts the WhatsApp remediation timer. The deadline must be
// between 24 and 48 hours.
func NotifyWhatsapp(ctx context.Context, issueId int, deadlineHours int) (*models.Issue, error) {
	logger := config.GetLogger()

	if err := models.RequirePermission(ctx, models.PermissionTransitionIssues); err != nil {
		return nil, err
	}
	if deadlineHours < whatsappDeadlineMinHours || deadlineHours > whatsappDeadlineMaxHours {
		return nil, &models.ValidationError{
			Field:   "deadline_hours",
			Message: fmt.Sprintf("deadline must be between %d and %d hours", whatsappDeadlineMinHours, whatsappDeadlineMaxHours),
		}
	}

	var result *models.Issue
	err := utils.IssueLock(ctx, issueId, "issueWorkflow.go", "NotifyWhatsapp", func() error {
		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			issue, err := fetchIssueForTransition(tx, ctx, issueId)
			if err != nil {
				return err
			}
			if issue.Status != models.IssueStatusOpen {
				return &models.ValidationError{Field: "status", Message: "only open issues can be notified"}
			}

			now := time.Now()
			deadline := now.Add(time.Duration(deadlineHours) * time.Hour)
			err = tx.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
				"Status":     models.IssueStatusNotifiedWhatsapp,
				"Channel":    models.NotificationChannelWhatsapp,
				"TimerStart": now,
				"Deadline":   deadline,
			}).Error
			if err != nil {
				config.LogError(logger, "issueWorkflow.go", "NotifyWhatsapp", "update issue", issueId, err)
				return err
			}

			if err := models.AppendIssueEvent(tx, ctx, issue.ID, models.IssueActionNotifiedWhatsapp, map[string]interface{}{
				"deadline_hours": deadlineHours,
				"deadline":       deadline,
			}); err != nil {
				config.LogError(logger, "issueWorkflow.go", "NotifyWhatsapp", "append event", issueId, err)
				return err
			}

			issue.Status = models.IssueStatusNotifiedWhatsapp
			issue.Channel = models.NotificationChannelWhatsapp
			issue.TimerStart = &now
			issue.Deadline = &deadline
			result = issue
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NotifyTicket opens a remediation ticket with a default 72h deadline and a
// synthetic ticket id.
func NotifyTicket(ctx context.Context, issueId int, input *NewTicketNotification) (*models.Issue, error) {
	logger := config.GetLogger()

	if err := models.RequirePermission(ctx, models.PermissionTransitionIssues); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Priority.IsValid() {
		return nil, &models.ValidationError{Field: "priority", Message: "invalid ticket priority"}
	}

	var result *models.Issue
	err := utils.IssueLock(ctx, issueId, "issueWorkflow.go", "NotifyTicket", func() error {
		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			issue, err := fetchIssueForTransition(tx, ctx, issueId)
			if err != nil {
				return err
			}
			if issue.Status != models.IssueStatusOpen {
				return &models.ValidationError{Field: "status", Message: "only open issues can be notified"}
			}

			now := time.Now()
			deadline := now.Add(ticketDeadlineHours * time.Hour)
			ticketId := SyntheticTicketId(issue.ID, false, now)
			err = tx.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
				"Status":        models.IssueStatusNotifiedTicket,
				"Channel":       models.NotificationChannelTicket,
				"Priority":      input.Priority,
				"TicketId":      ticketId,
				"TicketNotes":   input.Notes,
				"ResponsibleId": input.ResponsibleId,
				"TimerStart":    now,
				"Deadline":      deadline,
			}).Error
			if err != nil {
				config.LogError(logger, "issueWorkflow.go", "NotifyTicket", "update issue", issueId, err)
				return err
			}

			if err := models.AppendIssueEvent(tx, ctx, issue.ID, models.IssueActionNotifiedTicket, map[string]interface{}{
				"ticket_id": ticketId,
				"priority":  input.Priority,
				"deadline":  deadline,
			}); err != nil {
				config.LogError(logger, "issueWorkflow.go", "NotifyTicket", "append event", issueId, err)
				return err
			}

			issue.Status = models.IssueStatusNotifiedTicket
			issue.Channel = models.NotificationChannelTicket
			issue.Priority = input.Priority
			issue.TicketId = ticketId
			issue.TicketNotes = input.Notes
			issue.ResponsibleId = input.ResponsibleId
			issue.TimerStart = &now
			issue.Deadline = &deadline
			result = issue
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resolve closes the issue. An issue that was never notified through any
// channel cannot be resolved.
func Resolve(ctx context.Context, issueId int, notes string) (*models.Issue, error) {
	return resolveIssue(ctx, issueId, notes, models.IssueActionResolved)
}

func resolveIssue(ctx context.Context, issueId int, notes string, action models.IssueAction) (*models.Issue, error) {
	logger := config.GetLogger()

	if err := models.RequirePermission(ctx, models.PermissionTransitionIssues); err != nil {
		return nil, err
	}

	var result *models.Issue
	err := utils.IssueLock(ctx, issueId, "issueWorkflow.go", "Resolve", func() error {
		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			issue, err := fetchIssueForTransition(tx, ctx, issueId)
			if err != nil {
				return err
			}
			if issue.Status == models.IssueStatusResolved {
				return &models.ValidationError{Field: "status", Message: "issue is already resolved"}
			}
			if issue.Channel == "" {
				return &models.MissingChannelError{IssueId: issue.ID}
			}

			resolved, err := applyResolution(tx, ctx, issue, notes, action)
			if err != nil {
				config.LogError(logger, "issueWorkflow.go", "Resolve", "apply resolution", issueId, err)
				return err
			}
			result = resolved
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyResolution performs the shared resolved-state write and event append
// inside the caller's transaction.
func applyResolution(tx *gorm.DB, ctx context.Context, issue *models.Issue, notes string, action models.IssueAction) (*models.Issue, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	now := time.Now()

	err := tx.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
		"Status":          models.IssueStatusResolved,
		"ResolvedBy":      userId,
		"ResolvedAt":      now,
		"ResolutionNotes": notes,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := models.AppendIssueEvent(tx, ctx, issue.ID, action, map[string]interface{}{
		"notes": notes,
	}); err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatusResolved
	issue.ResolvedBy = &userId
	issue.ResolvedAt = &now
	issue.ResolutionNotes = notes
	return issue, nil
}

// CheckEscalation handles the binary choice on an overdue WhatsApp issue:
// fixed resolves it with a post-deadline note, otherwise the issue
// auto-escalates to a high-priority ticket with a fresh 72h deadline.
func CheckEscalation(ctx context.Context, issueId int, fixed bool) (*models.Issue, error) {
	logger := config.GetLogger()

	if err := models.RequirePermission(ctx, models.PermissionTransitionIssues); err != nil {
		return nil, err
	}

	var result *models.Issue
	err := utils.IssueLock(ctx, issueId, "issueWorkflow.go", "CheckEscalation", func() error {
		db := config.GetDB()
		return db.Transaction(func(tx *gorm.DB) error {
			issue, err := fetchIssueForTransition(tx, ctx, issueId)
			if err != nil {
				return err
			}
			if issue.Status != models.IssueStatusNotifiedWhatsapp || issue.Channel != models.NotificationChannelWhatsapp {
				return &models.ValidationError{Field: "status", Message: "escalation check applies only to whatsapp-notified issues"}
			}
			now := time.Now()
			if !issue.DeadlinePassed(now) {
				return &models.ValidationError{Field: "deadline", Message: "deadline has not passed yet"}
			}

			if fixed {
				resolved, err := applyResolution(tx, ctx, issue, "resolved after deadline", models.IssueActionResolvedAfterDeadline)
				if err != nil {
					config.LogError(logger, "issueWorkflow.go", "CheckEscalation", "resolve after deadline", issueId, err)
					return err
				}
				result = resolved
				return nil
			}

			deadline := now.Add(ticketDeadlineHours * time.Hour)
			ticketId := SyntheticTicketId(issue.ID, true, now)
			err = tx.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
				"Status":                  models.IssueStatusNotifiedTicket,
				"Channel":                 models.NotificationChannelTicket,
				"Priority":                models.TicketPriorityHigh,
				"TicketId":                ticketId,
				"TimerStart":              now,
				"Deadline":                deadline,
				"AutoEscalated":           true,
				"EscalationQuestionShown": true,
			}).Error
			if err != nil {
				config.LogError(logger, "issueWorkflow.go", "CheckEscalation", "escalate issue", issueId, err)
				return err
			}

			if err := models.AppendIssueEvent(tx, ctx, issue.ID, models.IssueActionAutoEscalatedToTicket, map[string]interface{}{
				"ticket_id": ticketId,
				"priority":  models.TicketPriorityHigh,
				"deadline":  deadline,
			}); err != nil {
				config.LogError(logger, "issueWorkflow.go", "CheckEscalation", "append event", issueId, err)
				return err
			}

			issue.Status = models.IssueStatusNotifiedTicket
			issue.Channel = models.NotificationChannelTicket
			issue.Priority = models.TicketPriorityHigh
			issue.TicketId = ticketId
			issue.TimerStart = &now
			issue.Deadline = &deadline
			issue.AutoEscalated = utils.NewTrue()
			issue.EscalationQuestionShown = utils.NewTrue()
			result = issue
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTimerStatus is the derived read for the remediation timer widget.
func GetTimerStatus(ctx context.Context, issueId int) (*models.TimerStatus, error) {
	issue, err := models.GetIssue(ctx, issueId)
	if err != nil {
		return nil, err
	}
	return issue.TimerStatusAt(time.Now()), nil
}
