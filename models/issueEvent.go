package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"gorm.io/gorm"
)

// IssueEvent is the append-only audit trail of an issue's lifecycle. Entries
// are never edited or deleted. Every transition writes exactly one event
// inside its own transaction; the transition is not committed if the event
// write fails.
type IssueEvent struct {
	ID        int         `gorm:"primary_key" json:"id"`
	IssueId   int         `gorm:"index;not null" json:"issue_id"`
	Action    IssueAction `gorm:"size:40;not null" json:"action"`
	ActorId   int         `gorm:"index" json:"actor_id"`
	ActorName string      `gorm:"size:100" json:"actor_name"`
	Payload   string      `gorm:"type:text" json:"payload"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// AppendIssueEvent records one transition in the caller's transaction. The
// actor comes from the request context; payload is marshalled to JSON.
func AppendIssueEvent(tx *gorm.DB, ctx context.Context, issueId int, action IssueAction, payload map[string]interface{}) error {
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	var payloadJSON string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		payloadJSON = string(b)
	}

	event := IssueEvent{
		IssueId:   issueId,
		Action:    action,
		ActorId:   userId,
		ActorName: userName,
		Payload:   payloadJSON,
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func GetIssueEvents(ctx context.Context, issueId int) ([]*IssueEvent, error) {
	departmentId, ok := utils.GetDepartmentIdFromContext(ctx)
	if !ok || departmentId == 0 {
		return nil, errors.New("department id is required")
	}
	// scope check through the parent issue
	if err := utils.ValidateResourceId[Issue](ctx, departmentId, issueId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*IssueEvent
	err := db.WithContext(ctx).
		Where("issue_id = ?", issueId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
