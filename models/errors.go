package models

import "fmt"

// ConflictError is returned when a store is already actively assigned to
// someone else. HolderName identifies the current holder so the caller can
// show who to talk to.
type ConflictError struct {
	StoreCode  string
	HolderId   int
	HolderName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store %s is already assigned to %s", e.StoreCode, e.HolderName)
}

// BulkConflictError aborts a bulk assignment without partial application.
type BulkConflictError struct {
	Conflicts []*ConflictError
}

func (e *BulkConflictError) Error() string {
	return fmt.Sprintf("%d stores are already assigned to other analysts", len(e.Conflicts))
}

type QuotaExceededError struct {
	AnalystId int
	Target    int
	Completed int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota reached (%d of %d); submissions blocked until the next day", e.Completed, e.Target)
}

// MissingChannelError is returned when resolving an issue that was never
// notified through any channel.
type MissingChannelError struct {
	IssueId int
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("issue %d has no notification channel; notify before resolving", e.IssueId)
}

type PermissionError struct {
	Role   Role
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}
