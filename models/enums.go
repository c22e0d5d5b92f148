package models

type Role string

const (
	RoleAnalyst Role = "analyst"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (e Role) IsValid() bool {
	switch e {
	case RoleAnalyst, RoleManager, RoleAdmin:
		return true
	}
	return false
}

func (e Role) String() string {
	return string(e)
}

type AuditResult string

const (
	AuditResultPending   AuditResult = "pending"
	AuditResultCompliant AuditResult = "compliant"
	AuditResultIrregular AuditResult = "irregular"
)

func (e AuditResult) IsValid() bool {
	switch e {
	case AuditResultPending, AuditResultCompliant, AuditResultIrregular:
		return true
	}
	return false
}

func (e AuditResult) String() string {
	return string(e)
}

type OverrideKind string

const (
	OverrideKindLeave      OverrideKind = "leave"
	OverrideKindVacation   OverrideKind = "vacation"
	OverrideKindSick       OverrideKind = "sick"
	OverrideKindForcedWork OverrideKind = "forced_work"
)

func (e OverrideKind) IsValid() bool {
	switch e {
	case OverrideKindLeave, OverrideKindVacation, OverrideKindSick, OverrideKindForcedWork:
		return true
	}
	return false
}

func (e OverrideKind) String() string {
	return string(e)
}

type ChecklistCategory string

const (
	ChecklistCategoryCameras         ChecklistCategory = "cameras"
	ChecklistCategoryUpholstery      ChecklistCategory = "upholstery"
	ChecklistCategoryMeasuringBasket ChecklistCategory = "measuring_baskets"
	ChecklistCategoryLayout          ChecklistCategory = "layout"
	ChecklistCategoryTv              ChecklistCategory = "tv"
	ChecklistCategoryTotem           ChecklistCategory = "totem"
	ChecklistCategoryCleanliness     ChecklistCategory = "cleanliness"
	ChecklistCategoryMarketing       ChecklistCategory = "marketing"
)

var AllChecklistCategories = []ChecklistCategory{
	ChecklistCategoryCameras,
	ChecklistCategoryUpholstery,
	ChecklistCategoryMeasuringBasket,
	ChecklistCategoryLayout,
	ChecklistCategoryTv,
	ChecklistCategoryTotem,
	ChecklistCategoryCleanliness,
	ChecklistCategoryMarketing,
}

func (e ChecklistCategory) IsValid() bool {
	for _, c := range AllChecklistCategories {
		if e == c {
			return true
		}
	}
	return false
}

func (e ChecklistCategory) String() string {
	return string(e)
}

// RecordingMode is captured only for the cameras category and only when the
// item is non-compliant.
type RecordingMode string

const (
	RecordingModeMotion     RecordingMode = "motion"
	RecordingModeContinuous RecordingMode = "continuous"
)

func (e RecordingMode) IsValid() bool {
	switch e {
	case RecordingModeMotion, RecordingModeContinuous:
		return true
	}
	return false
}

func (e RecordingMode) String() string {
	return string(e)
}

type IssueStatus string

const (
	IssueStatusOpen             IssueStatus = "open"
	IssueStatusNotifiedWhatsapp IssueStatus = "notified_whatsapp"
	IssueStatusNotifiedTicket   IssueStatus = "notified_ticket"
	IssueStatusResolved         IssueStatus = "resolved"
)

func (e IssueStatus) IsValid() bool {
	switch e {
	case IssueStatusOpen, IssueStatusNotifiedWhatsapp, IssueStatusNotifiedTicket, IssueStatusResolved:
		return true
	}
	return false
}

func (e IssueStatus) String() string {
	return string(e)
}

type NotificationChannel string

const (
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelTicket   NotificationChannel = "ticket"
)

func (e NotificationChannel) IsValid() bool {
	switch e {
	case NotificationChannelWhatsapp, NotificationChannelTicket:
		return true
	}
	return false
}

func (e NotificationChannel) String() string {
	return string(e)
}

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

func (e TicketPriority) IsValid() bool {
	switch e {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

func (e TicketPriority) String() string {
	return string(e)
}

// IssueAction values recorded in the issue event log.
type IssueAction string

const (
	IssueActionOpened                IssueAction = "issue_opened"
	IssueActionItemAttached          IssueAction = "item_attached"
	IssueActionNotifiedWhatsapp      IssueAction = "notified_whatsapp"
	IssueActionNotifiedTicket        IssueAction = "notified_ticket"
	IssueActionResolved              IssueAction = "resolved"
	IssueActionResolvedAfterDeadline IssueAction = "resolved_after_deadline"
	IssueActionAutoEscalatedToTicket IssueAction = "auto_escalated_to_ticket"
)

func (e IssueAction) String() string {
	return string(e)
}

type TimerColor string

const (
	TimerColorGreen  TimerColor = "green"
	TimerColorYellow TimerColor = "yellow"
	TimerColorRed    TimerColor = "red"
)

func (e TimerColor) String() string {
	return string(e)
}
