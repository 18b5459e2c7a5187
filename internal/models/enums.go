package models

// Priority orders requests and follow-ups by urgency.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Rank returns a numeric severity for comparisons; higher means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityUrgent:
		return 2
	case PriorityNormal:
		return 1
	}
	return 0
}

// Raise returns the next priority up from p. Critical stays critical.
func (p Priority) Raise() Priority {
	switch p {
	case PriorityNormal:
		return PriorityUrgent
	case PriorityUrgent, PriorityCritical:
		return PriorityCritical
	}
	return p
}

// FollowUpKind identifies which reminder a schedule delivers.
type FollowUpKind string

const (
	KindQuotationReminder  FollowUpKind = "quotation_reminder"
	KindDateConfirmation   FollowUpKind = "date_confirmation"
	KindWorkReminder       FollowUpKind = "work_reminder"
	KindCompletionReminder FollowUpKind = "completion_reminder"
)

// Valid reports whether k is one of the known follow-up kinds.
func (k FollowUpKind) Valid() bool {
	switch k {
	case KindQuotationReminder, KindDateConfirmation, KindWorkReminder, KindCompletionReminder:
		return true
	}
	return false
}

// ScheduleStatus is the lifecycle state of a follow-up schedule.
// Transitions: pending→processing→{sent|failed}, pending→cancelled,
// failed→pending (manual reschedule only).
type ScheduleStatus string

const (
	SchedulePending    ScheduleStatus = "pending"
	ScheduleProcessing ScheduleStatus = "processing"
	ScheduleSent       ScheduleStatus = "sent"
	ScheduleFailed     ScheduleStatus = "failed"
	ScheduleCancelled  ScheduleStatus = "cancelled"
)

// Terminal reports whether a schedule in this status is done for good.
// Failed is terminal only once attempts are exhausted; the caller checks that.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleSent || s == ScheduleCancelled
}

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestQuoted     RequestStatus = "quoted"
	RequestScheduled  RequestStatus = "scheduled"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether the request has reached a final state.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// DecisionStatus is the state of a monetary approval decision.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
)
