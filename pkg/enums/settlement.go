package enums

import "fmt"

// SettlementSource records which path observed a processor status.
type SettlementSource string

const (
	SettlementSourceNotification   SettlementSource = "notification"
	SettlementSourceStatusPoll     SettlementSource = "status_poll"
	SettlementSourceReconcileSweep SettlementSource = "reconcile_sweep"
	SettlementSourceAdminReview    SettlementSource = "admin_review"
)

var validSettlementSources = []SettlementSource{
	SettlementSourceNotification,
	SettlementSourceStatusPoll,
	SettlementSourceReconcileSweep,
	SettlementSourceAdminReview,
}

func (s SettlementSource) String() string {
	return string(s)
}

func (s SettlementSource) IsValid() bool {
	for _, candidate := range validSettlementSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ConflictStatus tracks manual review of a settlement conflict.
type ConflictStatus string

const (
	ConflictStatusOpen     ConflictStatus = "open"
	ConflictStatusAccepted ConflictStatus = "accepted"
	ConflictStatusRejected ConflictStatus = "rejected"
)

var validConflictStatuses = []ConflictStatus{
	ConflictStatusOpen,
	ConflictStatusAccepted,
	ConflictStatusRejected,
}

func (s ConflictStatus) IsValid() bool {
	for _, candidate := range validConflictStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConflictStatus converts raw input into a ConflictStatus.
func ParseConflictStatus(value string) (ConflictStatus, error) {
	for _, candidate := range validConflictStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conflict status %q", value)
}

// ConflictDecision is the reviewer's verdict on a conflict.
type ConflictDecision string

const (
	ConflictDecisionAccept ConflictDecision = "accept"
	ConflictDecisionReject ConflictDecision = "reject"
)

// ParseConflictDecision converts raw input into a ConflictDecision.
func ParseConflictDecision(value string) (ConflictDecision, error) {
	switch ConflictDecision(value) {
	case ConflictDecisionAccept, ConflictDecisionReject:
		return ConflictDecision(value), nil
	}
	return "", fmt.Errorf("invalid conflict decision %q", value)
}
