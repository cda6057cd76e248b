package transfer

import (
	"time"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
)

// Status is a transfer's lifecycle state (persisted as a string).
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// allowTransition is the transfer state machine. Pending is the only
// non-terminal state; completed and rejected admit no further transition.
var allowTransition = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusRejected},
	StatusCompleted: {},
	StatusRejected:  {},
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to Status) bool {
	allowed, ok := allowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Reason is the recipient's rejection reason, from a fixed enumeration.
type Reason string

const (
	ReasonDocument   Reason = "Document"
	ReasonFinancial  Reason = "Financial"
	ReasonLegal      Reason = "Legal"
	ReasonMechanical Reason = "Mechanical"
	ReasonAesthetic  Reason = "Aesthetic"
	ReasonElectrical Reason = "Electrical"
	ReasonAccident   Reason = "Accident"
	ReasonAuction    Reason = "Auction"
)

var validReasons = map[Reason]bool{
	ReasonDocument:   true,
	ReasonFinancial:  true,
	ReasonLegal:      true,
	ReasonMechanical: true,
	ReasonAesthetic:  true,
	ReasonElectrical: true,
	ReasonAccident:   true,
	ReasonAuction:    true,
}

// ParseReason validates a rejection reason. Anything outside the enumeration
// is a validation error, never a server error.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !validReasons[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid rejection reason")
	}
	return r, nil
}

// Transfer is an ownership-transfer request. From must equal the car's owner
// at creation time; FinishedAt is nil while pending; RejectionReason is
// non-nil exactly when Status is rejected.
type Transfer struct {
	ID              id.TransferID `json:"id"`
	CarID           id.CarID      `json:"car"`
	From            id.UserID     `json:"from"`
	To              id.UserID     `json:"to"`
	Status          Status        `json:"status"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	RejectionReason *Reason       `json:"rejectionReason,omitempty"`
}

// Complete applies the pending -> completed transition.
func (t *Transfer) Complete(now time.Time) error {
	if !CanTransition(t.Status, StatusCompleted) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid transfer")
	}
	t.Status = StatusCompleted
	t.FinishedAt = &now
	return nil
}

// Reject applies the pending -> rejected transition with the given reason.
func (t *Transfer) Reject(reason Reason, now time.Time) error {
	if !CanTransition(t.Status, StatusRejected) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid transfer")
	}
	t.Status = StatusRejected
	t.FinishedAt = &now
	t.RejectionReason = &reason
	return nil
}
