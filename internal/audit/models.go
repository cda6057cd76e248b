package audit

import "time"

// Event is emitted from domain logic to capture key registry actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Registry audit actions.
const (
	ActionUserRegistered    = "user_registered"
	ActionUserLogin         = "user_login"
	ActionCarRegistered     = "car_registered"
	ActionTransferInitiated = "transfer_initiated"
	ActionTransferCompleted = "transfer_completed"
	ActionTransferRejected  = "transfer_rejected"
)
