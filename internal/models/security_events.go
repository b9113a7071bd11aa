package models

import "time"

// Auth actions recorded in the security event stream
const (
	ActionRegister       = "register"
	ActionLoginPassword  = "login_password"
	ActionLoginMFA       = "login_mfa"
	ActionUpdatePassword = "update_password"
	ActionForgotPassword = "forgot_password"
	ActionResetPassword  = "reset_password"
	ActionAuthenticate   = "authenticate"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SecurityEvent is one audited authentication outcome. It never carries secrets.
type SecurityEvent struct {
	EventID     string    `json:"event_id" db:"event_id"`
	EventBucket int       `json:"event_bucket" db:"event_bucket"`
	EventDate   string    `json:"event_date" db:"event_date"`
	EventTime   time.Time `json:"event_time" db:"event_time"`
	Action      string    `json:"action" db:"action"`
	Outcome     string    `json:"outcome" db:"outcome"`
	Reason      string    `json:"reason,omitempty" db:"reason"`
	UserID      string    `json:"user_id,omitempty" db:"user_id"`
	Email       string    `json:"email,omitempty" db:"email"`
	IPAddress   string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty" db:"user_agent"`
	RequestID   string    `json:"request_id,omitempty" db:"request_id"`
	Details     string    `json:"details,omitempty" db:"details"`
}

// Subject returns the best identifier for the event's account
func (e SecurityEvent) Subject() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}
