package models

import "time"

// Audit actions recorded across the application.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionPasswordReset  = "PASSWORD_RESET"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionSettlement     = "PAYMENT_SETTLEMENT"
	AuditActionCancellation   = "PAYMENT_CANCELLATION"
	AuditActionLateFee        = "LATE_FEE"
)

// AuditLog is an append-only trace of privileged and ledger actions.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"-"`
	UserAgent  string    `db:"user_agent" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
