// internal/models/application.go
package models

import "time"

// Status is the lifecycle state of an application. All changes go through
// the workflow authority; nothing else writes this field.
type Status string

const (
	StatusPending             Status = "pending"
	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusLevel3Work          Status = "level3_work"
	StatusDoctorReview        Status = "doctor_review"
	StatusDoctorApproved      Status = "doctor_approved"
	StatusDoctorDenied        Status = "doctor_denied"
	StatusPendingVerification Status = "pending_verification"
	StatusCompleted           Status = "completed"
	StatusRejected            Status = "rejected"
)

// PaymentStatus is the independent payment sub-state that gates the
// awaiting_payment -> level3_work transition.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Application represents one customer order progressing through the
// review workflow.
type Application struct {
	ID                string                 `json:"id" db:"id"`
	UserID            string                 `json:"userId" db:"user_id"`
	PackageID         string                 `json:"packageId" db:"package_id"`
	Status            Status                 `json:"status" db:"status"`
	FormData          map[string]interface{} `json:"formData" db:"form_data"`
	AssignedAgentID   *string                `json:"assignedAgentId,omitempty" db:"assigned_agent_id"`
	Level2Notes       string                 `json:"level2Notes,omitempty" db:"level2_notes"`
	Level3Notes       string                 `json:"level3Notes,omitempty" db:"level3_notes"`
	VerifyNotes       string                 `json:"verifyNotes,omitempty" db:"verify_notes"`
	Level2ApprovedAt  *time.Time             `json:"level2ApprovedAt,omitempty" db:"level2_approved_at"`
	Level3CompletedAt *time.Time             `json:"level3CompletedAt,omitempty" db:"level3_completed_at"`
	Level3CompletedBy *string                `json:"level3CompletedBy,omitempty" db:"level3_completed_by"`
	PaymentStatus     PaymentStatus          `json:"paymentStatus" db:"payment_status"`
	TransactionID     string                 `json:"transactionId,omitempty" db:"transaction_id"`
	ReworkCount       int                    `json:"reworkCount" db:"rework_count"`
	CreatedAt         time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time              `json:"updatedAt" db:"updated_at"`
}

// Claimed reports whether an agent currently holds the application.
func (a *Application) Claimed() bool {
	return a.AssignedAgentID != nil && *a.AssignedAgentID != ""
}
