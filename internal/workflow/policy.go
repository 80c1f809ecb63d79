// internal/workflow/policy.go
package workflow

import (
	apperrors "letter-service/internal/common/errors"
	"letter-service/internal/models"
)

// Capability names one privileged operation. Authorization is a table
// lookup, never a numeric level comparison.
type Capability string

const (
	CapSubmit         Capability = "application.submit"
	CapSendToDoctor   Capability = "application.send_to_doctor"
	CapClaim          Capability = "application.claim"
	CapCompleteWork   Capability = "application.complete_work"
	CapVerify         Capability = "application.verify"
	CapViewWorkQueue  Capability = "queue.view_work"
	CapCallQueueClaim Capability = "call_queue.claim"
	CapManagePackages Capability = "admin.packages"
	CapManageSettings Capability = "admin.settings"
	CapSearch         Capability = "admin.search"
)

var policy = map[Capability]map[models.Role]bool{
	CapSubmit:         {models.RoleApplicant: true, models.RoleAgent: true, models.RoleAdmin: true},
	CapSendToDoctor:   {models.RoleAgent: true, models.RoleAdmin: true},
	CapClaim:          {models.RoleAgent: true, models.RoleAdmin: true},
	CapCompleteWork:   {models.RoleAgent: true, models.RoleAdmin: true},
	CapVerify:         {models.RoleAdmin: true},
	CapViewWorkQueue:  {models.RoleAgent: true, models.RoleAdmin: true},
	CapCallQueueClaim: {models.RoleReviewer: true, models.RoleAdmin: true},
	CapManagePackages: {models.RoleAdmin: true},
	CapManageSettings: {models.RoleAdmin: true},
	CapSearch:         {models.RoleAdmin: true},
}

// Allowed reports whether the role holds the capability.
func Allowed(role models.Role, cap Capability) bool {
	return policy[cap][role]
}

// Require returns a ForbiddenError when the role lacks the capability.
func Require(role models.Role, cap Capability) error {
	if !Allowed(role, cap) {
		return apperrors.NewForbiddenError(string(cap))
	}
	return nil
}
